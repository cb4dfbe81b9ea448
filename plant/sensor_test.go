package plant

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-plantbus/logger"
)

func newTestSensors() *Sensors {
	return NewSensors(logger.GetLogger())
}

func TestSensorRegister(t *testing.T) {
	require := require.New(t)

	sensors := newTestSensors()

	rec, ok := sensors.Register("bottle_sensor", 0x0000, Bottle)
	require.True(ok)
	require.Equal("bottle_sensor", rec.Tag())
	require.Equal(uint16(0x0000), rec.Address())
	require.Equal(Bottle, rec.Detects())
	require.False(rec.Triggered())
	require.False(rec.Changed())

	// duplicate registration leaves the first record in place
	_, ok = sensors.Register("bottle_sensor", 0x0001, Ball)
	require.False(ok)

	got, found := sensors.Get("bottle_sensor")
	require.True(found)
	require.Equal(uint16(0x0000), got.Address())
}

func TestSensorEdgeDetection(t *testing.T) {
	require := require.New(t)

	sensors := newTestSensors()
	sensors.Register("s1", 5, Bottle)

	t.Run("repeated identical value", func(t *testing.T) {
		sensors.SetTriggered("s1", true)
		require.True(sensors.IsTriggered("s1"))
		rec, _ := sensors.Get("s1")
		require.True(rec.Changed())

		sensors.SetTriggered("s1", true)
		require.True(sensors.IsTriggered("s1"))
		require.False(rec.Changed())
	})

	t.Run("alternating values", func(t *testing.T) {
		rec, _ := sensors.Get("s1")
		for _, v := range []bool{false, true, false} {
			sensors.SetTriggered("s1", v)
			require.True(rec.Changed())
			rec.changed = false
		}
	})
}

func TestSensorConsumeChanged(t *testing.T) {
	require := require.New(t)

	sensors := newTestSensors()
	sensors.Register("s1", 5, Bottle)

	sensors.SetTriggered("s1", true)
	require.True(sensors.ConsumeChanged("s1"))
	// no intervening SetTriggered, the second consume reports no transition
	require.False(sensors.ConsumeChanged("s1"))

	sensors.SetTriggered("s1", false)
	require.True(sensors.ConsumeChanged("s1"))
	require.False(sensors.ConsumeChanged("s1"))
}

func TestSensorUnknownTag(t *testing.T) {
	require := require.New(t)

	sensors := newTestSensors()

	// wiring bugs are non-fatal no-ops
	sensors.SetTriggered("ghost", true)
	require.False(sensors.IsTriggered("ghost"))
	require.False(sensors.ConsumeChanged("ghost"))
	require.False(sensors.Apply(Event{SensorTag: "ghost", Kind: Bottle, Entered: true}))
}

func TestSensorKindFilter(t *testing.T) {
	require := require.New(t)

	sensors := newTestSensors()
	sensors.Register("bottle_sensor", 0, Bottle)

	// a ball passing the bottle sensor is ignored
	require.False(sensors.Apply(Event{SensorTag: "bottle_sensor", Kind: Ball, Entered: true}))
	require.False(sensors.IsTriggered("bottle_sensor"))

	require.True(sensors.Apply(Event{SensorTag: "bottle_sensor", Kind: Bottle, Entered: true}))
	require.True(sensors.IsTriggered("bottle_sensor"))

	require.True(sensors.Apply(Event{SensorTag: "bottle_sensor", Kind: Bottle, Entered: false}))
	require.False(sensors.IsTriggered("bottle_sensor"))
}

func TestChangedSensors(t *testing.T) {
	require := require.New(t)

	sensors := newTestSensors()
	sensors.Register("s1", 0, Bottle)
	sensors.Register("s2", 1, Ball)

	require.Empty(sensors.ChangedSensors())

	sensors.SetTriggered("s1", true)
	changed := sensors.ChangedSensors()
	require.Len(changed, 1)
	require.Equal("s1", changed[0].Tag())
}

func TestParseObjectKind(t *testing.T) {
	require := require.New(t)

	k, err := ParseObjectKind("bottle")
	require.NoError(err)
	require.Equal(Bottle, k)

	k, err = ParseObjectKind("ball")
	require.NoError(err)
	require.Equal(Ball, k)

	_, err = ParseObjectKind("crate")
	require.Error(err)
}
