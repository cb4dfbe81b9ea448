package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-plantbus/logger"
	"github.com/arloliu/go-plantbus/plant"
	"github.com/arloliu/go-plantbus/register"
)

func newTestLine(t *testing.T) (*Line, *plant.Bridge, *register.Store, *plant.Equipment, *plant.Equipment) {
	t.Helper()
	require := require.New(t)

	store := register.NewStore()
	bridge := plant.NewBridge(store, logger.GetLogger())

	conveyor := plant.NewEquipment("conveyor", 0x0000, 0x0000, true, 100)
	valve := plant.NewEquipment("valve", 0x0001, 0x0001, false, 1)
	require.NoError(bridge.BindEquipment(conveyor))
	require.NoError(bridge.BindEquipment(valve))
	require.NoError(bridge.BindSensor("bottle_sensor", 0x0000, plant.Bottle))
	require.NoError(bridge.BindSensor("water_sensor", 0x0001, plant.Ball))

	zones := []Zone{
		{Tag: "bottle_sensor", Kind: plant.Bottle, Start: 190, End: 210},
		{Tag: "water_sensor", Kind: plant.Ball, Start: 140, End: 160},
	}

	return NewLine(bridge, conveyor, valve, zones, logger.GetLogger()), bridge, store, conveyor, valve
}

func TestLineFillCycle(t *testing.T) {
	require := require.New(t)

	line, bridge, store, conveyor, valve := newTestLine(t)

	const step = 50 * time.Millisecond

	// phase 1: a bottle spawns, travels to the fill position, stops the
	// conveyor and opens the valve
	for i := 0; conveyor.Active() && i < 200; i++ {
		line.Tick(step)
	}
	require.False(conveyor.Active())
	require.True(valve.Active())
	require.True(bridge.Sensors().IsTriggered("bottle_sensor"))

	// the bottle sensor state was pushed to its discrete input
	values, err := store.DiscreteInputs.Read(0x0000, 1)
	require.NoError(err)
	require.Equal([]bool{true}, values)

	// phase 2: water falls, reaches the bottle, closes the valve and
	// restarts the conveyor
	for i := 0; valve.Active() && i < 200; i++ {
		line.Tick(step)
	}
	require.False(valve.Active())
	require.True(conveyor.Active())
	require.True(bridge.Sensors().IsTriggered("water_sensor"))

	// equipment state reached the registers as well
	coils, err := store.Coils.Read(0x0000, 2)
	require.NoError(err)
	require.Equal([]bool{true, false}, coils)
}

func TestLineNoBottlesWhileStopped(t *testing.T) {
	require := require.New(t)

	line, _, _, conveyor, _ := newTestLine(t)
	conveyor.SetActive(false)

	for range 100 {
		line.Advance(50 * time.Millisecond)
	}
	require.Equal(0, line.BottleCount())
}

func TestLineBallLifecycle(t *testing.T) {
	require := require.New(t)

	line, _, _, conveyor, valve := newTestLine(t)
	conveyor.SetActive(false) // keep bottles out of the picture
	valve.SetActive(true)

	sawBall := false
	for range 100 { // 5 simulated seconds
		line.Advance(50 * time.Millisecond)
		if line.BallCount() > 0 {
			sawBall = true
		}
	}

	require.True(sawBall)
	// balls spawn once per second and are removed after two seconds of
	// travel, so the population stays bounded
	require.LessOrEqual(line.BallCount(), 3)
}

func TestLineZoneExitReleasesSensor(t *testing.T) {
	require := require.New(t)

	line, bridge, _, conveyor, valve := newTestLine(t)

	const step = 50 * time.Millisecond

	for i := 0; conveyor.Active() && i < 200; i++ {
		line.Tick(step)
	}
	require.True(bridge.Sensors().IsTriggered("bottle_sensor"))

	for i := 0; valve.Active() && i < 200; i++ {
		line.Tick(step)
	}

	// conveyor runs again, the bottle leaves the fill zone and the sensor
	// releases
	for i := 0; bridge.Sensors().IsTriggered("bottle_sensor") && i < 200; i++ {
		line.Tick(step)
	}
	require.False(bridge.Sensors().IsTriggered("bottle_sensor"))
}
