package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "line.yaml")
	data := `
listen:
  host: 127.0.0.1
  port: 1502
tick_interval: 100ms
conveyor:
  coil: 16
  holding: 16
  active: false
  rate: 50
sensors:
  - tag: bottle_sensor
    address: 0
    detects: bottle
    zone_start: 190
    zone_end: 210
  - tag: water_sensor
    address: 1
    detects: ball
    zone_start: 140
    zone_end: 160
`
	require.NoError(os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(err)
	require.Equal("127.0.0.1", cfg.Listen.Host)
	require.Equal(1502, cfg.Listen.Port)
	require.Equal(100*time.Millisecond, cfg.TickInterval.Std())
	require.Equal(uint16(16), cfg.Conveyor.Coil)
	require.False(cfg.Conveyor.Active)
	// fields not present in the file keep their defaults
	require.Equal(uint16(0x0001), cfg.Valve.Coil)
	require.Len(cfg.Sensors, 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	require := require.New(t)

	t.Run("duplicate sensor tag", func(t *testing.T) {
		cfg := Default()
		cfg.Sensors = append(cfg.Sensors, Sensor{Tag: "bottle_sensor", Address: 9, Detects: "bottle", ZoneEnd: 1})
		require.Error(cfg.Validate())
	})

	t.Run("duplicate sensor address", func(t *testing.T) {
		cfg := Default()
		cfg.Sensors = append(cfg.Sensors, Sensor{Tag: "extra", Address: 0, Detects: "bottle", ZoneEnd: 1})
		require.Error(cfg.Validate())
	})

	t.Run("unknown object kind", func(t *testing.T) {
		cfg := Default()
		cfg.Sensors[0].Detects = "crate"
		require.Error(cfg.Validate())
	})

	t.Run("shared coil address", func(t *testing.T) {
		cfg := Default()
		cfg.Valve.Coil = cfg.Conveyor.Coil
		require.Error(cfg.Validate())
	})

	t.Run("bad tick interval", func(t *testing.T) {
		cfg := Default()
		cfg.TickInterval = 0
		require.Error(cfg.Validate())
	})

	t.Run("inverted zone", func(t *testing.T) {
		cfg := Default()
		cfg.Sensors[0].ZoneStart = 210
		cfg.Sensors[0].ZoneEnd = 190
		require.Error(cfg.Validate())
	})
}
