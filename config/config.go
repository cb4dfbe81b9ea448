// Package config loads the line configuration: the listening endpoint, the
// tick cadence, the equipment register bindings and the sensor zones.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-plantbus/plant"
)

// Duration wraps time.Duration with YAML decoding from strings like "50ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"50ms\": %w", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(parsed)

	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Listen is the TCP endpoint the Modbus server binds.
type Listen struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Equipment binds one piece of equipment to its registers and initial state.
type Equipment struct {
	Coil    uint16  `yaml:"coil"`
	Holding uint16  `yaml:"holding"`
	Active  bool    `yaml:"active"`
	Rate    float64 `yaml:"rate"`
}

// Sensor binds one sensor tag to its discrete input, detected object kind and
// zone interval.
type Sensor struct {
	Tag       string  `yaml:"tag"`
	Address   uint16  `yaml:"address"`
	Detects   string  `yaml:"detects"`
	ZoneStart float64 `yaml:"zone_start"`
	ZoneEnd   float64 `yaml:"zone_end"`
}

// Config is the full line configuration.
type Config struct {
	Listen       Listen    `yaml:"listen"`
	TickInterval Duration  `yaml:"tick_interval"`
	Conveyor     Equipment `yaml:"conveyor"`
	Valve        Equipment `yaml:"valve"`
	Sensors      []Sensor  `yaml:"sensors"`
}

// Default returns the stock single-conveyor, single-valve line topology.
func Default() Config {
	return Config{
		Listen:       Listen{Host: "0.0.0.0", Port: 5502},
		TickInterval: Duration(50 * time.Millisecond),
		Conveyor:     Equipment{Coil: 0x0000, Holding: 0x0000, Active: true, Rate: 100},
		Valve:        Equipment{Coil: 0x0001, Holding: 0x0001, Active: false, Rate: 1},
		Sensors: []Sensor{
			{Tag: "bottle_sensor", Address: 0x0000, Detects: "bottle", ZoneStart: 190, ZoneEnd: 210},
			{Tag: "water_sensor", Address: 0x0001, Detects: "ball", ZoneStart: 140, ZoneEnd: 160},
		},
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration for wiring mistakes that would otherwise
// surface as provisioning failures at startup.
func (c Config) Validate() error {
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen port %d is out of range", c.Listen.Port)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.Conveyor.Coil == c.Valve.Coil {
		return fmt.Errorf("conveyor and valve share coil address 0x%04X", c.Conveyor.Coil)
	}
	if c.Conveyor.Holding == c.Valve.Holding {
		return fmt.Errorf("conveyor and valve share holding address 0x%04X", c.Conveyor.Holding)
	}

	tags := make(map[string]bool, len(c.Sensors))
	addrs := make(map[uint16]bool, len(c.Sensors))
	for _, s := range c.Sensors {
		if s.Tag == "" {
			return fmt.Errorf("sensor with empty tag")
		}
		if tags[s.Tag] {
			return fmt.Errorf("duplicate sensor tag %q", s.Tag)
		}
		tags[s.Tag] = true

		if addrs[s.Address] {
			return fmt.Errorf("duplicate sensor address 0x%04X", s.Address)
		}
		addrs[s.Address] = true

		if _, err := plant.ParseObjectKind(s.Detects); err != nil {
			return fmt.Errorf("sensor %q: %w", s.Tag, err)
		}
		if s.ZoneEnd <= s.ZoneStart {
			return fmt.Errorf("sensor %q: zone end must be greater than zone start", s.Tag)
		}
	}

	return nil
}
