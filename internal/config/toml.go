// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Device  DeviceConfig  `toml:"device"`
	Control ControlConfig `toml:"control"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
	MQTT    MQTTConfig    `toml:"mqtt"`
}

// DeviceConfig maps the GATT layout and connection settings.
type DeviceConfig struct {
	Service      *string `toml:"service"`
	State        *string `toml:"state"`
	Voltage      *string `toml:"voltage"`
	Percent      *string `toml:"percent"`
	Charge       *string `toml:"charge"`
	Speed        *string `toml:"speed"`
	Control      *string `toml:"control"`
	NamePrefix   *string `toml:"name-prefix"`
	PollInterval *string `toml:"poll-interval"`
	Timeout      *string `toml:"request-timeout"`
	AsText       *bool   `toml:"as-text"`
	AutoStart    *bool   `toml:"auto-start"`
}

// ControlConfig overrides the control opcodes.
type ControlConfig struct {
	Power    *int `toml:"power"`
	Standard *int `toml:"standard"`
	Turbo    *int `toml:"turbo"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// MetricsConfig maps the HTTP listener.
type MetricsConfig struct {
	Listen *string `toml:"listen"`
}

// MQTTConfig maps the broker bridge.
type MQTTConfig struct {
	Broker   *string `toml:"broker"`
	Topic    *string `toml:"topic"`
	Username *string `toml:"username"`
	Password *string `toml:"password"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// Validate checks values the decoder cannot.
func (c FileConfig) Validate() error {
	if c.Device.PollInterval != nil {
		if _, err := ParseInterval(*c.Device.PollInterval); err != nil {
			return err
		}
	}
	if c.Device.Timeout != nil {
		if _, err := ParseInterval(*c.Device.Timeout); err != nil {
			return err
		}
	}
	for name, v := range map[string]*int{
		"control.power":    c.Control.Power,
		"control.standard": c.Control.Standard,
		"control.turbo":    c.Control.Turbo,
	} {
		if v == nil {
			continue
		}
		if _, err := Opcode(*v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// ParseInterval parses a positive duration such as "2s".
func ParseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be > 0, got %s", s)
	}
	return d, nil
}

// Opcode converts a configured integer to a single byte.
func Opcode(v int) (byte, error) {
	if v < 0 || v > 0xff {
		return 0, fmt.Errorf("opcode must be within 0..255, got %d", v)
	}
	return byte(v), nil
}
