package component

import (
	"fmt"
	"math"
)

var ErrInvalidConfig = fmt.Errorf("invalid configuration")

// DefaultBus is the bus number used when the configuration does not name one.
const DefaultBus = 1

// Config holds the sensor component configuration. A value is immutable once
// applied; the host supplies a fresh one on every reconfigure.
type Config struct {
	// I2CBus is the I2C bus number to open. Defaults to DefaultBus when nil.
	I2CBus *int `json:"i2c_bus,omitempty" yaml:"i2c_bus,omitempty"`
}

func (c Config) Validate() error {
	if c.I2CBus != nil && *c.I2CBus < 0 {
		return fmt.Errorf("%w: i2c_bus must be a non-negative integer, got %d", ErrInvalidConfig, *c.I2CBus)
	}
	return nil
}

// Bus returns the configured bus number or the default.
func (c Config) Bus() int {
	if c.I2CBus == nil {
		return DefaultBus
	}
	return *c.I2CBus
}

// ParseAttributes builds a Config from a host-supplied attribute map.
// JSON-decoded numbers arrive as float64; integral values are accepted,
// everything else is rejected here, before any bus handle is touched.
func ParseAttributes(attrs map[string]interface{}) (Config, error) {
	var cfg Config
	raw, ok := attrs["i2c_bus"]
	if !ok || raw == nil {
		return cfg, nil
	}
	var bus int
	switch v := raw.(type) {
	case int:
		bus = v
	case int64:
		bus = int(v)
	case float64:
		if v != math.Trunc(v) {
			return cfg, fmt.Errorf("%w: i2c_bus must be an integer, got %v", ErrInvalidConfig, v)
		}
		bus = int(v)
	default:
		return cfg, fmt.Errorf("%w: i2c_bus must be an integer, got %T", ErrInvalidConfig, raw)
	}
	if bus < 0 {
		return cfg, fmt.Errorf("%w: i2c_bus must be a non-negative integer, got %d", ErrInvalidConfig, bus)
	}
	cfg.I2CBus = &bus
	return cfg, nil
}
