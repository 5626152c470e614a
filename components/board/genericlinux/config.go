package genericlinux

import (
	"fmt"

	"github.com/viam-modules/vl53l3cx/resource"
)

// I2CConfig names a Linux I2C bus, e.g. {"name": "main", "bus": "1"} for /dev/i2c-1.
type I2CConfig struct {
	Name string `json:"name"`
	Bus  string `json:"bus"`
}

// Validate ensures all parts of the config are valid.
func (conf *I2CConfig) Validate(path string) error {
	if conf.Name == "" {
		return resource.NewConfigValidationFieldRequiredError(path, "name")
	}
	if conf.Bus == "" {
		return resource.NewConfigValidationFieldRequiredError(path, "bus")
	}
	return nil
}

// A Config describes the configuration of a board and all of its connected parts.
type Config struct {
	I2Cs []I2CConfig `json:"i2cs,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	for idx, c := range conf.I2Cs {
		if err := c.Validate(fmt.Sprintf("%s.%s.%d", path, "i2cs", idx)); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
