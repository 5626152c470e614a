// Package config defines the file that configures a ranging harness: how it logs, which boards it
// opens and which sensors sit on them.
package config

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/viam-modules/vl53l3cx/components/board"
	"github.com/viam-modules/vl53l3cx/components/sensor"
	"github.com/viam-modules/vl53l3cx/logging"
	"github.com/viam-modules/vl53l3cx/resource"
)

// Config describes a harness.
type Config struct {
	Debug      bool              `yaml:"debug,omitempty"`
	Log        logging.Config    `yaml:"log,omitempty"`
	Boards     []resource.Config `yaml:"boards"`
	Components []resource.Config `yaml:"components"`
	Jobs       []JobConfig       `yaml:"jobs,omitempty"`

	// ConfigFilePath is the file this config was read from, if any.
	ConfigFilePath string `yaml:"-"`
}

// An i2cTarget is a component attribute set that claims an address on a board's bus.
type i2cTarget interface {
	I2CTarget() (boardName, bus string, addr int)
}

// Ensure fills in default APIs and validates every part of the config. Components may only depend
// on configured boards and may not share an address on one bus; jobs may only name components.
func (c *Config) Ensure() error {
	seen := map[resource.Name]bool{}
	boards := map[string]bool{}
	for idx := range c.Boards {
		conf := &c.Boards[idx]
		if conf.API == (resource.API{}) {
			conf.API = board.API
		}
		if conf.API != board.API {
			return errors.Errorf("boards.%d: api must be %s, got %s", idx, board.API, conf.API)
		}
		if _, err := conf.Validate(fmt.Sprintf("boards.%d", idx)); err != nil {
			return err
		}
		if seen[conf.ResourceName()] {
			return errors.Errorf("board name %q is not unique", conf.Name)
		}
		seen[conf.ResourceName()] = true
		boards[conf.Name] = true
	}

	claimed := map[string]string{}
	for idx := range c.Components {
		conf := &c.Components[idx]
		path := fmt.Sprintf("components.%d", idx)
		if conf.API == (resource.API{}) {
			conf.API = sensor.API
		}
		if _, err := conf.Validate(path); err != nil {
			return err
		}
		if seen[conf.ResourceName()] {
			return errors.Errorf("component name %q is not unique", conf.Name)
		}
		seen[conf.ResourceName()] = true

		for _, dep := range conf.Dependencies() {
			if !boards[dep] {
				return errors.Errorf("%s: %q depends on %q which is not a configured board", path, conf.Name, dep)
			}
		}

		target, ok := conf.ConvertedAttributes.(i2cTarget)
		if !ok {
			continue
		}
		boardName, bus, addr := target.I2CTarget()
		key := fmt.Sprintf("%s/%s/0x%02x", boardName, bus, addr)
		if other, taken := claimed[key]; taken {
			return errors.Errorf("%s: %q and %q both use address 0x%02x on bus %s of board %s",
				path, other, conf.Name, addr, bus, boardName)
		}
		claimed[key] = conf.Name
	}

	jobs := map[string]bool{}
	for idx := range c.Jobs {
		jc := &c.Jobs[idx]
		if err := jc.Validate(fmt.Sprintf("jobs.%d", idx)); err != nil {
			return err
		}
		if jobs[jc.Name] {
			return errors.Errorf("job name %q is not unique", jc.Name)
		}
		jobs[jc.Name] = true
		if c.FindComponent(jc.Resource) == nil {
			return errors.Errorf("jobs.%d: job %q targets unknown component %q", idx, jc.Name, jc.Resource)
		}
	}
	return nil
}

// FindComponent returns the component with the given name, if any.
func (c *Config) FindComponent(name string) *resource.Config {
	for idx := range c.Components {
		if c.Components[idx].Name == name {
			return &c.Components[idx]
		}
	}
	return nil
}
