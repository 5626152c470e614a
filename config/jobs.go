package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/viam-modules/vl53l3cx/resource"
)

// Job methods.
const (
	JobMethodReadings  = "Readings"
	JobMethodDoCommand = "DoCommand"
)

// JobConfig describes a call made to a component on a schedule.
type JobConfig struct {
	Name string `yaml:"name"`
	// Schedule is either a Go duration ("5s") or a five field cron expression ("*/5 * * * *").
	Schedule string `yaml:"schedule"`
	Resource string `yaml:"resource"`
	Method   string `yaml:"method"`
	// Command is sent with DoCommand.
	Command map[string]interface{} `yaml:"command,omitempty"`
}

// Validate ensures all parts of the job config are valid.
func (jc *JobConfig) Validate(path string) error {
	if jc.Name == "" {
		return resource.NewConfigValidationFieldRequiredError(path, "name")
	}
	if jc.Schedule == "" {
		return resource.NewConfigValidationFieldRequiredError(path, "schedule")
	}
	if jc.Resource == "" {
		return resource.NewConfigValidationFieldRequiredError(path, "resource")
	}
	if d, err := time.ParseDuration(jc.Schedule); err == nil {
		if d <= 0 {
			return resource.NewConfigValidationError(path, errors.Errorf("schedule %q must be positive", jc.Schedule))
		}
	} else if len(strings.Fields(jc.Schedule)) != 5 {
		return resource.NewConfigValidationError(path,
			errors.Errorf("schedule %q is neither a duration nor a cron expression", jc.Schedule))
	}
	switch jc.Method {
	case JobMethodReadings:
	case JobMethodDoCommand:
		if len(jc.Command) == 0 {
			return resource.NewConfigValidationFieldRequiredError(path, "command")
		}
	default:
		return resource.NewConfigValidationError(path,
			errors.Errorf("method %q is not one of %s, %s", jc.Method, JobMethodReadings, JobMethodDoCommand))
	}
	return nil
}

// Duration returns the schedule as a duration, or false for a cron schedule.
func (jc *JobConfig) Duration() (time.Duration, bool) {
	d, err := time.ParseDuration(jc.Schedule)
	if err != nil {
		return 0, false
	}
	return d, true
}
