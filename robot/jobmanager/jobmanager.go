// Package jobmanager runs configured jobs against a robot's resources on a schedule.
package jobmanager

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/viam-modules/vl53l3cx/components/sensor"
	"github.com/viam-modules/vl53l3cx/config"
	"github.com/viam-modules/vl53l3cx/logging"
	"github.com/viam-modules/vl53l3cx/resource"
)

// jobTimeout bounds a single run of a job.
const jobTimeout = 15 * time.Second

// Jobmanager owns a scheduler with one job per job config.
type Jobmanager struct {
	scheduler    gocron.Scheduler
	jobConfigs   []config.JobConfig
	logger       logging.Logger
	getResource  func(resource string) (resource.Resource, error)
	namesToUUIDs map[string]uuid.UUID
}

// New returns a Jobmanager for the given jobs. Nothing runs until Start.
func New(
	jobConfigs []config.JobConfig,
	logger logging.Logger,
	getResource func(string) (resource.Resource, error),
) (*Jobmanager, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Jobmanager{
		jobConfigs:   jobConfigs,
		logger:       logger.Sublogger("job_manager"),
		scheduler:    scheduler,
		getResource:  getResource,
		namesToUUIDs: make(map[string]uuid.UUID, len(jobConfigs)),
	}, nil
}

// Start creates every job and starts the scheduler. A job whose resource cannot be found or whose
// schedule is rejected is logged and skipped.
func (jm *Jobmanager) Start() {
	for _, jc := range jm.jobConfigs {
		if err := jm.addJob(jc); err != nil {
			jm.logger.Errorw("cannot create job", "job", jc.Name, "error", err)
		}
	}
	jm.scheduler.Start()
}

// Shutdown stops the scheduler and waits for running jobs to return.
func (jm *Jobmanager) Shutdown() error {
	jm.logger.Info("Shutting down gracefully")
	return jm.scheduler.Shutdown()
}

// JobID returns the scheduler's id for a named job.
func (jm *Jobmanager) JobID(name string) (uuid.UUID, bool) {
	id, ok := jm.namesToUUIDs[name]
	return id, ok
}

func (jm *Jobmanager) addJob(jc config.JobConfig) error {
	var jobType gocron.JobDefinition
	if d, ok := jc.Duration(); ok {
		jobType = gocron.DurationJob(d)
	} else {
		jobType = gocron.CronJob(jc.Schedule, false)
	}

	res, err := jm.getResource(jc.Resource)
	if err != nil {
		return err
	}
	jobFunc, err := jm.jobTemplate(jc, res)
	if err != nil {
		return err
	}
	j, err := jm.scheduler.NewJob(
		jobType,
		gocron.NewTask(jobFunc),
		gocron.WithName(jc.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	jm.namesToUUIDs[jc.Name] = j.ID()
	jm.logger.Infow("created job", "job", jc.Name, "uuid", j.ID().String(), "schedule", jc.Schedule)
	return nil
}

func (jm *Jobmanager) jobTemplate(jc config.JobConfig, res resource.Resource) (func(), error) {
	switch jc.Method {
	case config.JobMethodReadings:
		s, ok := res.(sensor.Sensor)
		if !ok {
			return nil, errors.Errorf("resource %q is not a sensor", jc.Resource)
		}
		return func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			readings, err := s.Readings(ctx, nil)
			if err != nil {
				jm.logger.Warnw("Readings failed", "job", jc.Name, "resource", jc.Resource, "error", err)
				return
			}
			jm.logger.Infow("readings", "job", jc.Name, "resource", jc.Resource, "readings", readings)
		}, nil
	case config.JobMethodDoCommand:
		return func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			result, err := res.DoCommand(ctx, jc.Command)
			if err != nil {
				jm.logger.Warnw("DoCommand failed", "job", jc.Name, "resource", jc.Resource, "error", err)
				return
			}
			jm.logger.Infow("DoCommand succeeded", "job", jc.Name, "resource", jc.Resource, "result", result)
		}, nil
	default:
		return nil, errors.Errorf("unsupported job method %q", jc.Method)
	}
}
