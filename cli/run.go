package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/viam-modules/vl53l3cx/components/board"
	fakeboard "github.com/viam-modules/vl53l3cx/components/board/fake"
	"github.com/viam-modules/vl53l3cx/components/sensor"
	"github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx"
	"github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx/vl53lx/sim"
	"github.com/viam-modules/vl53l3cx/config"
	"github.com/viam-modules/vl53l3cx/logging"
	"github.com/viam-modules/vl53l3cx/robot"
	"github.com/viam-modules/vl53l3cx/robot/jobmanager"
)

const defaultReadingsSchedule = time.Second

// RunAction reads the config, builds every board and sensor, then runs the configured jobs until
// interrupted. Without any jobs every sensor's readings are logged once a second.
func RunAction(c *cli.Context) (err error) {
	cfg, err := config.Read(c.String(flagConfig), logging.Global())
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig("tofranger", cfg.Log)
	if err != nil {
		return err
	}
	if cfg.Debug || c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	logging.ReplaceGlobal(logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := c.Duration(flagDuration); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	r, err := robot.New(ctx, cfg, logger,
		robot.WithBoardsReady(simulateSensors(cfg, int16(c.Int(flagSimDistanceMM)), logger)))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, r.Close(context.Background()))
	}()

	jobs := cfg.Jobs
	if len(jobs) == 0 {
		jobs = defaultJobs(cfg)
	}
	jm, err := jobmanager.New(jobs, logger, r.ResourceByName)
	if err != nil {
		return err
	}
	jm.Start()
	logger.Infow("running", "sensors", len(cfg.Components), "jobs", len(jobs))

	<-ctx.Done()
	logger.Info("stopping")
	return jm.Shutdown()
}

// defaultJobs logs every sensor's readings.
func defaultJobs(cfg *config.Config) []config.JobConfig {
	var jobs []config.JobConfig
	for _, conf := range cfg.Components {
		if conf.API != sensor.API {
			continue
		}
		jobs = append(jobs, config.JobConfig{
			Name:     conf.Name + " readings",
			Schedule: defaultReadingsSchedule.String(),
			Resource: conf.Name,
			Method:   config.JobMethodReadings,
		})
	}
	return jobs
}

// simulateSensors puts a simulated chip, seeing a target at distanceMM, behind every VL53L3CX
// configured on a fake board.
func simulateSensors(cfg *config.Config, distanceMM int16, logger logging.Logger) robot.BoardsReadyFunc {
	return func(ctx context.Context, boards map[string]board.Board) error {
		for _, conf := range cfg.Components {
			attrs, ok := conf.ConvertedAttributes.(*vl53l3cx.Config)
			if !ok {
				continue
			}
			boardName, busName, _ := attrs.I2CTarget()
			fb, ok := boards[boardName].(*fakeboard.Board)
			if !ok {
				continue
			}
			bus, ok := fb.I2Cs[busName]
			if !ok {
				continue
			}
			chip := sim.NewChip(bus)
			if _, pinName, ok := attrs.EnableTarget(); ok {
				pin, err := fb.GPIOPinByName(pinName)
				if err != nil {
					return err
				}
				chip.AttachEnable(pin.(*fakeboard.GPIOPin))
			}
			chip.Queue(sim.Found(distanceMM))
			logger.Infow("simulating sensor", "sensor", conf.Name, "board", boardName, "distance_mm", distanceMM)
		}
		return nil
	}
}
