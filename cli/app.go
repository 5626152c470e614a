// Package cli contains the tofranger command line: it validates harness configs and runs the
// sensors they describe.
package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	// register models.
	_ "github.com/viam-modules/vl53l3cx/components/board/fake"
	_ "github.com/viam-modules/vl53l3cx/components/board/genericlinux"
	_ "github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx"
	"github.com/viam-modules/vl53l3cx/config"
	"github.com/viam-modules/vl53l3cx/logging"
)

const (
	// Flags.
	flagConfig        = "config"
	flagDebug         = "debug"
	flagDuration      = "duration"
	flagSimDistanceMM = "sim-distance-mm"

	defaultSimDistanceMM = 1200
)

// NewApp returns the tofranger application.
func NewApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:     flagConfig,
		Aliases:  []string{"c"},
		Usage:    "load configuration from `FILE`",
		Required: true,
	}
	return &cli.App{
		Name:  "tofranger",
		Usage: "range with VL53L3CX time-of-flight sensors",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "set up every sensor and range until interrupted",
				Flags: []cli.Flag{
					configFlag,
					&cli.DurationFlag{
						Name:  flagDuration,
						Usage: "stop after `DURATION` instead of waiting for a signal",
					},
					&cli.IntFlag{
						Name:  flagSimDistanceMM,
						Usage: "distance in `MM` seen by simulated sensors on fake boards",
						Value: defaultSimDistanceMM,
					},
				},
				Action: RunAction,
			},
			{
				Name:  "validate",
				Usage: "check a config file without touching any hardware",
				Flags: []cli.Flag{configFlag},
				Action: func(c *cli.Context) error {
					cfg, err := config.Read(c.String(flagConfig), logging.Global())
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%s: %d boards, %d components, %d jobs\n%s\n",
						cfg.ConfigFilePath, len(cfg.Boards), len(cfg.Components), len(cfg.Jobs), cfg)
					return nil
				},
			},
		},
	}
}
