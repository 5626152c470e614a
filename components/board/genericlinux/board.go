// Package genericlinux implements a Linux-based board on top of periph.io: GPIO lines are looked
// up by name in the periph GPIO registry and I2C buses are opened through /dev/i2c-*.
package genericlinux

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/viam-modules/vl53l3cx/components/board"
	"github.com/viam-modules/vl53l3cx/logging"
	"github.com/viam-modules/vl53l3cx/resource"
)

// Model is the generic Linux board model.
var Model = resource.NewDefaultModel("linux")

func init() {
	resource.RegisterComponent(
		board.API,
		Model,
		resource.Registration[board.Board, *Config]{
			Constructor: func(
				ctx context.Context,
				_ resource.Dependencies,
				conf resource.Config,
				logger logging.Logger,
			) (board.Board, error) {
				return NewBoard(ctx, conf, logger)
			},
		})
}

// NewBoard initializes the periph host drivers and returns a board exposing the configured buses.
func NewBoard(ctx context.Context, conf resource.Config, logger logging.Logger) (board.Board, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host drivers")
	}

	b := &sysfsBoard{
		Named:  conf.ResourceName().AsNamed(),
		i2cs:   make(map[string]*i2cBus, len(newConf.I2Cs)),
		logger: logger,
	}
	for _, c := range newConf.I2Cs {
		b.i2cs[c.Name] = newI2cBus(c.Bus)
	}
	return b, nil
}

type sysfsBoard struct {
	resource.Named

	mu     sync.Mutex
	i2cs   map[string]*i2cBus
	logger logging.Logger
}

// I2CByName returns the i2c bus by the given name if it exists.
func (b *sysfsBoard) I2CByName(name string) (board.I2C, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bus, ok := b.i2cs[name]
	if !ok {
		return nil, false
	}
	return bus, true
}

// GPIOPinByName returns the periph GPIO line registered under the given name, e.g. "GPIO17".
func (b *sysfsBoard) GPIOPinByName(pinName string) (board.GPIOPin, error) {
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, errors.Errorf("no global pin found for %q", pinName)
	}
	return periphGpioPin{pin: pin}, nil
}

func (b *sysfsBoard) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for _, bus := range b.i2cs {
		err = multierr.Combine(err, bus.Close())
	}
	return err
}

type periphGpioPin struct {
	pin gpio.PinIO
}

func (gp periphGpioPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	l := gpio.Low
	if high {
		l = gpio.High
	}
	return gp.pin.Out(l)
}

func (gp periphGpioPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	return gp.pin.Read() == gpio.High, nil
}
