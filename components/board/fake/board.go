// Package fake implements a fake board.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/viam-modules/vl53l3cx/components/board"
	"github.com/viam-modules/vl53l3cx/logging"
	"github.com/viam-modules/vl53l3cx/resource"
)

// A Config describes the configuration of a fake board and all of its connected parts.
type Config struct {
	I2CBuses []string `json:"i2c_buses,omitempty"`
	FailNew  bool     `json:"fail_new"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	for idx, name := range conf.I2CBuses {
		if name == "" {
			return nil, resource.NewConfigValidationFieldRequiredError(fmt.Sprintf("%s.i2c_buses.%d", path, idx), "name")
		}
	}
	if conf.FailNew {
		return nil, errors.New("whoops")
	}
	return nil, nil
}

// Model is the fake board model.
var Model = resource.NewDefaultModel("fake")

func init() {
	resource.RegisterComponent(
		board.API,
		Model,
		resource.Registration[board.Board, *Config]{
			Constructor: func(
				ctx context.Context,
				_ resource.Dependencies,
				cfg resource.Config,
				logger logging.Logger,
			) (board.Board, error) {
				return NewBoard(ctx, cfg, logger)
			},
		})
}

// NewBoard returns a new fake board.
func NewBoard(ctx context.Context, conf resource.Config, logger logging.Logger) (*Board, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}
	b := &Board{
		Named:    conf.ResourceName().AsNamed(),
		GPIOPins: map[string]*GPIOPin{},
		I2Cs:     map[string]*I2C{},
		logger:   logger,
	}
	for _, name := range newConf.I2CBuses {
		b.I2Cs[name] = NewI2C()
	}
	return b, nil
}

// A Board provides dummy data from fake parts in order to implement a Board.
type Board struct {
	resource.Named

	mu       sync.RWMutex
	GPIOPins map[string]*GPIOPin
	I2Cs     map[string]*I2C
	logger   logging.Logger
}

// GPIOPinByName returns the GPIO pin by the given name, creating it on first use.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.GPIOPins[name]
	if !ok {
		p = &GPIOPin{}
		b.GPIOPins[name] = p
	}
	return p, nil
}

// I2CByName returns the i2c bus by the given name if it exists.
func (b *Board) I2CByName(name string) (board.I2C, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bus, ok := b.I2Cs[name]
	if !ok {
		return nil, false
	}
	return bus, true
}

// Close attempts to cleanly close each part of the board.
func (b *Board) Close(ctx context.Context) error {
	return nil
}

// A GPIOPin reads back the same set values and remembers every level it was driven to.
type GPIOPin struct {
	mu      sync.Mutex
	high    bool
	history []bool

	onSet func(high bool)
}

// OnSet registers a function called after every Set, e.g. to power a simulated device.
func (gp *GPIOPin) OnSet(f func(high bool)) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.onSet = f
}

// Set sets the pin to either low or high.
func (gp *GPIOPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	gp.mu.Lock()
	gp.high = high
	gp.history = append(gp.history, high)
	onSet := gp.onSet
	gp.mu.Unlock()

	if onSet != nil {
		onSet(high)
	}
	return nil
}

// Get gets the high/low state of the pin.
func (gp *GPIOPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	return gp.high, nil
}

// History returns every level the pin has been set to, oldest first.
func (gp *GPIOPin) History() []bool {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return append([]bool(nil), gp.history...)
}
