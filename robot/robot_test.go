package robot

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/viam-modules/vl53l3cx/components/board"
	fakeboard "github.com/viam-modules/vl53l3cx/components/board/fake"
	"github.com/viam-modules/vl53l3cx/components/sensor"
	"github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx"
	"github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx/vl53lx/sim"
	"github.com/viam-modules/vl53l3cx/config"
	"github.com/viam-modules/vl53l3cx/logging"
	"github.com/viam-modules/vl53l3cx/resource"
	rtestutils "github.com/viam-modules/vl53l3cx/testutils"
	"github.com/viam-modules/vl53l3cx/testutils/inject"
)

func sensorConfig(name, bus string, addr int, pin string) resource.Config {
	return resource.Config{
		Name:  name,
		Model: vl53l3cx.Model,
		Attributes: map[string]interface{}{
			"board":            "local",
			"i2c_bus":          bus,
			"i2c_addr":         addr,
			"enable_pin":       pin,
			"poll_interval_ms": 1,
		},
	}
}

func twoSensorConfig(t *testing.T, rightBus string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Boards: []resource.Config{{
			Name:       "local",
			Model:      fakeboard.Model,
			Attributes: map[string]interface{}{"i2c_buses": []interface{}{"1"}},
		}},
		Components: []resource.Config{
			sensorConfig("left", "1", 0x30, "xshut_left"),
			sensorConfig("right", rightBus, 0x31, "xshut_right"),
		},
	}
	test.That(t, cfg.Ensure(), test.ShouldBeNil)
	return cfg
}

// attachChips puts one simulated sensor per enable pin on bus 1 of every fake board.
func attachChips(chips map[string]*sim.Chip, targets map[string]int16) BoardsReadyFunc {
	return func(ctx context.Context, boards map[string]board.Board) error {
		for _, b := range boards {
			fb, ok := b.(*fakeboard.Board)
			if !ok {
				continue
			}
			for pinName, mm := range targets {
				pin, err := fb.GPIOPinByName(pinName)
				if err != nil {
					return err
				}
				chip := sim.NewChip(fb.I2Cs["1"])
				chip.AttachEnable(pin.(*fakeboard.GPIOPin))
				chip.Queue(sim.Nothing(), sim.Nothing(), sim.Nothing(), sim.Nothing(), sim.Nothing(), sim.Nothing(), sim.Found(mm))
				chips[pinName] = chip
			}
		}
		return nil
	}
}

func TestRobotTwoSensorsOneBus(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	chips := map[string]*sim.Chip{}

	r, err := New(ctx, twoSensorConfig(t, "1"), logger,
		WithBoardsReady(attachChips(chips, map[string]int16{"xshut_left": 400, "xshut_right": 900})))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, rtestutils.NewResourceNameSet(r.ResourceNames()...), test.ShouldResemble, rtestutils.NewResourceNameSet(
		board.Named("local"), sensor.Named("left"), sensor.Named("right"),
	))
	test.That(t, rtestutils.ExtractNames(r.ResourceNames()...), test.ShouldResemble, []string{"local", "left", "right"})
	test.That(t, chips["xshut_left"].Address(), test.ShouldEqual, byte(0x30))
	test.That(t, chips["xshut_right"].Address(), test.ShouldEqual, byte(0x31))

	for name, want := range map[string]float64{"left": 0.4, "right": 0.9} {
		res, err := r.ResourceByName(name)
		test.That(t, err, test.ShouldBeNil)
		s := res.(sensor.Sensor)
		testutils.WaitForAssertion(t, func(tb testing.TB) {
			tb.Helper()
			readings, err := s.Readings(ctx, nil)
			test.That(tb, err, test.ShouldBeNil)
			test.That(tb, readings["distance"], test.ShouldEqual, want)
		})
	}

	_, err = r.ResourceByName("middle")
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, r.Close(ctx), test.ShouldBeNil)
	test.That(t, chips["xshut_left"].Powered(), test.ShouldBeFalse)
	test.That(t, chips["xshut_right"].Powered(), test.ShouldBeFalse)
	test.That(t, r.ResourceNames(), test.ShouldBeEmpty)
}

func TestRobotBuildFailureClosesBuilt(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	chips := map[string]*sim.Chip{}

	_, err := New(ctx, twoSensorConfig(t, "9"), logger,
		WithBoardsReady(attachChips(chips, map[string]int16{"xshut_left": 400})))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to find i2c bus 9")
	// the sensor built before the failure was closed again
	test.That(t, chips["xshut_left"].Powered(), test.ShouldBeFalse)

	_, err = New(ctx, twoSensorConfig(t, "1"), logger, WithBoardsReady(
		func(ctx context.Context, boards map[string]board.Board) error {
			return errors.New("no simulator")
		}))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no simulator")
}

type injectedBoardConfig struct{}

func (c *injectedBoardConfig) Validate(path string) ([]string, error) {
	return nil, nil
}

func TestRobotEnablePinFailure(t *testing.T) {
	ctx := context.Background()
	model := resource.NewDefaultModel("injected-test")
	closed := false
	resource.RegisterComponent(board.API, model, resource.Registration[board.Board, *injectedBoardConfig]{
		Constructor: func(
			ctx context.Context,
			_ resource.Dependencies,
			conf resource.Config,
			logger logging.Logger,
		) (board.Board, error) {
			b := inject.NewBoard(conf.Name)
			b.GPIOPinByNameFunc = func(name string) (board.GPIOPin, error) {
				return &inject.GPIOPin{SetFunc: func(ctx context.Context, high bool, extra map[string]interface{}) error {
					return errors.New("line busy")
				}}, nil
			}
			b.CloseFunc = func(ctx context.Context) error {
				closed = true
				return nil
			}
			return b, nil
		},
	})
	defer resource.Deregister(board.API, model)

	cfg := &config.Config{
		Boards:     []resource.Config{{Name: "local", Model: model}},
		Components: []resource.Config{sensorConfig("left", "1", 0x30, "xshut_left")},
	}
	test.That(t, cfg.Ensure(), test.ShouldBeNil)

	_, err := New(ctx, cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line busy")
	test.That(t, closed, test.ShouldBeTrue)
}
