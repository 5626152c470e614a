// Package vl53l3cx implements a distance sensor on the ST VL53L3CX multi-object time-of-flight
// ranger. Every update interval a ranging cycle begins, and a faster poll completes it without
// blocking: the closest (or furthest) valid object is reported in meters, or NaN when an update
// arrives while a measurement is still in flight.
package vl53l3cx

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/viam-modules/vl53l3cx/components/board"
	"github.com/viam-modules/vl53l3cx/components/sensor"
	"github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx/vl53lx"
	"github.com/viam-modules/vl53l3cx/logging"
	"github.com/viam-modules/vl53l3cx/resource"
)

// Model is the model of the VL53L3CX sensor.
var Model = resource.NewDefaultModel("vl53l3cx")

const (
	defaultUpdateInterval = 500 * time.Millisecond
	defaultPollInterval   = 15 * time.Millisecond

	minAddress = 0x08
	maxAddress = 0x77
)

// Config is used for converting config attributes.
type Config struct {
	Board     string `json:"board"`
	I2CBus    string `json:"i2c_bus"`
	I2CAddr   int    `json:"i2c_addr,omitempty"`
	EnablePin string `json:"enable_pin,omitempty"`
	// Mode is closest or furtherest.
	Mode             string `json:"mode,omitempty"`
	UpdateIntervalMs int    `json:"update_interval_ms,omitempty"`
	PollIntervalMs   int    `json:"poll_interval_ms,omitempty"`
	TimingBudgetUs   int    `json:"timing_budget_us,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.Board == "" {
		return nil, resource.NewConfigValidationFieldRequiredError(path, "board")
	}
	if conf.I2CBus == "" {
		return nil, resource.NewConfigValidationFieldRequiredError(path, "i2c_bus")
	}
	addr := conf.address()
	if addr < minAddress || addr > maxAddress {
		return nil, resource.NewConfigValidationError(path,
			errors.Errorf("i2c_addr 0x%02x outside 0x%02x-0x%02x", addr, minAddress, maxAddress))
	}
	// every device powers up at the default address; moving one needs the others held off
	if addr != int(vl53lx.DefaultAddress) && conf.EnablePin == "" {
		return nil, resource.NewConfigValidationError(path,
			errors.Errorf("enable_pin is required to use i2c_addr 0x%02x", addr))
	}
	if _, err := ParseReportPolicy(conf.Mode); err != nil {
		return nil, resource.NewConfigValidationError(path, err)
	}
	if conf.UpdateIntervalMs < 0 || conf.PollIntervalMs < 0 {
		return nil, resource.NewConfigValidationError(path, errors.New("intervals cannot be negative"))
	}
	if conf.TimingBudgetUs != 0 &&
		(conf.TimingBudgetUs <= int(vl53lx.TimingGuard) || conf.TimingBudgetUs > int(vl53lx.MaxTimingBudgetUs)) {
		return nil, resource.NewConfigValidationError(path,
			errors.Errorf("timing_budget_us must be in (%d, %d]", vl53lx.TimingGuard, vl53lx.MaxTimingBudgetUs))
	}
	return []string{conf.Board}, nil
}

// I2CTarget returns the bus location the device answers on once set up.
func (conf *Config) I2CTarget() (boardName, bus string, addr int) {
	return conf.Board, conf.I2CBus, conf.address()
}

// EnableTarget returns the enable pin that powers the device, if it has one.
func (conf *Config) EnableTarget() (boardName, pin string, ok bool) {
	return conf.Board, conf.EnablePin, conf.EnablePin != ""
}

func (conf *Config) address() int {
	if conf.I2CAddr == 0 {
		return int(vl53lx.DefaultAddress)
	}
	return conf.I2CAddr
}

func (conf *Config) updateInterval() time.Duration {
	if conf.UpdateIntervalMs == 0 {
		return defaultUpdateInterval
	}
	return time.Duration(conf.UpdateIntervalMs) * time.Millisecond
}

func (conf *Config) pollInterval() time.Duration {
	if conf.PollIntervalMs == 0 {
		return defaultPollInterval
	}
	return time.Duration(conf.PollIntervalMs) * time.Millisecond
}

func (conf *Config) timingBudgetUs() uint32 {
	if conf.TimingBudgetUs == 0 {
		return vl53lx.DefaultTimingBudgetUs
	}
	return uint32(conf.TimingBudgetUs)
}

func init() {
	resource.RegisterComponent(
		sensor.API,
		Model,
		resource.Registration[sensor.Sensor, *Config]{
			Constructor: func(
				ctx context.Context,
				deps resource.Dependencies,
				conf resource.Config,
				logger logging.Logger,
			) (sensor.Sensor, error) {
				newConf, err := resource.NativeConfig[*Config](conf)
				if err != nil {
					return nil, err
				}
				return NewSensor(ctx, deps, conf.ResourceName(), newConf, logger)
			},
		})
}

// NewSensor finds the sensor's bus and enable pin on its board, brings the device up and starts
// ranging.
func NewSensor(
	ctx context.Context,
	deps resource.Dependencies,
	name resource.Name,
	conf *Config,
	logger logging.Logger,
) (sensor.Sensor, error) {
	b, err := board.FromDependencies(deps, conf.Board)
	if err != nil {
		return nil, errors.Wrap(err, "vl53l3cx init: failed to find board")
	}
	bus, ok := b.I2CByName(conf.I2CBus)
	if !ok {
		return nil, errors.Errorf("vl53l3cx init: failed to find i2c bus %s", conf.I2CBus)
	}
	var enable board.GPIOPin
	if conf.EnablePin != "" {
		enable, err = b.GPIOPinByName(conf.EnablePin)
		if err != nil {
			return nil, errors.Wrapf(err, "vl53l3cx init: failed to find enable pin %s", conf.EnablePin)
		}
	}
	clk := clock.New()
	driver := vl53lx.NewDevice(bus, enable, vl53lx.DefaultAddress, clk, logger)
	s, err := newSensor(ctx, name, driver, conf, clk, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// vl53l3cx is a time-of-flight distance sensor.
type vl53l3cx struct {
	resource.Named

	conf   *Config
	logger logging.Logger
	driver vl53lx.Driver

	// mu serializes every use of ctrl; the scheduler runs each job on its own goroutine.
	mu   sync.Mutex
	ctrl *Controller
	// latest is read without mu.
	latest    atomic.Float64
	scheduler gocron.Scheduler

	cancelCtx  context.Context
	cancelFunc func()
}

func newSensor(
	ctx context.Context,
	name resource.Name,
	driver vl53lx.Driver,
	conf *Config,
	clk clock.Clock,
	logger logging.Logger,
) (*vl53l3cx, error) {
	policy, err := ParseReportPolicy(conf.Mode)
	if err != nil {
		return nil, err
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	s := &vl53l3cx{
		Named:      name.AsNamed(),
		conf:       conf,
		logger:     logger,
		driver:     driver,
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}
	s.latest.Store(math.NaN())
	s.ctrl = NewController(driver, ControllerConfig{
		Name:           name.Name,
		Address:        byte(conf.address()),
		TimingBudgetUs: conf.timingBudgetUs(),
		Policy:         policy,
		Publish:        s.publish,
		Clock:          clk,
	}, logger)
	s.dumpConfig()

	// the device may be on from a previous run; it must be off before setup moves it
	if err := driver.Power(ctx, false); err != nil {
		logger.Warnw("failed to power off before setup", "sensor", name.Name, "error", err)
	}
	s.mu.Lock()
	err = s.ctrl.Setup(ctx)
	s.mu.Unlock()
	if err != nil {
		cancelFunc()
		return nil, err
	}

	if err := s.startJobs(); err != nil {
		cancelFunc()
		return nil, multierr.Combine(err, driver.Power(ctx, false))
	}
	return s, nil
}

func (s *vl53l3cx) startJobs() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(s.conf.updateInterval()),
		gocron.NewTask(s.update),
		gocron.WithName(s.Name().Name+" update"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return multierr.Combine(err, scheduler.Shutdown())
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(s.conf.pollInterval()),
		gocron.NewTask(s.poll),
		gocron.WithName(s.Name().Name+" poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return multierr.Combine(err, scheduler.Shutdown())
	}
	s.scheduler = scheduler
	scheduler.Start()
	return nil
}

func (s *vl53l3cx) update() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ctrl.BeginCycle(s.cancelCtx); err != nil && !errors.Is(err, ErrCycleInProgress) {
		s.logger.Debugw("update failed", "error", err)
	}
}

func (s *vl53l3cx) poll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.PollCycle(s.cancelCtx)
}

func (s *vl53l3cx) publish(meters float64) {
	s.latest.Store(meters)
}

func (s *vl53l3cx) dumpConfig() {
	enable := s.conf.EnablePin
	if enable == "" {
		enable = "none"
	}
	s.logger.Infow("VL53L3CX",
		"name", s.Name().Name,
		"board", s.conf.Board,
		"i2c_bus", s.conf.I2CBus,
		"address", hexAddr(byte(s.conf.address())),
		"enable_pin", enable,
		"mode", s.ctrl.ReportPolicy(),
		"update_interval", s.conf.updateInterval(),
		"poll_interval", s.conf.pollInterval(),
		"timing_budget_us", s.conf.timingBudgetUs(),
	)
}

// Readings returns the last published distance along with the state of the cycle in flight.
func (s *vl53l3cx) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	distance := s.latest.Load()
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{
		"distance":     distance,
		"valid":        !math.IsNaN(distance),
		"object_count": s.ctrl.ObjectCount(),
		"state":        s.ctrl.State().String(),
	}, nil
}

// DoCommand supports {"calibrate": true}, {"set_mode": "closest"|"furtherest"} and
// {"get_measurements": true}.
func (s *vl53l3cx) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := map[string]interface{}{}
	if v, ok := cmd["calibrate"]; ok {
		if run, _ := v.(bool); run {
			if err := s.ctrl.Recalibrate(ctx); err != nil {
				return nil, err
			}
			resp["calibrate"] = "done"
		}
	}
	if v, ok := cmd["set_mode"]; ok {
		mode, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("set_mode expects a string, got %T", v)
		}
		policy, err := ParseReportPolicy(mode)
		if err != nil {
			return nil, err
		}
		s.ctrl.ConfigureReportPolicy(policy)
		resp["set_mode"] = policy.String()
	}
	if v, ok := cmd["get_measurements"]; ok {
		if get, _ := v.(bool); get {
			budget, err := s.ctrl.TimingBudgetUs(ctx)
			if err != nil {
				return nil, err
			}
			reading := s.ctrl.LastReading()
			objects := make([]interface{}, 0, reading.ObjectCount())
			for _, obj := range reading.Objects {
				objects = append(objects, map[string]interface{}{
					"distance_mm": int(obj.DistanceMM),
					"status":      obj.Status.String(),
					"valid":       obj.Valid(),
				})
			}
			resp["objects"] = objects
			resp["object_count"] = reading.ObjectCount()
			resp["timing_budget_us"] = int(budget)
			resp["stats"] = s.ctrl.Stats()
		}
	}
	if len(resp) == 0 {
		return nil, errors.Errorf("unknown command %v", cmd)
	}
	return resp, nil
}

// Close stops ranging and powers the device down.
func (s *vl53l3cx) Close(ctx context.Context) error {
	s.cancelFunc()
	var err error
	if s.scheduler != nil {
		err = s.scheduler.Shutdown()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return multierr.Combine(err, s.driver.Power(ctx, false))
}

func hexAddr(addr byte) string {
	return fmt.Sprintf("0x%02x", addr)
}
