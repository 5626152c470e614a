package vl53l3cx

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx/vl53lx"
	"github.com/viam-modules/vl53l3cx/logging"
)

var (
	// ErrCycleInProgress is returned when a cycle is asked to begin while another is in flight.
	ErrCycleInProgress = errors.New("ranging cycle already in progress")
	// ErrAlreadySetUp is returned by a second call to Setup.
	ErrAlreadySetUp = errors.New("sensor already set up")
)

// phasecalPatchPower is the phase calibration patch power used for every calibration.
const phasecalPatchPower = 2

// PublishFunc receives every reported distance in meters, or NaN when there is none.
type PublishFunc func(meters float64)

// ControllerConfig holds what a Controller needs besides its driver.
type ControllerConfig struct {
	// Name identifies the sensor in log messages.
	Name string
	// Address is the bus address the device is moved to during setup.
	Address        byte
	TimingBudgetUs uint32
	Policy         ReportPolicy
	Publish        PublishFunc
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// A Controller runs ranging cycles on one device. BeginCycle starts a measurement and PollCycle
// checks on it; neither waits for the hardware. A Controller is not safe for concurrent use.
type Controller struct {
	name     string
	driver   vl53lx.Driver
	address  byte
	budgetUs uint32
	publish  PublishFunc
	clock    clock.Clock
	logger   logging.Logger

	policy        ReportPolicy
	pendingPolicy ReportPolicy

	setUp       bool
	state       CycleState
	lastIssued  time.Time
	lastReading vl53lx.MeasurementReading
	counters    counters
}

type counters struct {
	started       uint64
	published     uint64
	retried       uint64
	rejected      uint64
	notReadyPolls uint64
	readyErrors   uint64
	fetchErrors   uint64
	recalibrated  uint64
}

// NewController returns an Idle controller. Nothing is sent to the device until Setup.
func NewController(driver vl53lx.Driver, conf ControllerConfig, logger logging.Logger) *Controller {
	c := &Controller{
		name:          conf.Name,
		driver:        driver,
		address:       conf.Address,
		budgetUs:      conf.TimingBudgetUs,
		publish:       conf.Publish,
		clock:         conf.Clock,
		logger:        logger,
		policy:        conf.Policy,
		pendingPolicy: conf.Policy,
		state:         Idle,
	}
	if c.address == 0 {
		c.address = vl53lx.DefaultAddress
	}
	if c.budgetUs == 0 {
		c.budgetUs = vl53lx.DefaultTimingBudgetUs
	}
	if c.publish == nil {
		c.publish = func(float64) {}
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	return c
}

// Setup powers the device, moves it to its operating address, boots, calibrates and starts the
// first measurement. A failing step is logged and the remaining steps still run, so a sensor that
// is slow to come up can still recover on later cycles.
func (c *Controller) Setup(ctx context.Context) error {
	if c.setUp {
		return ErrAlreadySetUp
	}
	c.setUp = true

	if err := c.driver.Power(ctx, true); err != nil {
		c.warnStep("power on", err)
	}

	c.driver.SetBusAddress(vl53lx.DefaultAddress)
	if err := c.driver.SetDeviceAddress(ctx, c.address); err != nil {
		c.logger.Warnw("failed to change address",
			"sensor", c.name, "address", hexAddr(c.address), "error", err)
	}
	c.driver.SetBusAddress(c.address)

	if err := c.driver.WaitBooted(ctx); err != nil {
		c.warnStep("wait for boot", err)
	}
	if err := c.driver.DataInit(ctx); err != nil {
		c.warnStep("data init", err)
	}
	if err := c.calibrate(ctx); err != nil {
		c.warnStep("calibration", err)
	}
	if err := c.driver.SetTimingBudgetUs(ctx, c.budgetUs); err != nil {
		c.warnStep("set timing budget", err)
	}

	if err := c.driver.ClearInterruptAndRestart(ctx); err != nil {
		c.warnStep("start measurement", err)
	}
	c.counters.started++
	c.markIssued()
	c.setState(Started)
	return nil
}

// Recalibrate reruns the calibration steps. A cycle in flight is abandoned and restarted once
// calibration is done.
func (c *Controller) Recalibrate(ctx context.Context) error {
	c.counters.recalibrated++
	err := c.calibrate(ctx)
	if err != nil {
		c.warnStep("calibration", err)
	}
	if c.state != Idle {
		c.logger.Debugw("restarting measurement after calibration", "sensor", c.name)
		c.restart(ctx)
	}
	return err
}

// calibrate runs the calibration steps in order, stopping at the first failure.
func (c *Controller) calibrate(ctx context.Context) error {
	if err := c.driver.SetTuningParameter(ctx, vl53lx.TuningPhasecalPatchPower, phasecalPatchPower); err != nil {
		return errors.Wrap(err, "set phasecal patch power")
	}
	if err := c.driver.PerformRefSpadManagement(ctx); err != nil {
		return errors.Wrap(err, "reference spad management")
	}
	if err := c.driver.PerformXTalkCalibration(ctx); err != nil {
		return errors.Wrap(err, "crosstalk calibration")
	}
	return nil
}

// BeginCycle starts a measurement. Outside Idle the request is rejected: NaN is published and
// ErrCycleInProgress returned, with the cycle in flight left alone.
func (c *Controller) BeginCycle(ctx context.Context) error {
	if c.state != Idle {
		c.counters.rejected++
		c.logger.Warnw("update requested while a measurement is in progress",
			"sensor", c.name, "state", c.state, "in_flight", c.clock.Since(c.lastIssued))
		c.publish(math.NaN())
		return ErrCycleInProgress
	}

	c.policy = c.pendingPolicy
	if err := c.driver.ClearInterruptAndRestart(ctx); err != nil {
		c.logger.Warnw("failed to start measurement", "sensor", c.name, "error", err)
		return errors.Wrap(err, "start measurement")
	}
	c.counters.started++
	c.markIssued()
	c.setState(Started)
	return nil
}

// PollCycle checks whether the measurement in flight is done. When it is, the reading is reduced
// and either published, returning to Idle, or the measurement is restarted if nothing in it was
// usable. It does nothing outside Started.
func (c *Controller) PollCycle(ctx context.Context) {
	if c.state != Started {
		return
	}

	ready, err := c.driver.IsDataReady(ctx)
	if err != nil {
		c.counters.readyErrors++
		c.logger.Debugw("data ready check failed", "sensor", c.name, "error", err)
		return
	}
	if !ready {
		c.counters.notReadyPolls++
		return
	}
	c.setState(Ready)

	reading, err := c.driver.FetchReading(ctx)
	if err != nil {
		c.counters.fetchErrors++
		c.logger.Warnw("failed to fetch reading", "sensor", c.name, "error", err)
		c.counters.retried++
		c.restart(ctx)
		return
	}
	c.lastReading = reading

	idx, ok := Reduce(reading.Objects, c.policy)
	if !ok {
		c.logger.Debugw("no valid object, restarting measurement",
			"sensor", c.name, "objects", reading.ObjectCount())
		c.counters.retried++
		c.restart(ctx)
		return
	}

	meters := float64(reading.Objects[idx].DistanceMM) / 1000
	c.logger.Debugw("publishing distance", "sensor", c.name, "meters", meters, "policy", c.policy)
	c.counters.published++
	c.publish(meters)
	c.setState(Idle)
}

func (c *Controller) restart(ctx context.Context) {
	if err := c.driver.ClearInterruptAndRestart(ctx); err != nil {
		c.logger.Warnw("failed to restart measurement", "sensor", c.name, "error", err)
	}
	c.markIssued()
	c.setState(Started)
}

// ConfigureReportPolicy changes the report policy. A cycle in flight keeps the policy it began
// with; the new one applies from the next cycle.
func (c *Controller) ConfigureReportPolicy(policy ReportPolicy) {
	c.pendingPolicy = policy
	if c.state == Idle {
		c.policy = policy
	}
}

// ReportPolicy returns the policy the next cycle will use.
func (c *Controller) ReportPolicy() ReportPolicy {
	return c.pendingPolicy
}

// ObjectCount returns how many objects the last reading held.
func (c *Controller) ObjectCount() int {
	return c.lastReading.ObjectCount()
}

// TimingBudgetUs reads the timing budget back from the device.
func (c *Controller) TimingBudgetUs(ctx context.Context) (uint32, error) {
	return c.driver.TimingBudgetUs(ctx)
}

// LastReading returns the last reading fetched.
func (c *Controller) LastReading() vl53lx.MeasurementReading {
	return c.lastReading
}

// State returns the current cycle state.
func (c *Controller) State() CycleState {
	return c.state
}

// LastIssued returns when the last measurement was started.
func (c *Controller) LastIssued() time.Time {
	return c.lastIssued
}

// ControllerStats summarizes what the controller has done so far.
type ControllerStats struct {
	State         string
	Policy        string
	CyclesStarted uint64
	Published     uint64
	// Retried counts measurements restarted because a reading had nothing usable.
	Retried       uint64
	Rejected      uint64
	NotReadyPolls uint64
	ReadyErrors   uint64
	FetchErrors   uint64
	Recalibrated  uint64
	ValidObjects  int
	LastIssued    time.Time
	// InFlight is how long the current measurement has been running, zero when Idle.
	InFlight time.Duration
}

// Stats returns a snapshot of the controller's counters.
func (c *Controller) Stats() any {
	stats := ControllerStats{
		State:         c.state.String(),
		Policy:        c.policy.String(),
		CyclesStarted: c.counters.started,
		Published:     c.counters.published,
		Retried:       c.counters.retried,
		Rejected:      c.counters.rejected,
		NotReadyPolls: c.counters.notReadyPolls,
		ReadyErrors:   c.counters.readyErrors,
		FetchErrors:   c.counters.fetchErrors,
		Recalibrated:  c.counters.recalibrated,
		ValidObjects:  lo.CountBy(c.lastReading.Objects, func(o vl53lx.ObjectRange) bool { return o.Valid() }),
		LastIssued:    c.lastIssued,
	}
	if c.state != Idle {
		stats.InFlight = c.clock.Since(c.lastIssued)
	}
	return stats
}

func (c *Controller) markIssued() {
	c.lastIssued = c.clock.Now()
}

func (c *Controller) setState(to CycleState) {
	if to == c.state {
		return
	}
	if !CanTransition(c.state, to) {
		c.logger.Errorw("illegal cycle state transition", "sensor", c.name, "from", c.state, "to", to)
		return
	}
	c.state = to
}

func (c *Controller) warnStep(step string, err error) {
	c.logger.Warnw("setup step failed", "sensor", c.name, "step", step, "error", err)
}
