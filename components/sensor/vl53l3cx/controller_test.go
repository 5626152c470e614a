package vl53l3cx

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"

	"github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx/vl53lx"
	"github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx/vl53lx/fake"
	"github.com/viam-modules/vl53l3cx/logging"
)

type harness struct {
	ctrl      *Controller
	driver    *fake.Driver
	clk       *clock.Mock
	logs      *observer.ObservedLogs
	published []float64
}

func newHarness(t *testing.T, policy ReportPolicy) *harness {
	t.Helper()
	logger, logs := logging.NewObservedTestLogger(t)
	h := &harness{driver: fake.NewDriver(), clk: clock.NewMock(), logs: logs}
	h.ctrl = NewController(h.driver, ControllerConfig{
		Name:           "tof",
		Address:        0x30,
		TimingBudgetUs: 100000,
		Policy:         policy,
		Publish:        func(m float64) { h.published = append(h.published, m) },
		Clock:          h.clk,
	}, logger)
	return h
}

// setUp runs Setup and forgets the calls it made.
func (h *harness) setUp(t *testing.T) {
	t.Helper()
	test.That(t, h.ctrl.Setup(context.Background()), test.ShouldBeNil)
	h.driver.ResetCalls()
}

func reading(objects ...vl53lx.ObjectRange) vl53lx.MeasurementReading {
	return vl53lx.MeasurementReading{StreamCount: 1, Objects: objects}
}

func TestSetupSequence(t *testing.T) {
	h := newHarness(t, Nearest)
	test.That(t, h.ctrl.State(), test.ShouldEqual, Idle)

	test.That(t, h.ctrl.Setup(context.Background()), test.ShouldBeNil)
	test.That(t, h.driver.Calls(), test.ShouldResemble, []string{
		fake.OpPower,
		fake.OpSetDeviceAddress,
		fake.OpWaitBooted,
		fake.OpDataInit,
		fake.OpSetTuningParameter,
		fake.OpPerformRefSpadManagement,
		fake.OpPerformXTalkCalibration,
		fake.OpSetTimingBudgetUs,
		fake.OpClearInterruptAndRestart,
	})
	test.That(t, h.driver.Powered(), test.ShouldBeTrue)
	test.That(t, h.driver.DeviceAddress(), test.ShouldEqual, byte(0x30))
	test.That(t, h.driver.BusAddress(), test.ShouldEqual, byte(0x30))
	power, ok := h.driver.Tuning(vl53lx.TuningPhasecalPatchPower)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, power, test.ShouldEqual, int32(2))

	test.That(t, h.ctrl.State(), test.ShouldEqual, Started)
	test.That(t, h.ctrl.LastIssued(), test.ShouldEqual, h.clk.Now())
	test.That(t, h.logs.FilterMessage("setup step failed").Len(), test.ShouldEqual, 0)

	test.That(t, h.ctrl.Setup(context.Background()), test.ShouldBeError, ErrAlreadySetUp)
}

func TestSetupFailuresAreWarnings(t *testing.T) {
	h := newHarness(t, Nearest)
	h.driver.FailOn(fake.OpSetDeviceAddress, errors.New("nack"))
	h.driver.FailOn(fake.OpPerformRefSpadManagement, errors.New("no signal"))
	h.driver.FailOn(fake.OpWaitBooted, errors.New("timeout"))

	test.That(t, h.ctrl.Setup(context.Background()), test.ShouldBeNil)

	// the local address follows the operating address even though the device did not move
	test.That(t, h.driver.BusAddress(), test.ShouldEqual, byte(0x30))
	addrWarnings := h.logs.FilterMessage("failed to change address")
	test.That(t, addrWarnings.Len(), test.ShouldEqual, 1)
	test.That(t, addrWarnings.All()[0].ContextMap()["address"], test.ShouldEqual, "0x30")

	// calibration stops at the failing step, everything after calibration still runs
	test.That(t, h.driver.Count(fake.OpPerformXTalkCalibration), test.ShouldEqual, 0)
	test.That(t, h.driver.Count(fake.OpDataInit), test.ShouldEqual, 1)
	test.That(t, h.driver.Count(fake.OpSetTimingBudgetUs), test.ShouldEqual, 1)
	test.That(t, h.driver.Count(fake.OpClearInterruptAndRestart), test.ShouldEqual, 1)
	test.That(t, h.ctrl.State(), test.ShouldEqual, Started)

	failed := h.logs.FilterMessage("setup step failed")
	test.That(t, failed.Len(), test.ShouldEqual, 2)
	steps := []interface{}{}
	for _, entry := range failed.All() {
		test.That(t, entry.ContextMap()["sensor"], test.ShouldEqual, "tof")
		steps = append(steps, entry.ContextMap()["step"])
	}
	test.That(t, steps, test.ShouldResemble, []interface{}{"wait for boot", "calibration"})
}

func TestBeginCycleRejectedWhileInFlight(t *testing.T) {
	h := newHarness(t, Nearest)
	h.setUp(t)
	issued := h.ctrl.LastIssued()
	h.clk.Add(40 * time.Millisecond)

	err := h.ctrl.BeginCycle(context.Background())
	test.That(t, err, test.ShouldBeError, ErrCycleInProgress)
	test.That(t, h.ctrl.State(), test.ShouldEqual, Started)
	test.That(t, h.ctrl.LastIssued(), test.ShouldEqual, issued)
	test.That(t, h.driver.Calls(), test.ShouldBeEmpty)
	test.That(t, len(h.published), test.ShouldEqual, 1)
	test.That(t, math.IsNaN(h.published[0]), test.ShouldBeTrue)
	test.That(t, h.logs.FilterMessage("update requested while a measurement is in progress").Len(),
		test.ShouldEqual, 1)

	// also rejected in Ready, which only PollCycle can observe, so check the guard directly
	h.ctrl.state = Ready
	test.That(t, h.ctrl.BeginCycle(context.Background()), test.ShouldBeError, ErrCycleInProgress)
	test.That(t, h.ctrl.State(), test.ShouldEqual, Ready)
}

func TestPollNotReady(t *testing.T) {
	h := newHarness(t, Nearest)
	h.setUp(t)

	h.driver.ScriptReady(false, false)
	h.ctrl.PollCycle(context.Background())
	h.ctrl.PollCycle(context.Background())
	test.That(t, h.ctrl.State(), test.ShouldEqual, Started)

	h.driver.FailOn(fake.OpIsDataReady, errors.New("bus error"))
	h.ctrl.PollCycle(context.Background())
	test.That(t, h.ctrl.State(), test.ShouldEqual, Started)
	test.That(t, h.driver.Count(fake.OpFetchReading), test.ShouldEqual, 0)
	test.That(t, h.published, test.ShouldBeEmpty)

	stats := h.ctrl.Stats().(ControllerStats)
	test.That(t, stats.NotReadyPolls, test.ShouldEqual, uint64(2))
	test.That(t, stats.ReadyErrors, test.ShouldEqual, uint64(1))
}

func TestPollIgnoredOutsideStarted(t *testing.T) {
	h := newHarness(t, Nearest)
	h.ctrl.PollCycle(context.Background())
	test.That(t, h.driver.Calls(), test.ShouldBeEmpty)
	test.That(t, h.ctrl.State(), test.ShouldEqual, Idle)
}

func TestPollPublishesAndReturnsToIdle(t *testing.T) {
	h := newHarness(t, Farthest)
	h.setUp(t)

	h.driver.QueueReadings(reading(obj(1200, true)))
	h.ctrl.PollCycle(context.Background())

	test.That(t, h.ctrl.State(), test.ShouldEqual, Idle)
	test.That(t, h.published, test.ShouldResemble, []float64{1.2})
	test.That(t, h.ctrl.ObjectCount(), test.ShouldEqual, 1)
	test.That(t, h.ctrl.LastReading(), test.ShouldResemble, reading(obj(1200, true)))
	test.That(t, h.driver.Calls(), test.ShouldResemble, []string{fake.OpIsDataReady, fake.OpFetchReading})

	// a second poll in Idle does nothing
	h.ctrl.PollCycle(context.Background())
	test.That(t, len(h.driver.Calls()), test.ShouldEqual, 2)

	h.clk.Add(500 * time.Millisecond)
	test.That(t, h.ctrl.BeginCycle(context.Background()), test.ShouldBeNil)
	test.That(t, h.ctrl.State(), test.ShouldEqual, Started)
	test.That(t, h.ctrl.LastIssued(), test.ShouldEqual, h.clk.Now())
	test.That(t, h.driver.Count(fake.OpClearInterruptAndRestart), test.ShouldEqual, 1)
}

func TestPollRestartsWhenNothingUsable(t *testing.T) {
	h := newHarness(t, Nearest)
	h.setUp(t)

	for i, r := range []vl53lx.MeasurementReading{
		reading(obj(500, false), obj(900, false)),
		reading(),
	} {
		h.clk.Add(30 * time.Millisecond)
		h.driver.QueueReadings(r)
		h.ctrl.PollCycle(context.Background())

		test.That(t, h.ctrl.State(), test.ShouldEqual, Started)
		test.That(t, h.ctrl.LastIssued(), test.ShouldEqual, h.clk.Now())
		test.That(t, h.driver.Count(fake.OpClearInterruptAndRestart), test.ShouldEqual, i+1)
	}
	test.That(t, h.published, test.ShouldBeEmpty)

	h.driver.FailOn(fake.OpFetchReading, errors.New("short read"))
	h.driver.ScriptReady(true)
	h.ctrl.PollCycle(context.Background())
	test.That(t, h.ctrl.State(), test.ShouldEqual, Started)
	test.That(t, h.driver.Count(fake.OpClearInterruptAndRestart), test.ShouldEqual, 3)
	test.That(t, h.published, test.ShouldBeEmpty)

	stats := h.ctrl.Stats().(ControllerStats)
	test.That(t, stats.Retried, test.ShouldEqual, uint64(3))
	test.That(t, stats.FetchErrors, test.ShouldEqual, uint64(1))
	test.That(t, stats.Published, test.ShouldEqual, uint64(0))
}

func TestBeginCycleStartFailure(t *testing.T) {
	h := newHarness(t, Nearest)
	test.That(t, h.ctrl.BeginCycle(context.Background()), test.ShouldBeNil)
	h.driver.QueueReadings(reading(obj(250, true)))
	h.ctrl.PollCycle(context.Background())
	test.That(t, h.ctrl.State(), test.ShouldEqual, Idle)

	h.driver.FailOn(fake.OpClearInterruptAndRestart, errors.New("nack"))
	err := h.ctrl.BeginCycle(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrCycleInProgress), test.ShouldBeFalse)
	test.That(t, h.ctrl.State(), test.ShouldEqual, Idle)
}

func TestReportPolicyAppliesFromNextCycle(t *testing.T) {
	h := newHarness(t, Nearest)
	h.setUp(t)

	h.ctrl.ConfigureReportPolicy(Farthest)
	test.That(t, h.ctrl.ReportPolicy(), test.ShouldEqual, Farthest)
	h.driver.QueueReadings(reading(obj(300, true), obj(700, true)))
	h.ctrl.PollCycle(context.Background())
	test.That(t, h.published, test.ShouldResemble, []float64{0.3})

	test.That(t, h.ctrl.BeginCycle(context.Background()), test.ShouldBeNil)
	h.driver.QueueReadings(reading(obj(300, true), obj(700, true)))
	h.ctrl.PollCycle(context.Background())
	test.That(t, h.published, test.ShouldResemble, []float64{0.3, 0.7})

	// while Idle the change is immediate
	h.ctrl.ConfigureReportPolicy(Nearest)
	test.That(t, h.ctrl.Stats().(ControllerStats).Policy, test.ShouldEqual, "closest")
}

func TestRecalibrate(t *testing.T) {
	h := newHarness(t, Nearest)
	h.setUp(t)

	test.That(t, h.ctrl.Recalibrate(context.Background()), test.ShouldBeNil)
	test.That(t, h.driver.Calls(), test.ShouldResemble, []string{
		fake.OpSetTuningParameter,
		fake.OpPerformRefSpadManagement,
		fake.OpPerformXTalkCalibration,
		fake.OpClearInterruptAndRestart,
	})
	test.That(t, h.ctrl.State(), test.ShouldEqual, Started)

	h.driver.QueueReadings(reading(obj(400, true)))
	h.ctrl.PollCycle(context.Background())
	test.That(t, h.ctrl.State(), test.ShouldEqual, Idle)
	h.driver.ResetCalls()

	h.driver.FailOn(fake.OpSetTuningParameter, errors.New("rejected"))
	err := h.ctrl.Recalibrate(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "set phasecal patch power")
	test.That(t, h.driver.Calls(), test.ShouldResemble, []string{fake.OpSetTuningParameter})
	test.That(t, h.ctrl.State(), test.ShouldEqual, Idle)

	stats := h.ctrl.Stats().(ControllerStats)
	test.That(t, stats.Recalibrated, test.ShouldEqual, uint64(2))
	// the restart after the first recalibration is not a retry
	test.That(t, stats.Retried, test.ShouldEqual, uint64(0))
}

func TestTimingBudgetRoundTrip(t *testing.T) {
	logger := logging.NewTestLogger(t)
	driver := fake.NewDriver()
	ctrl := NewController(driver, ControllerConfig{Name: "tof", TimingBudgetUs: 33000}, logger)
	test.That(t, ctrl.Setup(context.Background()), test.ShouldBeNil)

	budget, err := ctrl.TimingBudgetUs(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, budget, test.ShouldEqual, uint32(33000))

	defaults := NewController(fake.NewDriver(), ControllerConfig{}, logger)
	test.That(t, defaults.address, test.ShouldEqual, vl53lx.DefaultAddress)
	test.That(t, defaults.budgetUs, test.ShouldEqual, vl53lx.DefaultTimingBudgetUs)
}

func TestFarthestEndToEnd(t *testing.T) {
	h := newHarness(t, Farthest)
	test.That(t, h.ctrl.Setup(context.Background()), test.ShouldBeNil)
	test.That(t, h.ctrl.State(), test.ShouldEqual, Started)

	h.driver.ScriptReady(false)
	h.driver.QueueReadings(reading(obj(1200, true)))
	h.ctrl.PollCycle(context.Background())
	test.That(t, h.ctrl.State(), test.ShouldEqual, Started)
	h.ctrl.PollCycle(context.Background())

	test.That(t, h.published, test.ShouldResemble, []float64{1.2})
	test.That(t, h.ctrl.State(), test.ShouldEqual, Idle)

	stats := h.ctrl.Stats().(ControllerStats)
	test.That(t, stats.State, test.ShouldEqual, "idle")
	test.That(t, stats.CyclesStarted, test.ShouldEqual, uint64(1))
	test.That(t, stats.Published, test.ShouldEqual, uint64(1))
	test.That(t, stats.NotReadyPolls, test.ShouldEqual, uint64(1))
	test.That(t, stats.ValidObjects, test.ShouldEqual, 1)
	test.That(t, stats.InFlight, test.ShouldEqual, time.Duration(0))
}

func TestStatsInFlight(t *testing.T) {
	h := newHarness(t, Nearest)
	h.setUp(t)
	h.clk.Add(2 * time.Second)

	stats := h.ctrl.Stats().(ControllerStats)
	test.That(t, stats.State, test.ShouldEqual, "started")
	test.That(t, stats.InFlight, test.ShouldEqual, 2*time.Second)
	test.That(t, stats.LastIssued, test.ShouldEqual, h.ctrl.LastIssued())
}
