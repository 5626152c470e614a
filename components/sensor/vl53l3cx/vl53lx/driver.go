// Package vl53lx talks to the ST VL53LX family of time-of-flight ranging sensors (VL53L3CX and
// relatives). Driver is the capability set the ranging cycle controller depends on; Device is its
// register-level implementation over an I2C bus.
package vl53lx

import (
	"context"
)

const (
	// DefaultAddress is the address every VL53LX answers on after power-up.
	DefaultAddress byte = 0x29
	// MaxObjects is the most objects a single reading can report.
	MaxObjects = 4
	// DefaultTimingBudgetUs is the measurement timing budget used unless configured otherwise.
	DefaultTimingBudgetUs uint32 = 100000
)

// TuningParameter identifies a device tuning parameter.
type TuningParameter int

const (
	// TuningPhasecalPatchPower selects the phase calibration patch power, 0 through 3.
	TuningPhasecalPatchPower TuningParameter = iota + 1
)

func (p TuningParameter) String() string {
	switch p {
	case TuningPhasecalPatchPower:
		return "phasecal_patch_power"
	default:
		return "unknown"
	}
}

// Driver is the set of device operations needed to bring a sensor up and run ranging cycles.
// Every blocking call takes a context and reports failures as errors.
type Driver interface {
	// Power drives the enable line and waits for the device to settle. It is a no-op when the
	// sensor has no enable line.
	Power(ctx context.Context, on bool) error
	// SetBusAddress changes the address used locally to reach the device. It does not touch the
	// device.
	SetBusAddress(addr byte)
	// BusAddress returns the address used locally to reach the device.
	BusAddress() byte
	// SetDeviceAddress reprograms the address the device answers on.
	SetDeviceAddress(ctx context.Context, addr byte) error

	WaitBooted(ctx context.Context) error
	DataInit(ctx context.Context) error
	SetTuningParameter(ctx context.Context, param TuningParameter, value int32) error
	PerformRefSpadManagement(ctx context.Context) error
	PerformXTalkCalibration(ctx context.Context) error

	SetTimingBudgetUs(ctx context.Context, budgetUs uint32) error
	TimingBudgetUs(ctx context.Context) (uint32, error)

	StartMeasurement(ctx context.Context) error
	ClearInterruptAndRestart(ctx context.Context) error
	// IsDataReady reports whether a new reading can be fetched. It never blocks waiting for one.
	IsDataReady(ctx context.Context) (bool, error)
	FetchReading(ctx context.Context) (MeasurementReading, error)
}

// RangeStatus is the per-object status reported by the device. Only RangeValid is usable.
type RangeStatus uint8

// Range statuses.
const (
	RangeValid                RangeStatus = 0
	SigmaFail                 RangeStatus = 1
	SignalFail                RangeStatus = 2
	RangeValidMinRangeClipped RangeStatus = 3
	OutOfBoundsFail           RangeStatus = 4
	HardwareFail              RangeStatus = 5
	RangeValidNoWrapCheckFail RangeStatus = 6
	WrapTargetFail            RangeStatus = 7
	XtalkSignalFail           RangeStatus = 9
	SynchronizationInt        RangeStatus = 10
	MinRangeFail              RangeStatus = 13
	NoneStatus                RangeStatus = 255
)

func (s RangeStatus) String() string {
	switch s {
	case RangeValid:
		return "range valid"
	case SigmaFail:
		return "sigma fail"
	case SignalFail:
		return "signal fail"
	case RangeValidMinRangeClipped:
		return "range valid, min range clipped"
	case OutOfBoundsFail:
		return "out of bounds fail"
	case HardwareFail:
		return "hardware fail"
	case RangeValidNoWrapCheckFail:
		return "range valid, no wrap check fail"
	case WrapTargetFail:
		return "wrap target fail"
	case XtalkSignalFail:
		return "xtalk signal fail"
	case SynchronizationInt:
		return "synchronization int"
	case MinRangeFail:
		return "min range fail"
	case NoneStatus:
		return "no update"
	default:
		return "unknown status"
	}
}

// ObjectRange is one detected object.
type ObjectRange struct {
	DistanceMM      int16       `json:"distance_mm"`
	Status          RangeStatus `json:"status"`
	SignalRateMCPS  float32     `json:"signal_rate_mcps"`
	AmbientRateMCPS float32     `json:"ambient_rate_mcps"`
}

// Valid reports whether the object's distance can be used.
func (o ObjectRange) Valid() bool {
	return o.Status == RangeValid
}

// MeasurementReading is everything one measurement produced, nearest object first as the device
// reports them.
type MeasurementReading struct {
	StreamCount uint8         `json:"stream_count"`
	Objects     []ObjectRange `json:"objects"`
}

// ObjectCount returns the number of objects found.
func (m MeasurementReading) ObjectCount() int {
	return len(m.Objects)
}
