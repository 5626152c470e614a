// Package fake implements a scripted vl53lx.Driver that records every call made to it.
package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx/vl53lx"
)

// Operation names as they appear in Calls.
const (
	OpPower                    = "Power"
	OpSetDeviceAddress         = "SetDeviceAddress"
	OpWaitBooted               = "WaitBooted"
	OpDataInit                 = "DataInit"
	OpSetTuningParameter       = "SetTuningParameter"
	OpPerformRefSpadManagement = "PerformRefSpadManagement"
	OpPerformXTalkCalibration  = "PerformXTalkCalibration"
	OpSetTimingBudgetUs        = "SetTimingBudgetUs"
	OpTimingBudgetUs           = "TimingBudgetUs"
	OpStartMeasurement         = "StartMeasurement"
	OpClearInterruptAndRestart = "ClearInterruptAndRestart"
	OpIsDataReady              = "IsDataReady"
	OpFetchReading             = "FetchReading"
)

// Driver is a vl53lx.Driver whose readiness and readings are scripted by the test.
type Driver struct {
	mu sync.Mutex

	calls      []string
	failures   map[string]error
	busAddr    byte
	deviceAddr byte
	powered    bool
	budgetUs   uint32
	tuning     map[vl53lx.TuningParameter]int32
	ready      []bool
	readings   []vl53lx.MeasurementReading
}

var _ vl53lx.Driver = (*Driver)(nil)

// NewDriver returns a powered-down driver at the factory default address.
func NewDriver() *Driver {
	return &Driver{
		failures:   map[string]error{},
		busAddr:    vl53lx.DefaultAddress,
		deviceAddr: vl53lx.DefaultAddress,
		tuning:     map[vl53lx.TuningParameter]int32{},
	}
}

// FailOn makes every later call to op return err. A nil err clears the failure.
func (d *Driver) FailOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// ScriptReady queues the answers IsDataReady gives before it falls back to reporting ready
// whenever a reading is queued.
func (d *Driver) ScriptReady(ready ...bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = append(d.ready, ready...)
}

// QueueReadings queues the readings FetchReading returns, in order.
func (d *Driver) QueueReadings(readings ...vl53lx.MeasurementReading) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readings = append(d.readings, readings...)
}

// Calls returns the operations called so far, oldest first.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// ResetCalls forgets the recorded calls.
func (d *Driver) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// Count returns how many times op was called.
func (d *Driver) Count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Powered reports the last level Power was called with.
func (d *Driver) Powered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.powered
}

// DeviceAddress returns the address the device was last programmed to answer on.
func (d *Driver) DeviceAddress() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceAddr
}

// Tuning returns the value last set for a tuning parameter.
func (d *Driver) Tuning(param vl53lx.TuningParameter) (int32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.tuning[param]
	return v, ok
}

// record must be called with mu held.
func (d *Driver) record(op string) error {
	d.calls = append(d.calls, op)
	return d.failures[op]
}

// Power records the enable level.
func (d *Driver) Power(ctx context.Context, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpPower); err != nil {
		return err
	}
	d.powered = on
	return nil
}

// SetBusAddress sets the local address.
func (d *Driver) SetBusAddress(addr byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busAddr = addr
}

// BusAddress returns the local address.
func (d *Driver) BusAddress() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busAddr
}

// SetDeviceAddress reprograms the device address. It fails like a NACK unless the local address
// matches the device.
func (d *Driver) SetDeviceAddress(ctx context.Context, addr byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpSetDeviceAddress); err != nil {
		return err
	}
	if d.busAddr != d.deviceAddr {
		return errors.Errorf("no ack from address 0x%02x", d.busAddr)
	}
	d.deviceAddr = addr
	return nil
}

// WaitBooted records the call.
func (d *Driver) WaitBooted(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record(OpWaitBooted)
}

// DataInit records the call.
func (d *Driver) DataInit(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record(OpDataInit)
}

// SetTuningParameter stores the value.
func (d *Driver) SetTuningParameter(ctx context.Context, param vl53lx.TuningParameter, value int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpSetTuningParameter); err != nil {
		return err
	}
	d.tuning[param] = value
	return nil
}

// PerformRefSpadManagement records the call.
func (d *Driver) PerformRefSpadManagement(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record(OpPerformRefSpadManagement)
}

// PerformXTalkCalibration records the call.
func (d *Driver) PerformXTalkCalibration(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record(OpPerformXTalkCalibration)
}

// SetTimingBudgetUs stores the budget exactly.
func (d *Driver) SetTimingBudgetUs(ctx context.Context, budgetUs uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpSetTimingBudgetUs); err != nil {
		return err
	}
	d.budgetUs = budgetUs
	return nil
}

// TimingBudgetUs returns the stored budget.
func (d *Driver) TimingBudgetUs(ctx context.Context) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpTimingBudgetUs); err != nil {
		return 0, err
	}
	return d.budgetUs, nil
}

// StartMeasurement records the call.
func (d *Driver) StartMeasurement(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record(OpStartMeasurement)
}

// ClearInterruptAndRestart records the call.
func (d *Driver) ClearInterruptAndRestart(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record(OpClearInterruptAndRestart)
}

// IsDataReady pops the next scripted answer, or reports whether a reading is queued.
func (d *Driver) IsDataReady(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpIsDataReady); err != nil {
		return false, err
	}
	if len(d.ready) > 0 {
		ready := d.ready[0]
		d.ready = d.ready[1:]
		return ready, nil
	}
	return len(d.readings) > 0, nil
}

// FetchReading pops the next queued reading. With nothing queued the reading is empty.
func (d *Driver) FetchReading(ctx context.Context) (vl53lx.MeasurementReading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record(OpFetchReading); err != nil {
		return vl53lx.MeasurementReading{}, err
	}
	if len(d.readings) == 0 {
		return vl53lx.MeasurementReading{}, nil
	}
	reading := d.readings[0]
	d.readings = d.readings[1:]
	return reading, nil
}
