package vl53lx

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/viam-modules/vl53l3cx/components/board"
	"github.com/viam-modules/vl53l3cx/logging"
)

const (
	// PowerSettle is how long the device needs after its enable line changes level.
	PowerSettle = 100 * time.Microsecond

	bootTimeout  = 500 * time.Millisecond
	pollInterval = time.Millisecond
)

// Device is a VL53LX reached over I2C, with an optional enable (XSHUT) line.
type Device struct {
	bus    board.I2C
	enable board.GPIOPin
	addr   byte
	clock  clock.Clock
	logger logging.Logger

	fastOscFrequency   uint16
	oscCalibrateVal    uint16
	interruptPolarity  byte
	phasecalPatchPower int32
}

// NewDevice returns a Device that talks to addr on bus. enable may be nil. Boot and calibration
// timeouts are measured on clk, the wall clock if nil.
func NewDevice(bus board.I2C, enable board.GPIOPin, addr byte, clk clock.Clock, logger logging.Logger) *Device {
	if clk == nil {
		clk = clock.New()
	}
	return &Device{
		bus:    bus,
		enable: enable,
		addr:   addr,
		clock:  clk,
		logger: logger,
	}
}

// Power drives the enable line high or low and waits PowerSettle.
func (d *Device) Power(ctx context.Context, on bool) error {
	if d.enable == nil {
		return nil
	}
	if err := d.enable.Set(ctx, on, nil); err != nil {
		return errors.Wrap(err, "failed to set enable pin")
	}
	if !goutils.SelectContextOrWait(ctx, PowerSettle) {
		return ctx.Err()
	}
	return nil
}

// SetBusAddress changes the address subsequent transactions go to.
func (d *Device) SetBusAddress(addr byte) {
	d.addr = addr
}

// BusAddress returns the address transactions go to.
func (d *Device) BusAddress() byte {
	return d.addr
}

// SetDeviceAddress tells the device to answer on addr from now on. The local bus address is left
// unchanged; follow with SetBusAddress.
func (d *Device) SetDeviceAddress(ctx context.Context, addr byte) error {
	return d.writeReg(ctx, RegI2CSlaveDeviceAddress, addr&0x7F)
}

// WaitBooted polls the firmware status until the device reports it has booted.
func (d *Device) WaitBooted(ctx context.Context) error {
	deadline := d.clock.Now().Add(bootTimeout)
	for {
		// the device NACKs for a while after power up, so read errors are retried too
		status, err := d.readReg(ctx, RegFirmwareSystemStatus)
		if err == nil && status&0x01 != 0 {
			return nil
		}
		if d.clock.Now().After(deadline) {
			if err != nil {
				return errors.Wrap(err, "timeout waiting for boot completion")
			}
			return errors.New("timeout waiting for boot completion")
		}
		if !goutils.SelectContextOrWait(ctx, pollInterval) {
			return ctx.Err()
		}
	}
}

// DataInit checks the device identity, switches the I/O to 2V8 and loads the oscillator and
// interrupt configuration later calls rely on.
func (d *Device) DataInit(ctx context.Context) error {
	id, err := d.readRegs(ctx, RegIdentificationModelID, 2)
	if err != nil {
		return err
	}
	if id[0] != ModelID || id[1] != ModuleType {
		return errors.Errorf("unexpected model id 0x%02x module type 0x%02x", id[0], id[1])
	}

	pad, err := d.readReg(ctx, RegPadI2CHvExtsupConfig)
	if err != nil {
		return err
	}
	if err := d.writeReg(ctx, RegPadI2CHvExtsupConfig, pad|0x01); err != nil {
		return err
	}

	if d.fastOscFrequency, err = d.readReg16(ctx, RegOscMeasuredFastOscFrequency); err != nil {
		return err
	}
	if d.oscCalibrateVal, err = d.readReg16(ctx, RegResultOscCalibrateVal); err != nil {
		return err
	}

	mux, err := d.readReg(ctx, RegGpioHvMuxCtrl)
	if err != nil {
		return err
	}
	// bit 4 set means the interrupt line is active low
	if mux&0x10 == 0 {
		d.interruptPolarity = 1
	} else {
		d.interruptPolarity = 0
	}

	// long distance mode
	if err := d.writeReg(ctx, RegRangeConfigVcselPeriodA, 0x0F); err != nil {
		return err
	}
	if err := d.writeReg(ctx, RegRangeConfigVcselPeriodB, 0x0D); err != nil {
		return err
	}
	return d.writeReg16(ctx, RegDssManualEffectiveSpads, 200<<8)
}

// SetTuningParameter sets a tuning parameter. Parameters take effect on the next SetTimingBudgetUs.
func (d *Device) SetTuningParameter(ctx context.Context, param TuningParameter, value int32) error {
	switch param {
	case TuningPhasecalPatchPower:
		if value < 0 || value > 3 {
			return errors.Errorf("%s must be between 0 and 3, got %d", param, value)
		}
		d.phasecalPatchPower = value
		return nil
	default:
		return errors.Errorf("unsupported tuning parameter %d", param)
	}
}

// StartMeasurement starts a single measurement.
func (d *Device) StartMeasurement(ctx context.Context) error {
	return d.writeReg(ctx, RegSystemModeStart, ModeStartSingleShot)
}

// ClearInterruptAndRestart acknowledges the previous result and starts the next measurement.
func (d *Device) ClearInterruptAndRestart(ctx context.Context) error {
	if err := d.clearInterrupt(ctx); err != nil {
		return err
	}
	return d.StartMeasurement(ctx)
}

func (d *Device) clearInterrupt(ctx context.Context) error {
	return d.writeReg(ctx, RegSystemInterruptClear, 0x01)
}

// IsDataReady reports whether the interrupt line is asserted.
func (d *Device) IsDataReady(ctx context.Context) (bool, error) {
	status, err := d.readReg(ctx, RegGpioTioHvStatus)
	if err != nil {
		return false, err
	}
	return status&0x01 == d.interruptPolarity, nil
}

// FetchReading reads the result of the last measurement. The result registers hold a single
// target; a reading with no target has no objects.
func (d *Device) FetchReading(ctx context.Context) (MeasurementReading, error) {
	res, err := d.readResults(ctx)
	if err != nil {
		return MeasurementReading{}, err
	}
	reading := MeasurementReading{StreamCount: res.streamCount}
	if obj, ok := res.objectRange(); ok {
		reading.Objects = append(reading.Objects, obj)
	}
	return reading, nil
}

// waitDataReady blocks until a measurement completes. Only calibration uses it.
func (d *Device) waitDataReady(ctx context.Context, timeout time.Duration) error {
	deadline := d.clock.Now().Add(timeout)
	for {
		ready, err := d.IsDataReady(ctx)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if d.clock.Now().After(deadline) {
			return errors.New("timeout waiting for measurement")
		}
		if !goutils.SelectContextOrWait(ctx, pollInterval) {
			return ctx.Err()
		}
	}
}
