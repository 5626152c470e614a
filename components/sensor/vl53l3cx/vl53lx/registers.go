package vl53lx

import (
	"context"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Register indices. All registers are addressed with a 16-bit big-endian index and multi-byte
// values are big-endian.
const (
	RegSoftReset                   uint16 = 0x0000
	RegI2CSlaveDeviceAddress       uint16 = 0x0001
	RegOscMeasuredFastOscFrequency uint16 = 0x0006
	RegXtalkPlaneOffsetKcps        uint16 = 0x0016
	RegXtalkXPlaneGradientKcps     uint16 = 0x0018
	RegXtalkYPlaneGradientKcps     uint16 = 0x001A
	RegPadI2CHvExtsupConfig        uint16 = 0x002E
	RegGpioHvMuxCtrl               uint16 = 0x0030
	RegGpioTioHvStatus             uint16 = 0x0031
	RegPhasecalConfigTimeoutMacrop uint16 = 0x004B
	RegDssManualEffectiveSpads     uint16 = 0x0054
	RegMmConfigTimeoutMacropA      uint16 = 0x005A
	RegMmConfigTimeoutMacropB      uint16 = 0x005C
	RegRangeConfigTimeoutMacropA   uint16 = 0x005E
	RegRangeConfigVcselPeriodA     uint16 = 0x0060
	RegRangeConfigTimeoutMacropB   uint16 = 0x0061
	RegRangeConfigVcselPeriodB     uint16 = 0x0063
	RegSystemInterruptClear        uint16 = 0x0086
	RegSystemModeStart             uint16 = 0x0087
	RegResultRangeStatus           uint16 = 0x0089
	RegResultOscCalibrateVal       uint16 = 0x00DE
	RegFirmwareSystemStatus        uint16 = 0x00E5
	RegIdentificationModelID       uint16 = 0x010F
	RegIdentificationModuleType    uint16 = 0x0110
)

// Values written to RegSystemModeStart.
const (
	ModeStartSingleShot byte = 0x10
	ModeStartTimed      byte = 0x40
	ModeStartAbort      byte = 0x80
)

const (
	// ModelID and ModuleType identify a VL53L3CX.
	ModelID    byte = 0xEA
	ModuleType byte = 0xAA

	// ResultBlockSize is the length of the result block starting at RegResultRangeStatus.
	ResultBlockSize = 17
)

func (d *Device) writeRegs(ctx context.Context, reg uint16, data ...byte) error {
	handle, err := d.bus.OpenHandle(d.addr)
	if err != nil {
		return err
	}
	tx := make([]byte, 2, 2+len(data))
	binary.BigEndian.PutUint16(tx, reg)
	tx = append(tx, data...)
	err = handle.Write(ctx, tx)
	if closeErr := handle.Close(); err == nil {
		err = closeErr
	}
	return errors.Wrapf(err, "write register 0x%04x", reg)
}

func (d *Device) readRegs(ctx context.Context, reg uint16, count int) ([]byte, error) {
	handle, err := d.bus.OpenHandle(d.addr)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := handle.Close(); closeErr != nil {
			d.logger.Debugw("failed to close i2c handle", "error", closeErr)
		}
	}()

	index := make([]byte, 2)
	binary.BigEndian.PutUint16(index, reg)
	if err := handle.Write(ctx, index); err != nil {
		return nil, errors.Wrapf(err, "select register 0x%04x", reg)
	}
	buffer, err := handle.Read(ctx, count)
	if err != nil {
		return nil, errors.Wrapf(err, "read register 0x%04x", reg)
	}
	if len(buffer) != count {
		return nil, errors.Errorf("read register 0x%04x: got %d bytes, wanted %d", reg, len(buffer), count)
	}
	return buffer, nil
}

func (d *Device) writeReg(ctx context.Context, reg uint16, value byte) error {
	return d.writeRegs(ctx, reg, value)
}

func (d *Device) writeReg16(ctx context.Context, reg, value uint16) error {
	return d.writeRegs(ctx, reg, byte(value>>8), byte(value))
}

func (d *Device) readReg(ctx context.Context, reg uint16) (byte, error) {
	buffer, err := d.readRegs(ctx, reg, 1)
	if err != nil {
		return 0, err
	}
	return buffer[0], nil
}

func (d *Device) readReg16(ctx context.Context, reg uint16) (uint16, error) {
	buffer, err := d.readRegs(ctx, reg, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buffer), nil
}
