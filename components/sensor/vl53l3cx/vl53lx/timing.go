package vl53lx

import (
	"context"

	"github.com/pkg/errors"
)

const (
	// TimingGuard is the fixed overhead, in microseconds, of every measurement.
	TimingGuard uint32 = 4528
	// MaxTimingBudgetUs is the longest supported measurement timing budget.
	MaxTimingBudgetUs uint32 = 1100000 + TimingGuard

	basePhasecalTimeoutUs uint32 = 1000
)

// macroPeriod returns the macro period in microseconds, 12.12 fixed point, for a VCSEL period
// register value given the fast oscillator frequency in MHz, 4.12 fixed point.
func macroPeriod(fastOscFrequency uint16, vcselPeriod byte) uint32 {
	if fastOscFrequency == 0 {
		return 0
	}
	// 0.24 fixed point
	pllPeriodUs := (uint32(1) << 30) / uint32(fastOscFrequency)
	vcselPeriodPclks := (uint32(vcselPeriod) + 1) << 1

	macroPeriodUs := 2304 * pllPeriodUs
	macroPeriodUs >>= 6
	macroPeriodUs *= vcselPeriodPclks
	macroPeriodUs >>= 6
	return macroPeriodUs
}

func timeoutMclksToMicroseconds(timeoutMclks, macroPeriodUs uint32) uint32 {
	return uint32((uint64(timeoutMclks)*uint64(macroPeriodUs) + 0x800) >> 12)
}

func timeoutMicrosecondsToMclks(timeoutUs, macroPeriodUs uint32) uint32 {
	if macroPeriodUs == 0 {
		return 0
	}
	return uint32(((uint64(timeoutUs) << 12) + uint64(macroPeriodUs>>1)) / uint64(macroPeriodUs))
}

// encodeTimeout packs a timeout in macro periods as (LSByte * 2^MSByte) + 1.
func encodeTimeout(timeoutMclks uint32) uint16 {
	if timeoutMclks == 0 {
		return 0
	}
	lsByte := timeoutMclks - 1
	var msByte uint16
	for lsByte&0xFFFFFF00 > 0 {
		lsByte >>= 1
		msByte++
	}
	return msByte<<8 | uint16(lsByte&0xFF)
}

func decodeTimeout(regVal uint16) uint32 {
	return uint32(regVal&0xFF)<<(regVal>>8) + 1
}

// SetTimingBudgetUs splits the budget evenly between the A and B ranging phases.
func (d *Device) SetTimingBudgetUs(ctx context.Context, budgetUs uint32) error {
	if budgetUs <= TimingGuard || budgetUs > MaxTimingBudgetUs {
		return errors.Errorf("timing budget %dus out of range (%d, %d]", budgetUs, TimingGuard, MaxTimingBudgetUs)
	}
	rangeTimeoutUs := (budgetUs - TimingGuard) / 2

	periodA, err := d.readReg(ctx, RegRangeConfigVcselPeriodA)
	if err != nil {
		return err
	}
	macroPeriodUs := macroPeriod(d.fastOscFrequency, periodA)
	if macroPeriodUs == 0 {
		return errors.New("oscillator frequency unknown, call DataInit first")
	}

	phasecalTimeoutMclks := timeoutMicrosecondsToMclks(d.phasecalTimeoutUs(), macroPeriodUs)
	if phasecalTimeoutMclks > 0xFF {
		phasecalTimeoutMclks = 0xFF
	}
	if err := d.writeReg(ctx, RegPhasecalConfigTimeoutMacrop, byte(phasecalTimeoutMclks)); err != nil {
		return err
	}
	if err := d.writeReg16(ctx, RegMmConfigTimeoutMacropA,
		encodeTimeout(timeoutMicrosecondsToMclks(1, macroPeriodUs))); err != nil {
		return err
	}
	if err := d.writeReg16(ctx, RegRangeConfigTimeoutMacropA,
		encodeTimeout(timeoutMicrosecondsToMclks(rangeTimeoutUs, macroPeriodUs))); err != nil {
		return err
	}

	periodB, err := d.readReg(ctx, RegRangeConfigVcselPeriodB)
	if err != nil {
		return err
	}
	macroPeriodUs = macroPeriod(d.fastOscFrequency, periodB)
	if err := d.writeReg16(ctx, RegMmConfigTimeoutMacropB,
		encodeTimeout(timeoutMicrosecondsToMclks(1, macroPeriodUs))); err != nil {
		return err
	}
	return d.writeReg16(ctx, RegRangeConfigTimeoutMacropB,
		encodeTimeout(timeoutMicrosecondsToMclks(rangeTimeoutUs, macroPeriodUs)))
}

// TimingBudgetUs reads the budget back from the A phase timeout. Encoding rounds the timeout to
// whole macro periods so the result can differ slightly from what was set.
func (d *Device) TimingBudgetUs(ctx context.Context) (uint32, error) {
	periodA, err := d.readReg(ctx, RegRangeConfigVcselPeriodA)
	if err != nil {
		return 0, err
	}
	timeout, err := d.readReg16(ctx, RegRangeConfigTimeoutMacropA)
	if err != nil {
		return 0, err
	}
	macroPeriodUs := macroPeriod(d.fastOscFrequency, periodA)
	rangeTimeoutUs := timeoutMclksToMicroseconds(decodeTimeout(timeout), macroPeriodUs)
	return 2*rangeTimeoutUs + TimingGuard, nil
}

func (d *Device) phasecalTimeoutUs() uint32 {
	return basePhasecalTimeoutUs * uint32(1+d.phasecalPatchPower)
}
