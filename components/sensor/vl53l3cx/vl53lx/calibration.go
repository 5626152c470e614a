package vl53lx

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

const (
	// targetRate is the DSS target total rate per SPAD, 9.7 fixed point MCPS.
	targetRate uint16 = 0x0A00
	// fallbackSpads is programmed when the measured rate cannot produce a SPAD count.
	fallbackSpads uint16 = 0x8000

	xtalkSamples = 5

	calibrationMeasurementTimeout = time.Second
)

// measureOnce runs a single measurement to completion and returns its raw result.
func (d *Device) measureOnce(ctx context.Context) (resultBuffer, error) {
	if err := d.ClearInterruptAndRestart(ctx); err != nil {
		return resultBuffer{}, err
	}
	if err := d.waitDataReady(ctx, calibrationMeasurementTimeout); err != nil {
		return resultBuffer{}, err
	}
	res, err := d.readResults(ctx)
	if err != nil {
		return resultBuffer{}, err
	}
	return res, d.clearInterrupt(ctx)
}

// PerformRefSpadManagement measures once and programs the number of reference SPADs needed to
// reach the target return rate.
func (d *Device) PerformRefSpadManagement(ctx context.Context) error {
	res, err := d.measureOnce(ctx)
	if err != nil {
		return errors.Wrap(err, "reference spad measurement failed")
	}
	return d.writeReg16(ctx, RegDssManualEffectiveSpads, requiredSpads(res))
}

func requiredSpads(res resultBuffer) uint16 {
	if res.dssActualEffectiveSpads == 0 {
		return fallbackSpads
	}
	totalRatePerSpad := uint32(res.peakSignalCountRateCorrMCPS) + uint32(res.ambientCountRateMCPS)
	if totalRatePerSpad > 0xFFFF {
		totalRatePerSpad = 0xFFFF
	}
	totalRatePerSpad <<= 16
	totalRatePerSpad /= uint32(res.dssActualEffectiveSpads)
	if totalRatePerSpad == 0 {
		return fallbackSpads
	}
	spads := (uint32(targetRate) << 16) / totalRatePerSpad
	if spads > 0xFFFF {
		spads = 0xFFFF
	}
	return uint16(spads)
}

// PerformXTalkCalibration averages the signal rate seen with no target in view and programs it as
// the crosstalk plane offset. The cover glass must be in place and the field of view empty.
func (d *Device) PerformXTalkCalibration(ctx context.Context) error {
	samples := make([]float64, 0, xtalkSamples)
	for i := 0; i < xtalkSamples; i++ {
		res, err := d.measureOnce(ctx)
		if err != nil {
			return errors.Wrapf(err, "crosstalk sample %d failed", i)
		}
		samples = append(samples, float64(countRateFixedToFloat(res.peakSignalCountRateCorrMCPS)))
	}
	offset := xtalkOffsetKcps(stat.Mean(samples, nil))
	if err := d.writeReg16(ctx, RegXtalkPlaneOffsetKcps, offset); err != nil {
		return err
	}
	if err := d.writeReg16(ctx, RegXtalkXPlaneGradientKcps, 0); err != nil {
		return err
	}
	d.logger.Debugw("crosstalk calibrated", "plane_offset", offset)
	return d.writeReg16(ctx, RegXtalkYPlaneGradientKcps, 0)
}

// xtalkOffsetKcps converts a rate in MCPS to the 7.9 fixed point kcps the offset register holds.
func xtalkOffsetKcps(meanMCPS float64) uint16 {
	v := math.Round(meanMCPS * 1000 * (1 << 9))
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(v)
	}
}
