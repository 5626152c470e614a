package vl53lx

import (
	"context"
	"encoding/binary"
)

// resultBuffer holds the raw result block.
type resultBuffer struct {
	rangeStatus                 byte
	streamCount                 byte
	dssActualEffectiveSpads     uint16
	ambientCountRateMCPS        uint16
	finalCrosstalkCorrectedMM   uint16
	peakSignalCountRateCorrMCPS uint16
}

func (d *Device) readResults(ctx context.Context) (resultBuffer, error) {
	buf, err := d.readRegs(ctx, RegResultRangeStatus, ResultBlockSize)
	if err != nil {
		return resultBuffer{}, err
	}
	return resultBuffer{
		rangeStatus:                 buf[0] & 0x1F,
		streamCount:                 buf[2],
		dssActualEffectiveSpads:     binary.BigEndian.Uint16(buf[3:5]),
		ambientCountRateMCPS:        binary.BigEndian.Uint16(buf[7:9]),
		finalCrosstalkCorrectedMM:   binary.BigEndian.Uint16(buf[13:15]),
		peakSignalCountRateCorrMCPS: binary.BigEndian.Uint16(buf[15:17]),
	}, nil
}

// status maps the device status code to a RangeStatus.
func (r resultBuffer) status() RangeStatus {
	switch r.rangeStatus {
	case 17, 2, 1, 3:
		return HardwareFail
	case 13:
		return MinRangeFail
	case 18:
		return SynchronizationInt
	case 5:
		return OutOfBoundsFail
	case 4:
		return SignalFail
	case 6:
		return SigmaFail
	case 7:
		return WrapTargetFail
	case 12:
		return XtalkSignalFail
	case 8:
		return RangeValidMinRangeClipped
	case 9:
		if r.streamCount == 0 {
			return RangeValidNoWrapCheckFail
		}
		return RangeValid
	default:
		return NoneStatus
	}
}

// objectRange converts the block into an ObjectRange, or false if no target was reported.
func (r resultBuffer) objectRange() (ObjectRange, bool) {
	status := r.status()
	if status == NoneStatus {
		return ObjectRange{}, false
	}
	// gain correction
	mm := (uint32(r.finalCrosstalkCorrectedMM)*2011 + 0x0400) / 0x0800
	if mm > 0x7FFF {
		mm = 0x7FFF
	}
	return ObjectRange{
		DistanceMM:      int16(mm),
		Status:          status,
		SignalRateMCPS:  countRateFixedToFloat(r.peakSignalCountRateCorrMCPS),
		AmbientRateMCPS: countRateFixedToFloat(r.ambientCountRateMCPS),
	}, true
}

// countRateFixedToFloat converts a 9.7 fixed point count rate.
func countRateFixedToFloat(countRateFixed uint16) float32 {
	return float32(countRateFixed) / float32(1<<7)
}
