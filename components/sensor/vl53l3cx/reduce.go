package vl53l3cx

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/viam-modules/vl53l3cx/components/sensor/vl53l3cx/vl53lx"
)

// ReportPolicy selects which valid object of a reading gets reported.
type ReportPolicy int

const (
	// Nearest reports the closest valid object.
	Nearest ReportPolicy = iota
	// Farthest reports the most distant valid object.
	Farthest
)

func (p ReportPolicy) String() string {
	switch p {
	case Nearest:
		return "closest"
	case Farthest:
		return "furtherest"
	default:
		return "unknown"
	}
}

// ParseReportPolicy accepts "closest" or "nearest" and "furtherest" or "farthest", in any case.
// The empty string means Nearest.
func ParseReportPolicy(mode string) (ReportPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "closest", "nearest":
		return Nearest, nil
	case "furtherest", "farthest", "furthest":
		return Farthest, nil
	default:
		return Nearest, errors.Errorf("unknown report mode %q, expected closest or furtherest", mode)
	}
}

// Reduce picks one object out of a reading. Only valid objects are considered and the first one
// encountered wins a tie. It returns the index of the chosen object, or false when no object is
// valid.
func Reduce(objects []vl53lx.ObjectRange, policy ReportPolicy) (int, bool) {
	best := -1
	for i, obj := range objects {
		if !obj.Valid() {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		switch policy {
		case Farthest:
			if obj.DistanceMM > objects[best].DistanceMM {
				best = i
			}
		default:
			if obj.DistanceMM < objects[best].DistanceMM {
				best = i
			}
		}
	}
	return best, best >= 0
}
