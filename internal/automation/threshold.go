package automation

import (
	"math"
	"time"

	"github.com/bonsailab/bonsaictl/internal/model"
)

// Adaptive threshold bounds and update rules. The threshold tracks 90% of
// the mean stable moisture level, clamped to [15,50], and only moves when
// the candidate differs from the current value by more than the hysteresis
// margin.
const (
	ThresholdMin        = 15.0
	ThresholdMax        = 50.0
	thresholdFactor     = 0.9
	thresholdHysteresis = 2.0

	// Readings within this distance of a watering event are transient and
	// excluded from the stable set.
	stableGap = 4 * time.Hour

	minHistoryReadings = 10
	minStableReadings  = 5
)

// RecomputeThreshold derives a new watering threshold from history. history
// should cover the last 24 hours, waterings the last 7 days. Returns the
// unchanged current value and false when there is not enough data or the
// candidate is within the hysteresis margin.
func RecomputeThreshold(current float64, history []model.MoistureReading, waterings []model.WateringEvent) (float64, bool) {
	if len(history) < minHistoryReadings {
		return current, false
	}

	var stable []float64
	for _, r := range history {
		if !nearWatering(r.Timestamp, waterings) {
			stable = append(stable, r.Percent)
		}
	}
	if len(stable) < minStableReadings {
		return current, false
	}

	var sum float64
	for _, v := range stable {
		sum += v
	}
	mean := sum / float64(len(stable))

	candidate := mean * thresholdFactor
	if candidate < ThresholdMin {
		candidate = ThresholdMin
	}
	if candidate > ThresholdMax {
		candidate = ThresholdMax
	}

	if math.Abs(candidate-current) <= thresholdHysteresis {
		return current, false
	}
	return math.Round(candidate*10) / 10, true
}

func nearWatering(t time.Time, waterings []model.WateringEvent) bool {
	for _, w := range waterings {
		d := t.Sub(w.Timestamp)
		if d < 0 {
			d = -d
		}
		if d <= stableGap {
			return true
		}
	}
	return false
}
