package automation

import (
	"testing"
	"time"

	"github.com/bonsailab/bonsaictl/internal/model"
)

func readingsAt(base time.Time, step time.Duration, percents ...float64) []model.MoistureReading {
	out := make([]model.MoistureReading, len(percents))
	for i, p := range percents {
		out[i] = model.MoistureReading{Timestamp: base.Add(time.Duration(i) * step), Percent: p}
	}
	return out
}

func TestRecomputeThresholdMovesWithStableMean(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	// Ten stable readings with mean 40 -> candidate 36.
	history := readingsAt(base, time.Hour, 40, 40, 40, 40, 40, 40, 40, 40, 40, 40)

	got, changed := RecomputeThreshold(30, history, nil)
	if !changed {
		t.Fatal("expected the threshold to change")
	}
	if got != 36 {
		t.Errorf("threshold: got %v, want 36", got)
	}
}

func TestRecomputeThresholdInsufficientHistory(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	history := readingsAt(base, time.Hour, 40, 40, 40, 40, 40)

	got, changed := RecomputeThreshold(30, history, nil)
	if changed || got != 30 {
		t.Errorf("got (%v, %t), want (30, false)", got, changed)
	}
}

func TestRecomputeThresholdExcludesPostWateringReadings(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	// Twelve readings; the watering at +5h taints +1h..+9h, leaving only
	// four stable ones, below the minimum stable count.
	history := readingsAt(base, time.Hour, 40, 40, 90, 90, 90, 90, 90, 90, 90, 90, 40, 40)
	waterings := []model.WateringEvent{{Timestamp: base.Add(5 * time.Hour)}}

	got, changed := RecomputeThreshold(30, history, waterings)
	if changed || got != 30 {
		t.Errorf("got (%v, %t), want (30, false)", got, changed)
	}
}

func TestRecomputeThresholdHysteresis(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	// Mean 34 -> candidate 30.6, within 2 points of the current 30.
	history := readingsAt(base, time.Hour, 34, 34, 34, 34, 34, 34, 34, 34, 34, 34)

	got, changed := RecomputeThreshold(30, history, nil)
	if changed || got != 30 {
		t.Errorf("got (%v, %t), want (30, false)", got, changed)
	}
}

func TestRecomputeThresholdClamped(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	high := readingsAt(base, time.Hour, 90, 90, 90, 90, 90, 90, 90, 90, 90, 90)
	if got, changed := RecomputeThreshold(30, high, nil); !changed || got != ThresholdMax {
		t.Errorf("high mean: got (%v, %t), want (%v, true)", got, changed, ThresholdMax)
	}

	low := readingsAt(base, time.Hour, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5)
	if got, changed := RecomputeThreshold(30, low, nil); !changed || got != ThresholdMin {
		t.Errorf("low mean: got (%v, %t), want (%v, true)", got, changed, ThresholdMin)
	}
}

func TestRecomputeThresholdRounding(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	// Mean 41 -> candidate 36.9, which must survive rounding to one decimal.
	history := readingsAt(base, time.Hour, 41, 41, 41, 41, 41, 41, 41, 41, 41, 41)

	got, changed := RecomputeThreshold(30, history, nil)
	if !changed {
		t.Fatal("expected the threshold to change")
	}
	if got != 36.9 {
		t.Errorf("threshold: got %v, want 36.9", got)
	}
}
