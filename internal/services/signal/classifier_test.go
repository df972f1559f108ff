package signal

import (
	"testing"

	"WalletPulse/internal/domain/models"
)

func fptr(v float64) *float64 { return &v }

func TestClassifyColdStart(t *testing.T) {
	if got := Classify(120.5, nil, 0.01); got != models.StateFlat {
		t.Fatalf("expected flat on missing previous, got %s", got)
	}
}

func TestClassifyAdderLong(t *testing.T) {
	if got := Classify(10.5, fptr(10.0), 0.01); got != models.StateAdderLong {
		t.Fatalf("expected adder_long, got %s", got)
	}
}

func TestClassifyAdderShort(t *testing.T) {
	if got := Classify(-10.5, fptr(-10.0), 0.01); got != models.StateAdderShort {
		t.Fatalf("expected adder_short, got %s", got)
	}
}

func TestClassifyReducerFromLong(t *testing.T) {
	if got := Classify(9.0, fptr(10.0), 0.01); got != models.StateReducer {
		t.Fatalf("expected reducer, got %s", got)
	}
}

func TestClassifyReducerFromShort(t *testing.T) {
	// Magnitude shrinks even though the signed delta is positive.
	if got := Classify(-9.0, fptr(-10.0), 0.01); got != models.StateReducer {
		t.Fatalf("expected reducer, got %s", got)
	}
}

func TestClassifyNoiseInsideEpsilon(t *testing.T) {
	if got := Classify(10.004, fptr(10.0), 0.01); got != models.StateFlat {
		t.Fatalf("expected flat inside epsilon, got %s", got)
	}
	if got := Classify(9.996, fptr(10.0), 0.01); got != models.StateFlat {
		t.Fatalf("expected flat inside epsilon, got %s", got)
	}
}

func TestClassifyDeltaExactlyEpsilon(t *testing.T) {
	// The threshold is strict: a change of exactly epsilon is not an add.
	if got := Classify(10.01, fptr(10.0), 0.01); got != models.StateFlat {
		t.Fatalf("expected flat at exact epsilon, got %s", got)
	}
}

func TestClassifyLongBuildingButNegative(t *testing.T) {
	// Position grows toward zero from a short: delta is positive but the
	// current side is short, so it is neither adder_long nor adder_short.
	// |current| shrank by more than epsilon, so it reduces.
	if got := Classify(-5.0, fptr(-8.0), 0.01); got != models.StateReducer {
		t.Fatalf("expected reducer, got %s", got)
	}
}

func TestClassifyFlipThroughZero(t *testing.T) {
	// Long flips to short with a larger magnitude: delta is strongly
	// negative and the wallet now holds short.
	if got := Classify(-12.0, fptr(3.0), 0.01); got != models.StateAdderShort {
		t.Fatalf("expected adder_short on flip, got %s", got)
	}
}

func TestClassifyAllFallbackEpsilon(t *testing.T) {
	deltas := []models.WalletDelta{
		{Subject: "0xaaa", Current: 10.5, Previous: fptr(10.0)},
		{Subject: "0xbbb", Current: 10.5, Previous: fptr(10.0)},
	}
	epsilons := map[string]float64{"0xaaa": 1.0}

	cls := ClassifyAll("HYPE", deltas, epsilons, 0.01)
	if len(cls) != 2 {
		t.Fatalf("expected 2 classifications, got %d", len(cls))
	}
	// 0xaaa's epsilon of 1.0 swallows the 0.5 move.
	if cls[0].State != models.StateFlat {
		t.Fatalf("expected flat for 0xaaa, got %s", cls[0].State)
	}
	if cls[0].Epsilon != 1.0 {
		t.Fatalf("expected epsilon 1.0, got %v", cls[0].Epsilon)
	}
	// 0xbbb falls back to the floor and registers the add.
	if cls[1].State != models.StateAdderLong {
		t.Fatalf("expected adder_long for 0xbbb, got %s", cls[1].State)
	}
	if cls[1].Epsilon != 0.01 {
		t.Fatalf("expected fallback epsilon, got %v", cls[1].Epsilon)
	}
}

func TestCountStates(t *testing.T) {
	cls := []models.WalletClassification{
		{State: models.StateAdderLong},
		{State: models.StateAdderLong},
		{State: models.StateAdderShort},
		{State: models.StateReducer},
		{State: models.StateFlat},
	}
	c := CountStates(cls)
	if c.AdderLong != 2 || c.AdderShort != 1 || c.Reducer != 1 || c.Flat != 1 {
		t.Fatalf("unexpected counts %+v", c)
	}
	if c.Total != 5 {
		t.Fatalf("expected total 5, got %d", c.Total)
	}
}

func TestStateCountsPercentages(t *testing.T) {
	c := models.StateCounts{AdderLong: 2, AdderShort: 1, Reducer: 1, Flat: 0, Total: 4}
	b := c.Percentages()
	if b.PctAdderLong != 50 || b.PctAdderShort != 25 || b.PctReducer != 25 || b.PctFlat != 0 {
		t.Fatalf("unexpected breakdown %+v", b)
	}
	empty := models.StateCounts{}
	if got := empty.Percentages(); got != (models.StateBreakdown{}) {
		t.Fatalf("expected zero breakdown, got %+v", got)
	}
}
