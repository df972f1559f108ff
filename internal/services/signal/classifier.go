package signal

import (
	"WalletPulse/internal/domain/models"
)

// Classify assigns the behavioral state for one wallet from its current and
// five-minutes-prior signed size. Rules are checked in priority order and
// exactly one state results:
//
//	AdderLong:  Δ > ε  and current > 0
//	AdderShort: Δ < −ε and current < 0
//	Reducer:    |current| < |previous| − ε
//	Flat:       everything else
//
// A missing previous observation is a cold start and never signals movement.
func Classify(current float64, previous *float64, epsilon float64) models.WalletState {
	if previous == nil {
		return models.StateFlat
	}
	delta := current - *previous

	if delta > epsilon && current > 0 {
		return models.StateAdderLong
	}
	if delta < -epsilon && current < 0 {
		return models.StateAdderShort
	}
	if abs(current) < abs(*previous)-epsilon {
		return models.StateReducer
	}
	return models.StateFlat
}

// ClassifyAll classifies every wallet delta for one instrument. epsilons maps
// subject to its resolved threshold; subjects without an entry use fallback.
func ClassifyAll(instrument string, deltas []models.WalletDelta, epsilons map[string]float64, fallback float64) []models.WalletClassification {
	out := make([]models.WalletClassification, 0, len(deltas))
	for _, d := range deltas {
		eps, ok := epsilons[d.Subject]
		if !ok || eps <= 0 {
			eps = fallback
		}
		out = append(out, models.WalletClassification{
			Subject:    d.Subject,
			Instrument: instrument,
			State:      Classify(d.Current, d.Previous, eps),
			Current:    d.Current,
			Previous:   d.Previous,
			Epsilon:    eps,
		})
	}
	return out
}

// CountStates tallies classifications per state.
func CountStates(cls []models.WalletClassification) models.StateCounts {
	var c models.StateCounts
	for _, wc := range cls {
		switch wc.State {
		case models.StateAdderLong:
			c.AdderLong++
		case models.StateAdderShort:
			c.AdderShort++
		case models.StateReducer:
			c.Reducer++
		case models.StateFlat:
			c.Flat++
		}
	}
	c.Total = len(cls)
	return c
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
