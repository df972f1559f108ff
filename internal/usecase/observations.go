package usecase

import (
	"sort"

	"WalletPulse/internal/domain/models"
)

// BuildDeltas pairs each subject's current observation with its
// five-minutes-prior one. Subjects whose current observation is invalid (or
// who appear only in the prior window) are excluded entirely and counted as
// missing — never classified as flat. A valid current observation with no
// usable prior yields a nil Previous, which the classifier reads as a cold
// start.
func BuildDeltas(current, previous []models.PositionObservation) ([]models.WalletDelta, int) {
	prevBySubject := make(map[string]models.PositionObservation, len(previous))
	for _, o := range previous {
		prevBySubject[o.Subject] = o
	}

	seen := make(map[string]bool, len(current))
	deltas := make([]models.WalletDelta, 0, len(current))
	missing := 0

	for _, o := range current {
		seen[o.Subject] = true
		if !o.Valid {
			missing++
			continue
		}
		d := models.WalletDelta{
			Subject:   o.Subject,
			Current:   o.SignedSize,
			CurrentTS: o.PeriodTS,
		}
		if p, ok := prevBySubject[o.Subject]; ok && p.Valid {
			v := p.SignedSize
			d.Previous = &v
			d.PreviousTS = p.PeriodTS
		}
		deltas = append(deltas, d)
	}

	// Universe members that dropped out of the current window entirely.
	for subject := range prevBySubject {
		if !seen[subject] {
			missing++
		}
	}

	sort.Slice(deltas, func(i, j int) bool { return deltas[i].Subject < deltas[j].Subject })
	return deltas, missing
}
