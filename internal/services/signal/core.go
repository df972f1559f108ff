package signal

import (
	"math"

	"WalletPulse/internal/domain/models"
)

const (
	// trendDeadZone is the ± band around the 3-period average inside which
	// the trend reads flat.
	trendDeadZone = 5.0
	// trendLookback is how many prior CAS values feed the rolling average.
	trendLookback = 3
	// exitClusterCapThreshold caps CAS at 60 when exceeded: directional
	// readings are untrustworthy during mass de-risking.
	exitClusterCapThreshold = 25.0
	// minDispersionSubjects is the minimum number of valid ratios for a
	// meaningful dispersion estimate.
	minDispersionSubjects = 5
	// ratioClamp bounds per-wallet change ratios before the stdev.
	ratioClamp = 2.0
)

// CoreSignals holds the four bounded scores for one (instrument, period).
type CoreSignals struct {
	AlignmentScore   float64
	AlignmentTrend   models.Trend
	DispersionIndex  float64
	ExitClusterScore float64
}

// ComputeCAS computes the consensus alignment score:
// 50 + ((N_long − N_short) / N_total) × 50, clamped to [0,100].
// Zero total reads neutral. An elevated exit cluster caps the result at 60
// before trend computation ever sees it.
func ComputeCAS(nLong, nShort, nTotal int, exitCluster float64) float64 {
	if nTotal == 0 {
		return 50
	}
	cas := 50 + (float64(nLong-nShort)/float64(nTotal))*50
	if exitCluster > exitClusterCapThreshold && cas > 60 {
		cas = 60
	}
	return clamp(cas, 0, 100)
}

// ComputeTrend compares the current CAS with the mean of the last three
// periods' CAS values (most recent first). Fewer than three priors is a safe
// default, not an error: the trend reads flat.
func ComputeTrend(current float64, history []float64) models.Trend {
	if len(history) < trendLookback {
		return models.TrendFlat
	}
	sum := 0.0
	for _, v := range history[:trendLookback] {
		sum += v
	}
	avg := sum / trendLookback
	switch {
	case current > avg+trendDeadZone:
		return models.TrendRising
	case current < avg-trendDeadZone:
		return models.TrendFalling
	default:
		return models.TrendFlat
	}
}

// ComputeDispersion measures wallet disagreement: the stdev of clamped
// per-wallet change ratios, scaled so σ=1.0 maps to 100. Fewer than five
// valid ratios yields 50 — absence of disagreement evidence is not evidence
// of agreement.
func ComputeDispersion(cls []models.WalletClassification) float64 {
	ratios := make([]float64, 0, len(cls))
	for _, wc := range cls {
		if wc.Previous == nil {
			continue
		}
		denom := math.Max(math.Abs(*wc.Previous), wc.Epsilon)
		ratio := clamp((wc.Current-*wc.Previous)/denom, -ratioClamp, ratioClamp)
		ratios = append(ratios, ratio)
	}
	if len(ratios) < minDispersionSubjects {
		return 50
	}
	if allEqual(ratios) {
		return 0
	}
	sigma := stdev(ratios)
	return math.Min(sigma*100, 100)
}

// ComputeExitCluster is the share of wallets actively de-risking, 0-100.
// The zero-total case returns 0; the caller must mark the period degraded.
func ComputeExitCluster(nReducer, nTotal int) float64 {
	if nTotal == 0 {
		return 0
	}
	return float64(nReducer) / float64(nTotal) * 100
}

// Compute runs the full core pipeline for one period. casHistory is the last
// periods' alignment scores, most recent first. Exit cluster is computed
// first because the CAS cap depends on it.
func Compute(counts models.StateCounts, cls []models.WalletClassification, casHistory []float64) CoreSignals {
	ec := ComputeExitCluster(counts.Reducer, counts.Total)
	cas := ComputeCAS(counts.AdderLong, counts.AdderShort, counts.Total, ec)
	return CoreSignals{
		AlignmentScore:   cas,
		AlignmentTrend:   ComputeTrend(cas, casHistory),
		DispersionIndex:  ComputeDispersion(cls),
		ExitClusterScore: ec,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func allEqual(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

// stdev is the sample standard deviation.
func stdev(xs []float64) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= n
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / (n - 1))
}
