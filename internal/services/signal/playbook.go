package signal

import (
	"WalletPulse/internal/domain/models"
)

// Dispersion and exit-cluster bands used by the decision matrix.
type band int

const (
	bandLow band = iota
	bandMedium
	bandHigh
)

func dispersionBand(di float64) band {
	switch {
	case di >= 60:
		return bandHigh
	case di >= 40:
		return bandMedium
	default:
		return bandLow
	}
}

func exitClusterBand(ec float64) band {
	switch {
	case ec > 25:
		return bandHigh
	case ec >= 16:
		return bandMedium
	default:
		return bandLow
	}
}

// Decision is the playbook resolver output.
type Decision struct {
	Playbook     models.Playbook
	RiskMode     models.RiskMode
	AddExposure  bool
	TightenStops bool
}

// matrixRow is one guard in the ordered decision matrix. Rows are evaluated
// top to bottom; the first match wins. Keeping the table explicit keeps the
// override-priority contract auditable row by row.
type matrixRow struct {
	name  string
	match func(cas float64, trend models.Trend, di, ec band) bool
	play  models.Playbook
	risk  models.RiskMode
}

var playbookMatrix = []matrixRow{
	{
		name: "strong bullish",
		match: func(cas float64, t models.Trend, di, ec band) bool {
			return cas > 75 && t == models.TrendRising && di == bandLow && ec == bandLow
		},
		play: models.PlaybookLongOnly, risk: models.RiskNormal,
	},
	{
		name: "strong bullish, ec caution",
		match: func(cas float64, t models.Trend, di, ec band) bool {
			return cas > 75 && t == models.TrendRising && di == bandLow && ec == bandMedium
		},
		play: models.PlaybookLongOnly, risk: models.RiskReduced,
	},
	{
		name: "strong bullish, stable",
		match: func(cas float64, t models.Trend, di, ec band) bool {
			return cas > 75 && t == models.TrendFlat && di == bandLow && ec == bandLow
		},
		play: models.PlaybookLongOnly, risk: models.RiskReduced,
	},
	{
		name: "moderate bullish, building",
		match: func(cas float64, t models.Trend, di, ec band) bool {
			return cas >= 60 && cas <= 75 && t == models.TrendRising && di == bandLow && ec == bandLow
		},
		play: models.PlaybookLongOnly, risk: models.RiskReduced,
	},
	{
		name: "moderate bullish, mixed",
		match: func(cas float64, t models.Trend, di, ec band) bool {
			return cas >= 60 && cas <= 75 && di == bandMedium && ec == bandLow
		},
		play: models.PlaybookLongOnly, risk: models.RiskReduced,
	},
	{
		name: "strong bearish",
		match: func(cas float64, t models.Trend, di, ec band) bool {
			return cas < 25 && t == models.TrendFalling && di == bandLow && ec == bandLow
		},
		play: models.PlaybookShortOnly, risk: models.RiskNormal,
	},
	{
		name: "strong bearish, ec caution",
		match: func(cas float64, t models.Trend, di, ec band) bool {
			return cas < 25 && t == models.TrendFalling && di == bandLow && ec == bandMedium
		},
		play: models.PlaybookShortOnly, risk: models.RiskReduced,
	},
	{
		name: "strong bearish, stable",
		match: func(cas float64, t models.Trend, di, ec band) bool {
			return cas < 25 && t == models.TrendFlat && di == bandLow && ec == bandLow
		},
		play: models.PlaybookShortOnly, risk: models.RiskReduced,
	},
	{
		name: "moderate bearish, building",
		match: func(cas float64, t models.Trend, di, ec band) bool {
			return cas >= 25 && cas < 40 && t == models.TrendFalling && di == bandLow && ec == bandLow
		},
		play: models.PlaybookShortOnly, risk: models.RiskReduced,
	},
	{
		name: "moderate bearish, mixed",
		match: func(cas float64, t models.Trend, di, ec band) bool {
			return cas >= 25 && cas < 40 && di == bandMedium && ec == bandLow
		},
		play: models.PlaybookShortOnly, risk: models.RiskReduced,
	},
	{
		name: "neutral zone",
		match: func(cas float64, t models.Trend, di, ec band) bool {
			return cas >= 40 && cas <= 60
		},
		play: models.PlaybookNoTrade, risk: models.RiskDefensive,
	},
}

// ResolvePlaybook maps the four scores to an allowed playbook and risk mode.
// Overrides run strictly in order before the matrix; any combination no
// matrix row covers falls to No-trade/Reduced. That default is the safety
// net, not an error path.
func ResolvePlaybook(s CoreSignals) (models.Playbook, models.RiskMode) {
	di := dispersionBand(s.DispersionIndex)
	ec := exitClusterBand(s.ExitClusterScore)

	// 1. Dispersion override: wallets disagree, stand down.
	if di == bandHigh {
		return models.PlaybookNoTrade, models.RiskDefensive
	}
	// 2. Exit-cluster override: mass de-risking.
	if ec == bandHigh {
		return models.PlaybookNoTrade, models.RiskDefensive
	}
	// 3. Trend override: distribution phase (consensus still long, fading).
	if s.AlignmentTrend == models.TrendFalling && s.AlignmentScore > 60 {
		return models.PlaybookNoTrade, models.RiskReduced
	}

	for _, row := range playbookMatrix {
		if row.match(s.AlignmentScore, s.AlignmentTrend, di, ec) {
			return row.play, row.risk
		}
	}
	return models.PlaybookNoTrade, models.RiskReduced
}

// Resolve combines the decision matrix with the two derived advisories.
// Advisories are independent of the playbook outcome.
func Resolve(s CoreSignals) Decision {
	play, risk := ResolvePlaybook(s)

	di := dispersionBand(s.DispersionIndex)
	ec := exitClusterBand(s.ExitClusterScore)

	return Decision{
		Playbook:     play,
		RiskMode:     risk,
		AddExposure:  s.AlignmentTrend == models.TrendRising && ec == bandLow && di != bandHigh,
		TightenStops: ec == bandHigh || s.AlignmentTrend == models.TrendFalling || di == bandHigh,
	}
}
