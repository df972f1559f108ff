package signal

import (
	"testing"

	"WalletPulse/internal/domain/models"
)

func TestResolvePlaybookMatrix(t *testing.T) {
	cases := []struct {
		name string
		s    CoreSignals
		play models.Playbook
		risk models.RiskMode
	}{
		{
			name: "strong bullish",
			s:    CoreSignals{AlignmentScore: 80, AlignmentTrend: models.TrendRising, DispersionIndex: 20, ExitClusterScore: 5},
			play: models.PlaybookLongOnly, risk: models.RiskNormal,
		},
		{
			name: "strong bullish with ec caution",
			s:    CoreSignals{AlignmentScore: 80, AlignmentTrend: models.TrendRising, DispersionIndex: 20, ExitClusterScore: 18},
			play: models.PlaybookLongOnly, risk: models.RiskReduced,
		},
		{
			name: "strong bullish stable",
			s:    CoreSignals{AlignmentScore: 80, AlignmentTrend: models.TrendFlat, DispersionIndex: 20, ExitClusterScore: 5},
			play: models.PlaybookLongOnly, risk: models.RiskReduced,
		},
		{
			name: "moderate bullish building",
			s:    CoreSignals{AlignmentScore: 70, AlignmentTrend: models.TrendRising, DispersionIndex: 20, ExitClusterScore: 5},
			play: models.PlaybookLongOnly, risk: models.RiskReduced,
		},
		{
			name: "moderate bullish mixed dispersion",
			s:    CoreSignals{AlignmentScore: 70, AlignmentTrend: models.TrendFlat, DispersionIndex: 45, ExitClusterScore: 5},
			play: models.PlaybookLongOnly, risk: models.RiskReduced,
		},
		{
			name: "strong bearish",
			s:    CoreSignals{AlignmentScore: 20, AlignmentTrend: models.TrendFalling, DispersionIndex: 20, ExitClusterScore: 5},
			play: models.PlaybookShortOnly, risk: models.RiskNormal,
		},
		{
			name: "strong bearish with ec caution",
			s:    CoreSignals{AlignmentScore: 20, AlignmentTrend: models.TrendFalling, DispersionIndex: 20, ExitClusterScore: 18},
			play: models.PlaybookShortOnly, risk: models.RiskReduced,
		},
		{
			name: "strong bearish stable",
			s:    CoreSignals{AlignmentScore: 20, AlignmentTrend: models.TrendFlat, DispersionIndex: 20, ExitClusterScore: 5},
			play: models.PlaybookShortOnly, risk: models.RiskReduced,
		},
		{
			name: "moderate bearish building",
			s:    CoreSignals{AlignmentScore: 30, AlignmentTrend: models.TrendFalling, DispersionIndex: 20, ExitClusterScore: 5},
			play: models.PlaybookShortOnly, risk: models.RiskReduced,
		},
		{
			name: "moderate bearish mixed dispersion",
			s:    CoreSignals{AlignmentScore: 30, AlignmentTrend: models.TrendFlat, DispersionIndex: 45, ExitClusterScore: 5},
			play: models.PlaybookShortOnly, risk: models.RiskReduced,
		},
		{
			name: "neutral zone",
			s:    CoreSignals{AlignmentScore: 50, AlignmentTrend: models.TrendRising, DispersionIndex: 20, ExitClusterScore: 5},
			play: models.PlaybookNoTrade, risk: models.RiskDefensive,
		},
	}
	for _, tc := range cases {
		play, risk := ResolvePlaybook(tc.s)
		if play != tc.play || risk != tc.risk {
			t.Fatalf("%s: got %s/%s, want %s/%s", tc.name, play, risk, tc.play, tc.risk)
		}
	}
}

func TestResolvePlaybookDispersionOverride(t *testing.T) {
	// A strong bullish reading is vetoed outright by high dispersion.
	s := CoreSignals{AlignmentScore: 85, AlignmentTrend: models.TrendRising, DispersionIndex: 70, ExitClusterScore: 5}
	play, risk := ResolvePlaybook(s)
	if play != models.PlaybookNoTrade || risk != models.RiskDefensive {
		t.Fatalf("expected No-trade/Defensive, got %s/%s", play, risk)
	}
}

func TestResolvePlaybookExitClusterOverride(t *testing.T) {
	s := CoreSignals{AlignmentScore: 85, AlignmentTrend: models.TrendRising, DispersionIndex: 20, ExitClusterScore: 30}
	play, risk := ResolvePlaybook(s)
	if play != models.PlaybookNoTrade || risk != models.RiskDefensive {
		t.Fatalf("expected No-trade/Defensive, got %s/%s", play, risk)
	}
}

func TestResolvePlaybookDistributionOverride(t *testing.T) {
	// Consensus still long but fading: distribution phase stands down at
	// Reduced, not Defensive.
	s := CoreSignals{AlignmentScore: 70, AlignmentTrend: models.TrendFalling, DispersionIndex: 20, ExitClusterScore: 5}
	play, risk := ResolvePlaybook(s)
	if play != models.PlaybookNoTrade || risk != models.RiskReduced {
		t.Fatalf("expected No-trade/Reduced, got %s/%s", play, risk)
	}
}

func TestResolvePlaybookUnmatchedDefault(t *testing.T) {
	// CAS 80 with a falling trend at CAS>60 hits the distribution override,
	// so use a combination no row and no override covers: strong bullish
	// band with medium dispersion.
	s := CoreSignals{AlignmentScore: 80, AlignmentTrend: models.TrendRising, DispersionIndex: 45, ExitClusterScore: 5}
	play, risk := ResolvePlaybook(s)
	if play != models.PlaybookNoTrade || risk != models.RiskReduced {
		t.Fatalf("expected default No-trade/Reduced, got %s/%s", play, risk)
	}
}

func TestResolveAdvisories(t *testing.T) {
	s := CoreSignals{AlignmentScore: 80, AlignmentTrend: models.TrendRising, DispersionIndex: 20, ExitClusterScore: 5}
	d := Resolve(s)
	if !d.AddExposure {
		t.Fatalf("expected add-exposure advisory")
	}
	if d.TightenStops {
		t.Fatalf("did not expect tighten-stops advisory")
	}

	s = CoreSignals{AlignmentScore: 70, AlignmentTrend: models.TrendFalling, DispersionIndex: 20, ExitClusterScore: 5}
	d = Resolve(s)
	if d.AddExposure {
		t.Fatalf("did not expect add-exposure on falling trend")
	}
	if !d.TightenStops {
		t.Fatalf("expected tighten-stops on falling trend")
	}

	s = CoreSignals{AlignmentScore: 50, AlignmentTrend: models.TrendRising, DispersionIndex: 20, ExitClusterScore: 30}
	d = Resolve(s)
	if d.AddExposure {
		t.Fatalf("did not expect add-exposure during elevated exit cluster")
	}
	if !d.TightenStops {
		t.Fatalf("expected tighten-stops during elevated exit cluster")
	}
}
