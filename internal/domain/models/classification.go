package models

// WalletState is the behavioral state assigned to one wallet for one
// (instrument, period). Exactly one state per wallet per period.
type WalletState string

const (
	StateAdderLong  WalletState = "adder_long"
	StateAdderShort WalletState = "adder_short"
	StateReducer    WalletState = "reducer"
	StateFlat       WalletState = "flat"
)

// WalletClassification is the ephemeral per-wallet classification result.
// Recomputed every period, never persisted standalone.
type WalletClassification struct {
	Subject    string
	Instrument string
	State      WalletState
	Current    float64
	Previous   *float64
	Epsilon    float64
}

// StateCounts aggregates classifications into per-state totals.
type StateCounts struct {
	AdderLong  int
	AdderShort int
	Reducer    int
	Flat       int
	Total      int
}

// Percentages converts counts to 0-100 shares. Zero total yields all zeros.
func (c StateCounts) Percentages() StateBreakdown {
	if c.Total == 0 {
		return StateBreakdown{}
	}
	n := float64(c.Total)
	return StateBreakdown{
		PctAdderLong:  float64(c.AdderLong) / n * 100,
		PctAdderShort: float64(c.AdderShort) / n * 100,
		PctReducer:    float64(c.Reducer) / n * 100,
		PctFlat:       float64(c.Flat) / n * 100,
	}
}

// StateBreakdown is the percentage view of StateCounts, persisted alongside
// the signal so the UI can show who contributed.
type StateBreakdown struct {
	PctAdderLong  float64
	PctAdderShort float64
	PctReducer    float64
	PctFlat       float64
}
