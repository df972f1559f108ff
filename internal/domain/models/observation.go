package models

import "time"

// PositionObservation is one wallet's signed position in one instrument at a
// period boundary. Invalid observations still occupy a slot so that absence
// can be told apart from a genuine zero position.
type PositionObservation struct {
	PeriodTS   time.Time
	Subject    string
	Instrument string
	SignedSize float64
	Valid      bool
}

// WalletDelta pairs the current and five-minutes-prior observation of one
// wallet. Previous is nil when the wallet has no prior observation.
type WalletDelta struct {
	Subject    string
	Current    float64
	Previous   *float64
	CurrentTS  time.Time
	PreviousTS time.Time
}

// Delta returns the signed position change, or nil when there is no prior
// observation to diff against.
func (d *WalletDelta) Delta() *float64 {
	if d.Previous == nil {
		return nil
	}
	v := d.Current - *d.Previous
	return &v
}
