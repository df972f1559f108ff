package models

// Requests for the read-only HTTP API. Defined in domain for consistency and reuse.

type LatestSignalRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
}

type SignalHistoryRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	N          int    `query:"n" json:"n" default:"72" validate:"gte=1,lte=2016"`
}

type AlertsRequest struct {
	Subject string `query:"subject" json:"subject"`
	N       int    `query:"n" json:"n" default:"50" validate:"gte=1,lte=500"`
}
