package repository

import "time"

// PeriodLength is the fixed aggregation window for signal computation.
const PeriodLength = 5 * time.Minute

// FloorPeriod floors t to the enclosing 5-minute boundary in UTC.
func FloorPeriod(t time.Time) time.Time {
	return t.UTC().Truncate(PeriodLength)
}

// NextPeriod returns the first 5-minute boundary strictly after t.
func NextPeriod(t time.Time) time.Time {
	return FloorPeriod(t).Add(PeriodLength)
}

// PreviousPeriod returns the boundary one period before the one enclosing t.
func PreviousPeriod(t time.Time) time.Time {
	return FloorPeriod(t).Add(-PeriodLength)
}
