package models

import "time"

// TimestampLayout is how record timestamps are rendered at the output boundary
const TimestampLayout = "2006-01-02 15:04:05"

// UsageRecord represents a single interval reading from a utility export
type UsageRecord struct {
	Timestamp time.Time `json:"timestamp"` // Zero when the source timestamp was unusable
	KWh       float64   `json:"usage_kwh"`
	Cost      float64   `json:"cost"`
}

// HasTimestamp reports whether the record can take part in time-bucketed analysis
func (r UsageRecord) HasTimestamp() bool {
	return !r.Timestamp.IsZero()
}

// TimestampString renders the timestamp, or "NaT" for the null sentinel
func (r UsageRecord) TimestampString() string {
	if !r.HasTimestamp() {
		return "NaT"
	}
	return r.Timestamp.Format(TimestampLayout)
}
