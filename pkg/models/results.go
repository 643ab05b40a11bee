package models

import (
	"fmt"
	"time"
)

// Trend directions
const (
	TrendIncreased = "increased"
	TrendDecreased = "decreased"
	TrendUnchanged = "unchanged"
)

// InsufficientData is the insight when fewer than two periods exist
const InsufficientData = "insufficient data for comparison"

// Trend is the percent change between the two most recent periods
type Trend struct {
	Comparable bool    `json:"comparable"`
	Direction  string  `json:"direction,omitempty"`
	Percent    float64 `json:"percent"` // Absolute value, rounded to 2 places
}

// String renders the trend as a human readable insight
func (t Trend) String() string {
	if !t.Comparable {
		return InsufficientData
	}
	if t.Direction == TrendUnchanged {
		return "unchanged (0.00%)"
	}
	return fmt.Sprintf("%s by %.2f%%", t.Direction, t.Percent)
}

// PeriodSummary is an aggregate over periods plus its trend insight
type PeriodSummary struct {
	Period  Period `json:"period"`
	Data    Series `json:"data"`
	Trend   Trend  `json:"trend"`
	Insight string `json:"insight"`
}

// PeakHour is the hour of day with the highest summed usage
type PeakHour struct {
	Hour  int     `json:"peak_hour"`
	Usage float64 `json:"usage"`
}

// Anomaly is a record whose usage exceeds the outlier threshold
type Anomaly struct {
	Timestamp string  `json:"timestamp"`
	Usage     float64 `json:"usage"`
}

// WeekSplit holds usage summed over weekdays and weekends
type WeekSplit struct {
	WeekdayUsage float64 `json:"weekday_usage"`
	WeekendUsage float64 `json:"weekend_usage"`
}

// IngestSummary describes a successfully ingested dataset
type IngestSummary struct {
	ID         string    `json:"id"`
	IngestedAt time.Time `json:"ingested_at"`
	Rows       int       `json:"rows"`
	First      time.Time `json:"first"`
	Last       time.Time `json:"last"`
	TotalUsage float64   `json:"total_usage_kwh"`
	TotalCost  float64   `json:"total_cost"`
}

// Report bundles every analysis computed against one dataset snapshot
type Report struct {
	Ingestion   IngestSummary `json:"ingestion"`
	Usage       PeriodSummary `json:"total_usage"`
	Cost        PeriodSummary `json:"cost_trends"`
	PeakHour    PeakHour      `json:"peak_hour"`
	Anomalies   []Anomaly     `json:"anomalies"`
	HourlyTrend Series        `json:"hourly_usage_trend"`
	WeekSplit   WeekSplit     `json:"weekday_vs_weekend"`
	CostlyDays  Series        `json:"high_cost_days"`
	Forecast    Series        `json:"forecast"`
}
