package analytics

import (
	"strconv"
	"time"

	"github.com/jgoulah/gridinsight/internal/apperrors"
	"github.com/jgoulah/gridinsight/pkg/models"
)

// DefaultAnomalySigma is how many standard deviations above the mean a reading
// must be to count as an anomaly
const DefaultAnomalySigma = 2.0

// hourly sums and counts usage per hour of day across all dates
func hourly(records []models.UsageRecord) (sums [24]float64, counts [24]int) {
	for _, r := range records {
		if !r.HasTimestamp() {
			continue
		}
		h := r.Timestamp.Hour()
		sums[h] += r.KWh
		counts[h]++
	}
	return sums, counts
}

// PeakHour finds the hour of day with the highest total usage. Ties go to the
// earliest hour.
func PeakHour(records []models.UsageRecord) (models.PeakHour, error) {
	sums, counts := hourly(records)

	peak := models.PeakHour{Hour: -1}
	for h := 0; h < 24; h++ {
		if counts[h] == 0 {
			continue
		}
		if peak.Hour == -1 || sums[h] > peak.Usage {
			peak = models.PeakHour{Hour: h, Usage: sums[h]}
		}
	}

	if peak.Hour == -1 {
		return models.PeakHour{}, apperrors.Computation("no timestamped records to find a peak hour")
	}
	return peak, nil
}

// HourlyUsageTrend returns mean usage per hour of day, keyed "0".."23", for
// hours present in the data
func HourlyUsageTrend(records []models.UsageRecord) models.Series {
	sums, counts := hourly(records)

	series := models.Series{}
	for h := 0; h < 24; h++ {
		if counts[h] == 0 {
			continue
		}
		series = append(series, models.Point{Key: strconv.Itoa(h), Value: sums[h] / float64(counts[h])})
	}
	return series
}

// Anomalies returns readings whose usage strictly exceeds mean + sigma*stddev
// over the whole dataset, in dataset order
func Anomalies(records []models.UsageRecord, sigma float64) []models.Anomaly {
	usage := make([]float64, len(records))
	for i, r := range records {
		usage[i] = r.KWh
	}
	threshold := mean(usage) + sigma*sampleStdDev(usage)

	anomalies := []models.Anomaly{}
	for _, r := range records {
		if r.KWh > threshold {
			anomalies = append(anomalies, models.Anomaly{Timestamp: r.TimestampString(), Usage: r.KWh})
		}
	}
	return anomalies
}

// SplitWeek sums usage over weekdays and over Saturday/Sunday
func SplitWeek(records []models.UsageRecord) models.WeekSplit {
	var split models.WeekSplit
	for _, r := range records {
		if !r.HasTimestamp() {
			continue
		}
		switch r.Timestamp.Weekday() {
		case time.Saturday, time.Sunday:
			split.WeekendUsage += r.KWh
		default:
			split.WeekdayUsage += r.KWh
		}
	}
	return split
}

// HighCostDays flags days whose cost per kWh exceeds the mean ratio by more
// than one standard deviation. Days with zero usage have no ratio and are left
// out of both the distribution and the result.
func HighCostDays(records []models.UsageRecord) models.Series {
	cost := DailyTotals(records, FieldCost)
	usage := DailyTotals(records, FieldUsage)

	ratios := make(models.Series, 0, len(usage))
	for i, u := range usage {
		if u.Value == 0 {
			continue
		}
		ratios = append(ratios, models.Point{Key: u.Key, Value: cost[i].Value / u.Value})
	}

	values := ratios.Values()
	threshold := mean(values) + sampleStdDev(values)

	flagged := models.Series{}
	for _, p := range ratios {
		if p.Value > threshold {
			flagged = append(flagged, p)
		}
	}
	return flagged
}
