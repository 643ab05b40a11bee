package analytics

import (
	"math"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/jgoulah/gridinsight/internal/apperrors"
	"github.com/jgoulah/gridinsight/pkg/models"
)

// Field selects the numeric column to reduce
type Field int

const (
	FieldUsage Field = iota
	FieldCost
)

func (f Field) value(r models.UsageRecord) float64 {
	if f == FieldCost {
		return r.Cost
	}
	return r.KWh
}

// Reducer combines the values of one period
type Reducer int

const (
	ReduceSum Reducer = iota
	ReduceMean
)

const dayLayout = "2006-01-02"

// PeriodStart truncates t to the start of its period. Weeks start on Monday.
func PeriodStart(t time.Time, period models.Period) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch period {
	case models.PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7 // Days since Monday
		return day.AddDate(0, 0, -offset)
	case models.PeriodMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return day
	}
}

// PeriodKey renders a period start as its output key: "2024-01-15" for days,
// "2024-01-15/2024-01-21" for Monday-Sunday weeks and "2024-01" for months.
func PeriodKey(start time.Time, period models.Period) string {
	switch period {
	case models.PeriodWeek:
		return start.Format(dayLayout) + "/" + start.AddDate(0, 0, 6).Format(dayLayout)
	case models.PeriodMonth:
		return start.Format("2006-01")
	default:
		return start.Format(dayLayout)
	}
}

type bucket struct {
	sum   float64
	count int
}

// Aggregate groups records by period and reduces field per group. Records
// without a timestamp are skipped. The result is in chronological order.
func Aggregate(records []models.UsageRecord, field Field, period models.Period, reducer Reducer) models.Series {
	buckets := make(map[time.Time]*bucket)
	for _, r := range records {
		if !r.HasTimestamp() {
			continue
		}
		start := PeriodStart(r.Timestamp, period)
		b, ok := buckets[start]
		if !ok {
			b = &bucket{}
			buckets[start] = b
		}
		b.sum += field.value(r)
		b.count++
	}

	starts := lo.Keys(buckets)
	slices.SortFunc(starts, func(a, b time.Time) int { return a.Compare(b) })

	series := make(models.Series, 0, len(starts))
	for _, start := range starts {
		b := buckets[start]
		value := b.sum
		if reducer == ReduceMean {
			value = b.sum / float64(b.count)
		}
		series = append(series, models.Point{Key: PeriodKey(start, period), Value: value})
	}
	return series
}

// DailyTotals sums field per calendar day
func DailyTotals(records []models.UsageRecord, field Field) models.Series {
	return Aggregate(records, field, models.PeriodDay, ReduceSum)
}

// ComputeTrend compares the final two periods of a chronological series.
// A zero second-to-last value cannot be compared and is a computation error.
func ComputeTrend(series models.Series) (models.Trend, error) {
	if len(series) < 2 {
		return models.Trend{}, nil
	}

	last := series[len(series)-1].Value
	prev := series[len(series)-2].Value
	if prev == 0 {
		return models.Trend{}, apperrors.Computation("cannot compute percent change from %s: previous period total is zero", series[len(series)-2].Key)
	}

	change := (last - prev) / prev * 100
	trend := models.Trend{Comparable: true, Percent: round2(math.Abs(change))}
	switch {
	case change > 0:
		trend.Direction = models.TrendIncreased
	case change < 0:
		trend.Direction = models.TrendDecreased
	default:
		trend.Direction = models.TrendUnchanged
	}
	return trend, nil
}
