// Package forecast projects near-term usage from trailing daily averages.
package forecast

import (
	"github.com/jgoulah/gridinsight/internal/analytics"
	"github.com/jgoulah/gridinsight/internal/apperrors"
	"github.com/jgoulah/gridinsight/pkg/models"
)

// DefaultWindow is the moving average length in days
const DefaultWindow = 7

// MovingAverage computes a trailing simple moving average. Points before the
// window fills are omitted, so the output has len(series)-window+1 points.
func MovingAverage(series models.Series, window int) models.Series {
	if window <= 0 || len(series) < window {
		return models.Series{}
	}

	out := make(models.Series, 0, len(series)-window+1)
	var sum float64
	for i, p := range series {
		sum += p.Value
		if i >= window {
			sum -= series[i-window].Value
		}
		if i >= window-1 {
			out = append(out, models.Point{Key: p.Key, Value: sum / float64(window)})
		}
	}
	return out
}

// Usage smooths daily usage totals and returns the last days points. Fewer
// points are returned when the history is short.
func Usage(records []models.UsageRecord, days, window int) (models.Series, error) {
	if days <= 0 {
		return nil, apperrors.Validation("days must be a positive integer, got %d", days)
	}
	if window <= 0 {
		return nil, apperrors.Validation("window must be a positive integer, got %d", window)
	}

	daily := analytics.DailyTotals(records, analytics.FieldUsage)
	return MovingAverage(daily, window).Last(days), nil
}
