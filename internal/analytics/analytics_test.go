package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/gridinsight/internal/apperrors"
	"github.com/jgoulah/gridinsight/pkg/models"
)

func rec(ts string, kwh, cost float64) models.UsageRecord {
	t, err := time.Parse("2006-01-02 15:04", ts)
	if err != nil {
		panic(err)
	}
	return models.UsageRecord{Timestamp: t, KWh: kwh, Cost: cost}
}

// sample spans a Saturday through the following Friday, plus a new month
func sample() []models.UsageRecord {
	return []models.UsageRecord{
		rec("2024-01-31 09:00", 4, 1.2),
		rec("2024-01-06 10:00", 1, 0.3), // Saturday
		rec("2024-01-07 10:00", 2, 0.6), // Sunday
		rec("2024-01-08 18:00", 3, 0.9), // Monday
		rec("2024-01-08 19:00", 5, 1.5),
		rec("2024-02-01 18:00", 6, 1.8),
		{KWh: 7, Cost: 2.1}, // No timestamp
	}
}

func TestAggregateByPeriod(t *testing.T) {
	tests := []struct {
		name   string
		period models.Period
		want   models.Series
	}{
		{
			name:   "day",
			period: models.PeriodDay,
			want: models.Series{
				{Key: "2024-01-06", Value: 1},
				{Key: "2024-01-07", Value: 2},
				{Key: "2024-01-08", Value: 8},
				{Key: "2024-01-31", Value: 4},
				{Key: "2024-02-01", Value: 6},
			},
		},
		{
			name:   "week starts monday",
			period: models.PeriodWeek,
			want: models.Series{
				{Key: "2024-01-01/2024-01-07", Value: 3},
				{Key: "2024-01-08/2024-01-14", Value: 8},
				{Key: "2024-01-29/2024-02-04", Value: 10},
			},
		},
		{
			name:   "month",
			period: models.PeriodMonth,
			want: models.Series{
				{Key: "2024-01", Value: 15},
				{Key: "2024-02", Value: 6},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(sample(), FieldUsage, tt.period, ReduceSum)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregateMeanCost(t *testing.T) {
	got := Aggregate(sample(), FieldCost, models.PeriodMonth, ReduceMean)
	require.Len(t, got, 2)
	assert.InDelta(t, 4.5/5, got[0].Value, 1e-9)
	assert.InDelta(t, 1.8, got[1].Value, 1e-9)
}

func TestAggregateSumsAgreeAcrossGranularities(t *testing.T) {
	records := sample()
	day := Aggregate(records, FieldUsage, models.PeriodDay, ReduceSum).Sum()
	week := Aggregate(records, FieldUsage, models.PeriodWeek, ReduceSum).Sum()
	month := Aggregate(records, FieldUsage, models.PeriodMonth, ReduceSum).Sum()

	assert.InDelta(t, day, month, 1e-9)
	assert.InDelta(t, day, week, 1e-9)
}

func TestPeriodStartWeekBoundaries(t *testing.T) {
	sunday := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), PeriodStart(sunday, models.PeriodWeek))
	assert.Equal(t, monday, PeriodStart(monday, models.PeriodWeek))
}

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		insight string
		percent float64
	}{
		{name: "increase", values: []float64{10, 20}, insight: "increased by 100.00%", percent: 100},
		{name: "decrease", values: []float64{20, 10}, insight: "decreased by 50.00%", percent: 50},
		{name: "rounds", values: []float64{7, 3, 3.1}, insight: "increased by 3.33%", percent: 3.33},
		{name: "flat", values: []float64{4, 4}, insight: "unchanged (0.00%)", percent: 0},
		{name: "single", values: []float64{5}, insight: models.InsufficientData},
		{name: "empty", insight: models.InsufficientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := models.Series{}
			for i, v := range tt.values {
				series = append(series, models.Point{Key: string(rune('a' + i)), Value: v})
			}

			trend, err := ComputeTrend(series)
			require.NoError(t, err)
			assert.Equal(t, tt.insight, trend.String())
			assert.Equal(t, tt.percent, trend.Percent)
		})
	}
}

func TestComputeTrendZeroBase(t *testing.T) {
	_, err := ComputeTrend(models.Series{{Key: "2024-01", Value: 0}, {Key: "2024-02", Value: 3}})
	assert.ErrorIs(t, err, apperrors.ErrComputation)
}

func TestPeakHour(t *testing.T) {
	peak, err := PeakHour(sample())
	require.NoError(t, err)
	assert.Equal(t, models.PeakHour{Hour: 18, Usage: 9}, peak)
}

func TestPeakHourTieGoesToEarliest(t *testing.T) {
	records := []models.UsageRecord{
		rec("2024-01-01 20:00", 2, 0),
		rec("2024-01-01 03:00", 2, 0),
		rec("2024-01-02 12:00", 1, 0),
	}

	peak, err := PeakHour(records)
	require.NoError(t, err)
	assert.Equal(t, 3, peak.Hour)
}

func TestPeakHourWithoutTimestamps(t *testing.T) {
	_, err := PeakHour([]models.UsageRecord{{KWh: 1}})
	assert.ErrorIs(t, err, apperrors.ErrComputation)
}

func TestHourlyUsageTrend(t *testing.T) {
	got := HourlyUsageTrend(sample())
	assert.Equal(t, models.Series{
		{Key: "9", Value: 4},
		{Key: "10", Value: 1.5},
		{Key: "18", Value: 4.5},
		{Key: "19", Value: 5},
	}, got)
}

func TestAnomalies(t *testing.T) {
	var records []models.UsageRecord
	for h := 0; h < 10; h++ {
		records = append(records, rec(fmt.Sprintf("2024-01-01 %02d:00", h), 1, 0))
	}
	records = append(records, rec("2024-01-01 12:00", 20, 0))

	got := Anomalies(records, DefaultAnomalySigma)
	assert.Equal(t, []models.Anomaly{{Timestamp: "2024-01-01 12:00:00", Usage: 20}}, got)
}

func TestAnomaliesDegenerate(t *testing.T) {
	tests := []struct {
		name    string
		records []models.UsageRecord
	}{
		{name: "uniform", records: []models.UsageRecord{rec("2024-01-01 00:00", 2, 0), rec("2024-01-01 01:00", 2, 0), rec("2024-01-01 02:00", 2, 0)}},
		{name: "single", records: []models.UsageRecord{rec("2024-01-01 00:00", 9, 0)}},
		{name: "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Anomalies(tt.records, DefaultAnomalySigma)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestAnomaliesNullTimestamp(t *testing.T) {
	records := []models.UsageRecord{{KWh: 100}}
	for i := 0; i < 20; i++ {
		records = append(records, rec("2024-01-01 00:00", 1, 0))
	}

	got := Anomalies(records, DefaultAnomalySigma)
	require.Len(t, got, 1)
	assert.Equal(t, "NaT", got[0].Timestamp)
}

func TestSplitWeek(t *testing.T) {
	records := sample()
	split := SplitWeek(records)

	assert.Equal(t, 3.0, split.WeekendUsage)
	assert.Equal(t, 18.0, split.WeekdayUsage)

	var timestamped float64
	for _, r := range records {
		if r.HasTimestamp() {
			timestamped += r.KWh
		}
	}
	assert.Equal(t, timestamped, split.WeekdayUsage+split.WeekendUsage)
}

func TestSplitWeekEmptyPartition(t *testing.T) {
	split := SplitWeek([]models.UsageRecord{rec("2024-01-08 00:00", 2, 0)})
	assert.Equal(t, models.WeekSplit{WeekdayUsage: 2}, split)
}

func TestHighCostDays(t *testing.T) {
	records := []models.UsageRecord{
		rec("2024-01-01 00:00", 10, 1),
		rec("2024-01-02 00:00", 10, 1),
		rec("2024-01-03 00:00", 4, 0.4),
		rec("2024-01-03 01:00", 6, 0.6),
		rec("2024-01-04 00:00", 10, 5),
		rec("2024-01-05 00:00", 0, 1), // No usage, no ratio
	}

	got := HighCostDays(records)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-01-04", got[0].Key)
	assert.InDelta(t, 0.5, got[0].Value, 1e-9)
}

func TestHighCostDaysSingleDay(t *testing.T) {
	got := HighCostDays([]models.UsageRecord{rec("2024-01-01 00:00", 10, 1)})
	assert.Empty(t, got)
}
