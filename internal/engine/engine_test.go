package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/gridinsight/internal/apperrors"
	"github.com/jgoulah/gridinsight/internal/logging"
	"github.com/jgoulah/gridinsight/internal/store"
	"github.com/jgoulah/gridinsight/pkg/models"
)

const preamble = "Name,Jane Doe\nAddress,1 Main St\nAccount Number,42\nService,Electric\nRate,E-1\n\n"

// buildExport writes one row per hour for days days starting 2024-01-01
func buildExport(days int, hours []int, usage func(day, hour int) float64) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("TYPE,DATE,START TIME,END TIME,USAGE (kWh),COST,NOTES\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < days; d++ {
		date := start.AddDate(0, 0, d).Format("2006-01-02")
		for _, h := range hours {
			kwh := usage(d, h)
			fmt.Fprintf(&b, "Electric usage,%s,%02d:00,%02d:59,%.2f,$%.2f,\n", date, h, h, kwh, kwh*0.25)
		}
	}
	return b.String()
}

func flat(kwh float64) func(int, int) float64 {
	return func(int, int) float64 { return kwh }
}

func newEngine() *Engine {
	return New(store.New(), DefaultOptions(), logging.Discard())
}

type fakeArchiver struct {
	summaries []models.IngestSummary
	rows      int
	err       error
}

func (f *fakeArchiver) ArchiveIngestion(_ context.Context, summary models.IngestSummary, records []models.UsageRecord) error {
	f.summaries = append(f.summaries, summary)
	f.rows += len(records)
	return f.err
}

func TestQueriesBeforeIngestion(t *testing.T) {
	e := newEngine()

	queries := map[string]func() error{
		"total_usage":        func() error { _, err := e.TotalUsage("week"); return err },
		"cost_trends":        func() error { _, err := e.CostTrends("day"); return err },
		"peak_hours":         func() error { _, err := e.PeakHours(); return err },
		"anomalies":          func() error { _, err := e.Anomalies(); return err },
		"hourly_usage_trend": func() error { _, err := e.HourlyUsageTrend(); return err },
		"weekday_vs_weekend": func() error { _, err := e.WeekdayVsWeekend(); return err },
		"high_cost_days":     func() error { _, err := e.HighCostDays(); return err },
		"forecast_usage":     func() error { _, err := e.ForecastUsage(7); return err },
		"summary":            func() error { _, err := e.Summary(); return err },
		"report":             func() error { _, err := e.Report(context.Background(), "week", 7); return err },
	}

	for name, query := range queries {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, query(), apperrors.ErrNoData)
		})
	}
}

func TestIngestThenQuery(t *testing.T) {
	e := newEngine()

	summary, err := e.Ingest(context.Background(), buildExport(3, []int{0, 12}, flat(1)))
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Rows)
	assert.NotEmpty(t, summary.ID)
	assert.InDelta(t, 6.0, summary.TotalUsage, 1e-9)
	assert.InDelta(t, 1.5, summary.TotalCost, 1e-9)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), summary.First)
	assert.Equal(t, time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), summary.Last)

	usage, err := e.TotalUsage("day")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, usage.Data.Keys())
	assert.Equal(t, "unchanged (0.00%)", usage.Insight)
}

func TestIngestSupersedesPreviousDataset(t *testing.T) {
	e := newEngine()

	_, err := e.Ingest(context.Background(), buildExport(10, []int{1}, flat(2)))
	require.NoError(t, err)
	_, err = e.Ingest(context.Background(), buildExport(2, []int{5}, flat(3)))
	require.NoError(t, err)

	usage, err := e.TotalUsage("month")
	require.NoError(t, err)
	assert.Equal(t, models.Series{{Key: "2024-01", Value: 6}}, usage.Data)

	peak, err := e.PeakHours()
	require.NoError(t, err)
	assert.Equal(t, 5, peak.Hour)
}

func TestFailedIngestKeepsPreviousDataset(t *testing.T) {
	e := newEngine()

	first, err := e.Ingest(context.Background(), buildExport(2, []int{0}, flat(1)))
	require.NoError(t, err)

	bad := "Extra,1\nExtra,2\n" + buildExport(2, []int{0}, flat(1)) + "Electric usage,2024-01-05,00:00,00:59,oops,$1,\n"
	_, err = e.Ingest(context.Background(), bad)
	assert.ErrorIs(t, err, apperrors.ErrParse)

	_, err = e.Ingest(context.Background(), preamble+"TYPE,DATE,START TIME,END TIME,USAGE (kWh),COST\n")
	assert.ErrorIs(t, err, apperrors.ErrEmptyDataset)

	current, err := e.Summary()
	require.NoError(t, err)
	assert.Equal(t, first.ID, current.ID)
	assert.Equal(t, 2, current.Rows)
}

func TestInvalidParameters(t *testing.T) {
	e := newEngine()
	_, err := e.Ingest(context.Background(), buildExport(2, []int{0}, flat(1)))
	require.NoError(t, err)

	_, err = e.TotalUsage("year")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = e.CostTrends("")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = e.ForecastUsage(0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = e.Report(context.Background(), "fortnight", 7)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = e.Report(context.Background(), "week", -1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestTrendOverZeroPeriod(t *testing.T) {
	e := newEngine()
	usage := func(day, _ int) float64 {
		if day == 0 {
			return 0
		}
		return 2
	}
	_, err := e.Ingest(context.Background(), buildExport(2, []int{0}, usage))
	require.NoError(t, err)

	_, err = e.TotalUsage("day")
	assert.ErrorIs(t, err, apperrors.ErrComputation)

	report, err := e.Report(context.Background(), "day", 7)
	require.NoError(t, err)
	assert.Len(t, report.Usage.Data, 2)
	assert.Contains(t, report.Usage.Insight, "previous period total is zero")
}

func TestDayAndMonthTotalsAgree(t *testing.T) {
	e := newEngine()
	_, err := e.Ingest(context.Background(), buildExport(45, []int{0, 8, 17}, func(d, h int) float64 {
		return float64(d%5) + float64(h)/10
	}))
	require.NoError(t, err)

	day, err := e.TotalUsage("day")
	require.NoError(t, err)
	month, err := e.TotalUsage("month")
	require.NoError(t, err)

	assert.InDelta(t, day.Data.Sum(), month.Data.Sum(), 1e-6)
	assert.Equal(t, []string{"2024-01", "2024-02"}, month.Data.Keys())
}

func TestWeekdayWeekendCoversAllUsage(t *testing.T) {
	e := newEngine()
	_, err := e.Ingest(context.Background(), buildExport(14, []int{6, 18}, func(d, _ int) float64 { return float64(d + 1) }))
	require.NoError(t, err)

	split, err := e.WeekdayVsWeekend()
	require.NoError(t, err)
	summary, err := e.Summary()
	require.NoError(t, err)

	assert.InDelta(t, summary.TotalUsage, split.WeekdayUsage+split.WeekendUsage, 1e-9)
	// 2024-01-06/07 and 13/14 are weekends: days 6, 7, 13, 14 times two readings
	assert.InDelta(t, 80.0, split.WeekendUsage, 1e-9)
}

func TestForecastLength(t *testing.T) {
	e := newEngine()
	_, err := e.Ingest(context.Background(), buildExport(10, []int{0}, flat(1)))
	require.NoError(t, err)

	got, err := e.ForecastUsage(30)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = e.ForecastUsage(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-09", "2024-01-10"}, got.Keys())
}

func TestReport(t *testing.T) {
	e := newEngine()
	spike := func(d, h int) float64 {
		if d == 3 && h == 18 {
			return 40
		}
		return 1
	}
	_, err := e.Ingest(context.Background(), buildExport(21, []int{0, 6, 12, 18}, spike))
	require.NoError(t, err)

	report, err := e.Report(context.Background(), "week", 3)
	require.NoError(t, err)

	assert.Equal(t, 84, report.Ingestion.Rows)
	assert.Equal(t, models.PeriodWeek, report.Usage.Period)
	assert.Equal(t, 18, report.PeakHour.Hour)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, "2024-01-04 18:00:00", report.Anomalies[0].Timestamp)
	assert.Len(t, report.HourlyTrend, 4)
	assert.Len(t, report.Forecast, 3)
	assert.InDelta(t, report.Ingestion.TotalUsage, report.WeekSplit.WeekdayUsage+report.WeekSplit.WeekendUsage, 1e-9)
}

func TestArchiver(t *testing.T) {
	e := newEngine()
	archive := &fakeArchiver{}
	e.SetArchiver(archive)

	summary, err := e.Ingest(context.Background(), buildExport(2, []int{0, 1}, flat(1)))
	require.NoError(t, err)
	require.Len(t, archive.summaries, 1)
	assert.Equal(t, summary.ID, archive.summaries[0].ID)
	assert.Equal(t, 4, archive.rows)

	_, err = e.Ingest(context.Background(), "garbage")
	assert.Error(t, err)
	assert.Len(t, archive.summaries, 1)

	archive.err = errors.New("disk full")
	_, err = e.Ingest(context.Background(), buildExport(1, []int{0}, flat(1)))
	assert.NoError(t, err)
}

func TestIngestReader(t *testing.T) {
	e := newEngine()
	summary, err := e.IngestReader(context.Background(), strings.NewReader(buildExport(1, []int{3}, flat(2))))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rows)
}
