// Package engine is the entry point for ingesting usage exports and querying
// analytics over the active dataset.
package engine

import (
	"context"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jgoulah/gridinsight/internal/analytics"
	"github.com/jgoulah/gridinsight/internal/apperrors"
	"github.com/jgoulah/gridinsight/internal/forecast"
	"github.com/jgoulah/gridinsight/internal/parser"
	"github.com/jgoulah/gridinsight/internal/store"
	"github.com/jgoulah/gridinsight/pkg/models"
)

// Archiver receives every successfully ingested dataset
type Archiver interface {
	ArchiveIngestion(ctx context.Context, summary models.IngestSummary, records []models.UsageRecord) error
}

// Options tunes parsing and analysis
type Options struct {
	Parser         parser.Options
	ForecastWindow int
	AnomalySigma   float64
}

// DefaultOptions returns the standard export layout and analysis settings
func DefaultOptions() Options {
	return Options{
		Parser:         parser.DefaultOptions(),
		ForecastWindow: forecast.DefaultWindow,
		AnomalySigma:   analytics.DefaultAnomalySigma,
	}
}

// Engine owns the dataset store and answers queries against its current snapshot
type Engine struct {
	store    *store.Store
	opts     Options
	logger   *slog.Logger
	archiver Archiver
}

// New creates an engine over st
func New(st *store.Store, opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		store:  st,
		opts:   opts,
		logger: logger.With(slog.String("component", "engine")),
	}
}

// SetArchiver registers an archive for ingested datasets
func (e *Engine) SetArchiver(a Archiver) {
	e.archiver = a
}

// Ingest parses raw export text and replaces the active dataset. On failure
// the previous dataset stays active.
func (e *Engine) Ingest(ctx context.Context, raw string) (models.IngestSummary, error) {
	records, err := parser.ParseString(raw, e.opts.Parser)
	if err != nil {
		return e.ingestFailed(err)
	}
	return e.install(ctx, records)
}

// IngestReader is Ingest for streamed uploads
func (e *Engine) IngestReader(ctx context.Context, r io.Reader) (models.IngestSummary, error) {
	records, err := parser.Parse(r, e.opts.Parser)
	if err != nil {
		return e.ingestFailed(err)
	}
	return e.install(ctx, records)
}

func (e *Engine) ingestFailed(err error) (models.IngestSummary, error) {
	kind, _ := apperrors.KindOf(err)
	e.logger.Warn("ingestion rejected", slog.String("kind", string(kind)), slog.String("error", err.Error()))
	return models.IngestSummary{}, err
}

func (e *Engine) install(ctx context.Context, records []models.UsageRecord) (models.IngestSummary, error) {
	snap := e.store.Replace(records)
	summary := summarize(snap)

	e.logger.Info("dataset replaced",
		slog.String("id", summary.ID),
		slog.Int("rows", summary.Rows),
		slog.Time("first", summary.First),
		slog.Time("last", summary.Last))

	if e.archiver != nil {
		if err := e.archiver.ArchiveIngestion(ctx, summary, snap.Records); err != nil {
			e.logger.Error("archiving ingestion failed", slog.String("id", summary.ID), slog.String("error", err.Error()))
		}
	}

	return summary, nil
}

// Summary describes the active dataset
func (e *Engine) Summary() (models.IngestSummary, error) {
	snap, err := e.store.Current()
	if err != nil {
		return models.IngestSummary{}, err
	}
	return summarize(snap), nil
}

// Records returns the active dataset's records. The slice must not be modified.
func (e *Engine) Records() ([]models.UsageRecord, error) {
	snap, err := e.store.Current()
	if err != nil {
		return nil, err
	}
	return snap.Records, nil
}

func summarize(snap *store.Snapshot) models.IngestSummary {
	summary := models.IngestSummary{
		ID:         snap.ID,
		IngestedAt: snap.IngestedAt,
		Rows:       len(snap.Records),
	}
	for _, r := range snap.Records {
		summary.TotalUsage += r.KWh
		summary.TotalCost += r.Cost
		if !r.HasTimestamp() {
			continue
		}
		if summary.First.IsZero() || r.Timestamp.Before(summary.First) {
			summary.First = r.Timestamp
		}
		if r.Timestamp.After(summary.Last) {
			summary.Last = r.Timestamp
		}
	}
	return summary
}

// ParsePeriod validates a period parameter
func ParsePeriod(s string) (models.Period, error) {
	p, ok := models.ParsePeriod(s)
	if !ok {
		return "", apperrors.Validation("invalid period %q: use 'day', 'week', or 'month'", s)
	}
	return p, nil
}

// TotalUsage sums usage per period with a trend insight over the last two periods
func (e *Engine) TotalUsage(period string) (models.PeriodSummary, error) {
	return e.periodSummary(period, analytics.FieldUsage)
}

// CostTrends sums cost per period with a trend insight over the last two periods
func (e *Engine) CostTrends(period string) (models.PeriodSummary, error) {
	return e.periodSummary(period, analytics.FieldCost)
}

func (e *Engine) periodSummary(period string, field analytics.Field) (models.PeriodSummary, error) {
	p, err := ParsePeriod(period)
	if err != nil {
		return models.PeriodSummary{}, err
	}
	snap, err := e.store.Current()
	if err != nil {
		return models.PeriodSummary{}, err
	}
	return periodSummary(snap.Records, p, field)
}

func periodSummary(records []models.UsageRecord, p models.Period, field analytics.Field) (models.PeriodSummary, error) {
	data := analytics.Aggregate(records, field, p, analytics.ReduceSum)
	trend, err := analytics.ComputeTrend(data)
	if err != nil {
		return models.PeriodSummary{}, err
	}
	return models.PeriodSummary{Period: p, Data: data, Trend: trend, Insight: trend.String()}, nil
}

// reportSummary keeps the aggregate when the trend cannot be computed and
// carries the reason as the insight instead
func reportSummary(records []models.UsageRecord, p models.Period, field analytics.Field) models.PeriodSummary {
	summary, err := periodSummary(records, p, field)
	if err != nil {
		data := analytics.Aggregate(records, field, p, analytics.ReduceSum)
		return models.PeriodSummary{Period: p, Data: data, Insight: err.Error()}
	}
	return summary
}

// PeakHours returns the hour of day with the highest total usage
func (e *Engine) PeakHours() (models.PeakHour, error) {
	snap, err := e.store.Current()
	if err != nil {
		return models.PeakHour{}, err
	}
	return analytics.PeakHour(snap.Records)
}

// Anomalies returns readings far above the dataset's typical usage
func (e *Engine) Anomalies() ([]models.Anomaly, error) {
	snap, err := e.store.Current()
	if err != nil {
		return nil, err
	}
	return analytics.Anomalies(snap.Records, e.opts.AnomalySigma), nil
}

// HourlyUsageTrend returns mean usage per hour of day
func (e *Engine) HourlyUsageTrend() (models.Series, error) {
	snap, err := e.store.Current()
	if err != nil {
		return nil, err
	}
	return analytics.HourlyUsageTrend(snap.Records), nil
}

// WeekdayVsWeekend compares usage on weekdays and weekends
func (e *Engine) WeekdayVsWeekend() (models.WeekSplit, error) {
	snap, err := e.store.Current()
	if err != nil {
		return models.WeekSplit{}, err
	}
	return analytics.SplitWeek(snap.Records), nil
}

// HighCostDays returns days with an unusually high cost per kWh
func (e *Engine) HighCostDays() (models.Series, error) {
	snap, err := e.store.Current()
	if err != nil {
		return nil, err
	}
	return analytics.HighCostDays(snap.Records), nil
}

// ForecastUsage returns up to days points of smoothed daily usage
func (e *Engine) ForecastUsage(days int) (models.Series, error) {
	if days <= 0 {
		return nil, apperrors.Validation("days must be a positive integer, got %d", days)
	}
	snap, err := e.store.Current()
	if err != nil {
		return nil, err
	}
	return forecast.Usage(snap.Records, days, e.opts.ForecastWindow)
}

// Report computes every analysis against a single snapshot
func (e *Engine) Report(ctx context.Context, period string, days int) (models.Report, error) {
	p, err := ParsePeriod(period)
	if err != nil {
		return models.Report{}, err
	}
	if days <= 0 {
		return models.Report{}, apperrors.Validation("days must be a positive integer, got %d", days)
	}
	snap, err := e.store.Current()
	if err != nil {
		return models.Report{}, err
	}

	records := snap.Records
	report := models.Report{Ingestion: summarize(snap)}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		report.Usage = reportSummary(records, p, analytics.FieldUsage)
		return nil
	})
	g.Go(func() error {
		report.Cost = reportSummary(records, p, analytics.FieldCost)
		return nil
	})
	g.Go(func() (err error) {
		report.PeakHour, err = analytics.PeakHour(records)
		return err
	})
	g.Go(func() error {
		report.Anomalies = analytics.Anomalies(records, e.opts.AnomalySigma)
		return nil
	})
	g.Go(func() error {
		report.HourlyTrend = analytics.HourlyUsageTrend(records)
		return nil
	})
	g.Go(func() error {
		report.WeekSplit = analytics.SplitWeek(records)
		return nil
	})
	g.Go(func() error {
		report.CostlyDays = analytics.HighCostDays(records)
		return nil
	})
	g.Go(func() (err error) {
		report.Forecast, err = forecast.Usage(records, days, e.opts.ForecastWindow)
		return err
	})

	if err := g.Wait(); err != nil {
		return models.Report{}, err
	}
	return report, nil
}
