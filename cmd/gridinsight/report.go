package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/gridinsight/pkg/models"
)

var (
	reportPeriod string
	reportDays   int
	reportJSON   bool
)

var reportCmd = &cobra.Command{
	Use:   "report <export.csv>",
	Short: "Print every analysis for an export",
	Long:  `Ingests a usage export and prints totals, cost trends, peak hour, anomalies, weekday/weekend split, high-cost days and the forecast.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportPeriod, "period", "", "Aggregation period: day, week or month (default from config)")
	reportCmd.Flags().IntVar(&reportDays, "days", 0, "Forecast days (default from config)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if reportPeriod == "" {
		reportPeriod = cfg.Analytics.DefaultPeriod
	}
	if !cmd.Flags().Changed("days") {
		reportDays = cfg.Analytics.ForecastDays
	}

	ctx := context.Background()
	logger := newLogger(cfg)
	eng := newEngine(cfg, logger)
	closeArchive, err := attachArchive(cfg, eng, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	if _, err := ingestFile(ctx, eng, args[0]); err != nil {
		return err
	}

	report, err := eng.Report(ctx, reportPeriod, reportDays)
	if err != nil {
		return fmt.Errorf("building report: %w", err)
	}

	if reportJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(report)
	return nil
}

func kwh(v float64) string {
	return humanize.FormatFloat("#,###.##", v) + " kWh"
}

func dollars(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

func printReport(r models.Report) {
	in := r.Ingestion
	fmt.Printf("Dataset %s (%s readings, ingested %s)\n", in.ID, humanize.Comma(int64(in.Rows)), humanize.Time(in.IngestedAt))
	if !in.First.IsZero() {
		fmt.Printf("Covers %s to %s\n", in.First.Format(time.DateTime), in.Last.Format(time.DateTime))
	}
	fmt.Printf("Total: %s, %s\n", kwh(in.TotalUsage), dollars(in.TotalCost))

	printSeries(fmt.Sprintf("Usage by %s", r.Usage.Period), r.Usage.Data, kwh)
	fmt.Printf("Trend: %s\n", r.Usage.Insight)

	printSeries(fmt.Sprintf("Cost by %s", r.Cost.Period), r.Cost.Data, dollars)
	fmt.Printf("Trend: %s\n", r.Cost.Insight)

	fmt.Printf("\nPeak hour: %02d:00 (%s)\n", r.PeakHour.Hour, kwh(r.PeakHour.Usage))
	fmt.Printf("Weekday usage: %s\n", kwh(r.WeekSplit.WeekdayUsage))
	fmt.Printf("Weekend usage: %s\n", kwh(r.WeekSplit.WeekendUsage))

	fmt.Printf("\nAnomalies: %d\n", len(r.Anomalies))
	for _, a := range r.Anomalies {
		fmt.Printf("  %-19s  %10.2f\n", a.Timestamp, a.Usage)
	}

	printSeries("High-cost days ($/kWh)", r.CostlyDays, func(v float64) string { return fmt.Sprintf("%.4f", v) })
	printSeries("Forecast (moving average)", r.Forecast, kwh)
}

func printSeries(title string, s models.Series, format func(float64) string) {
	fmt.Printf("\n%s:\n", title)
	fmt.Println("----------------------------------------")
	if len(s) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, p := range s {
		fmt.Printf("  %-22s  %14s\n", p.Key, format(p.Value))
	}
}
