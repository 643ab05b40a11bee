package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/gridinsight/internal/analytics"
	"github.com/jgoulah/gridinsight/internal/influxdb"
)

var (
	exportDays         int
	exportSkipForecast bool
)

var exportCmd = &cobra.Command{
	Use:   "export <export.csv>",
	Short: "Write daily usage and forecast points to InfluxDB",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().IntVar(&exportDays, "days", 0, "Forecast days (default from config)")
	exportCmd.Flags().BoolVar(&exportSkipForecast, "no-forecast", false, "Only write daily totals")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.InfluxDB.Enabled {
		return fmt.Errorf("InfluxDB is not enabled in config")
	}
	if !cmd.Flags().Changed("days") {
		exportDays = cfg.Analytics.ForecastDays
	}

	ctx := context.Background()
	logger := newLogger(cfg)
	eng := newEngine(cfg, logger)
	if _, err := ingestFile(ctx, eng, args[0]); err != nil {
		return err
	}

	records, err := eng.Records()
	if err != nil {
		return err
	}
	points, err := influxdb.DailyPoints(
		analytics.DailyTotals(records, analytics.FieldUsage),
		analytics.DailyTotals(records, analytics.FieldCost),
	)
	if err != nil {
		return fmt.Errorf("building daily points: %w", err)
	}

	if !exportSkipForecast {
		forecast, err := eng.ForecastUsage(exportDays)
		if err != nil {
			return fmt.Errorf("forecasting: %w", err)
		}
		forecastPoints, err := influxdb.ForecastPoints(forecast)
		if err != nil {
			return fmt.Errorf("building forecast points: %w", err)
		}
		points = append(points, forecastPoints...)
	}

	client, err := influxdb.NewClient(ctx, cfg.InfluxDB, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.WritePoints(ctx, points); err != nil {
		return err
	}

	fmt.Printf("✓ Wrote %d points to %s/%s\n", len(points), cfg.InfluxDB.Org, cfg.InfluxDB.Bucket)
	return nil
}
