package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/gridinsight/internal/publisher"
)

var publishDays int

var publishCmd = &cobra.Command{
	Use:   "publish <export.csv>",
	Short: "Publish an export's analytics to MQTT and Home Assistant",
	Long: `Ingests a usage export and publishes its peak hour, weekday/weekend split and
forecast as retained MQTT messages. When Home Assistant is enabled the latest
forecast point is also sent to its HTTP API.`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().IntVar(&publishDays, "days", 0, "Forecast days (default from config)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.MQTT.Enabled && !cfg.HomeAssistant.Enabled {
		return fmt.Errorf("neither MQTT nor Home Assistant is enabled in config")
	}
	if !cmd.Flags().Changed("days") {
		publishDays = cfg.Analytics.ForecastDays
	}

	ctx := context.Background()
	eng := newEngine(cfg, newLogger(cfg))
	summary, err := ingestFile(ctx, eng, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("✓ Ingested %d readings (%s)\n", summary.Rows, summary.ID)

	report, err := eng.Report(ctx, cfg.Analytics.DefaultPeriod, publishDays)
	if err != nil {
		return fmt.Errorf("building report: %w", err)
	}

	pub, err := publisher.New(cfg)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	if err := pub.Publish(publisher.Summary{
		Ingestion: report.Ingestion,
		PeakHour:  report.PeakHour,
		WeekSplit: report.WeekSplit,
		Forecast:  report.Forecast,
	}); err != nil {
		return fmt.Errorf("publishing: %w", err)
	}

	if cfg.MQTT.Enabled {
		fmt.Printf("✓ Published to MQTT under %s/\n", cfg.GetTopicPrefix())
	}
	if cfg.HomeAssistant.Enabled && len(report.Forecast) > 0 {
		last := report.Forecast[len(report.Forecast)-1]
		fmt.Printf("✓ Sent %s forecast (%.2f kWh) to %s\n", last.Key, last.Value, cfg.HomeAssistant.EntityID)
	}
	return nil
}
