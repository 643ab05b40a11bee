package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jgoulah/gridinsight/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API. Upload an export with POST /upload, then query
/total_usage, /cost_trends, /peak_hours, /anomalies, /hourly_usage_trend,
/weekday_vs_weekend, /high_cost_days, /forecast_usage and /report.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger := newLogger(cfg)
	eng := newEngine(cfg, logger)

	closeArchive, err := attachArchive(cfg, eng, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(eng, cfg, logger).ListenAndServe(ctx)
}
