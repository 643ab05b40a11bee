package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jgoulah/gridinsight/internal/config"
	"github.com/jgoulah/gridinsight/internal/database"
	"github.com/jgoulah/gridinsight/internal/engine"
	"github.com/jgoulah/gridinsight/internal/logging"
	"github.com/jgoulah/gridinsight/internal/store"
	"github.com/jgoulah/gridinsight/pkg/models"
)

var (
	cfgFile string
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "gridinsight",
	Short: "Analyze electricity interval usage exports",
	Long: `GridInsight ingests interval usage exports from your utility and answers questions
about them: period totals and trends, peak hours, anomalies, high-cost days and a
short-horizon usage forecast. Run it as an HTTP service or straight from the command line.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "archive database file (overrides database.path)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// openDB opens the archive database, preferring the --db flag over config
func openDB(cfg *config.Config) (*database.DB, error) {
	path := cfg.Database.Path
	if dbPath != "" {
		path = dbPath
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// newLogger builds the process logger; CLI commands log to stderr so stdout
// stays clean for output
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(cfg.Logging, os.Stderr)
}

// newEngine builds an engine configured from cfg
func newEngine(cfg *config.Config, logger *slog.Logger) *engine.Engine {
	return engine.New(store.New(), engine.Options{
		Parser:         cfg.ParserOptions(),
		ForecastWindow: cfg.Analytics.ForecastWindow,
		AnomalySigma:   cfg.Analytics.AnomalySigma,
	}, logger)
}

// attachArchive archives ingestions to SQLite when the database is enabled
// or --db is given. The returned func closes the database.
func attachArchive(cfg *config.Config, eng *engine.Engine, logger *slog.Logger) (func(), error) {
	if !cfg.Database.Enabled && dbPath == "" {
		return func() {}, nil
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	eng.SetArchiver(db)
	logger.Debug("archiving ingestions", slog.String("path", db.Path()))

	return func() { db.Close() }, nil
}

// ingestFile loads an export from disk into eng
func ingestFile(ctx context.Context, eng *engine.Engine, path string) (models.IngestSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.IngestSummary{}, fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()

	summary, err := eng.IngestReader(ctx, f)
	if err != nil {
		return models.IngestSummary{}, fmt.Errorf("ingesting %s: %w", path, err)
	}
	return summary, nil
}
