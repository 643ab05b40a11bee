package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/jgoulah/gridinsight/internal/parser"
)

// EnvPrefix prefixes environment overrides, e.g. GRIDINSIGHT_SERVER_ADDR
const EnvPrefix = "GRIDINSIGHT"

// Config holds the application configuration
type Config struct {
	Server        ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Parser        ParserConfig    `yaml:"parser" envconfig:"PARSER"`
	Analytics     AnalyticsConfig `yaml:"analytics" envconfig:"ANALYTICS"`
	Logging       LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Database      DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	MQTT          MQTTConfig      `yaml:"mqtt,omitempty" envconfig:"MQTT"`
	HomeAssistant HAConfig        `yaml:"home_assistant,omitempty" envconfig:"HOME_ASSISTANT"`
	InfluxDB      InfluxDBConfig  `yaml:"influxdb,omitempty" envconfig:"INFLUXDB"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr           string        `yaml:"addr" split_words:"true" validate:"required"`
	ReadTimeout    time.Duration `yaml:"read_timeout" split_words:"true" validate:"gt=0"`
	WriteTimeout   time.Duration `yaml:"write_timeout" split_words:"true" validate:"gt=0"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" split_words:"true" validate:"gt=0"`
}

// ParserConfig describes the export layout
type ParserConfig struct {
	SkipRows         int    `yaml:"skip_rows" split_words:"true" validate:"gte=0"`
	HeaderSearchRows int    `yaml:"header_search_rows" split_words:"true" validate:"gte=0"`
	DateColumn       string `yaml:"date_column" split_words:"true" validate:"required"`
	StartTimeColumn  string `yaml:"start_time_column" split_words:"true" validate:"required"`
	UsageColumn      string `yaml:"usage_column" split_words:"true" validate:"required"`
	CostColumn       string `yaml:"cost_column" split_words:"true" validate:"required"`
	TimestampLayout  string `yaml:"timestamp_layout" split_words:"true" validate:"required"`
}

// AnalyticsConfig tunes the analyzers and forecaster
type AnalyticsConfig struct {
	DefaultPeriod  string  `yaml:"default_period" split_words:"true" validate:"oneof=day week month"`
	ForecastDays   int     `yaml:"forecast_days" split_words:"true" validate:"gt=0"`
	ForecastWindow int     `yaml:"forecast_window" split_words:"true" validate:"gt=0"`
	AnomalySigma   float64 `yaml:"anomaly_sigma" split_words:"true" validate:"gte=0"`
}

// LoggingConfig controls the slog handler
type LoggingConfig struct {
	Level  string `yaml:"level" split_words:"true" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" split_words:"true" validate:"oneof=text json"`
}

// DatabaseConfig holds the SQLite ingestion archive settings
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled" split_words:"true"`
	Path    string `yaml:"path" split_words:"true" validate:"required_if=Enabled true"`
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" split_words:"true"`
	Broker      string `yaml:"broker" split_words:"true" validate:"required_if=Enabled true"` // host:port
	ClientID    string `yaml:"client_id,omitempty" split_words:"true"`
	TopicPrefix string `yaml:"topic_prefix,omitempty" split_words:"true"`
	Username    string `yaml:"username,omitempty" split_words:"true"`
	Password    string `yaml:"password,omitempty" split_words:"true"`
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled  bool   `yaml:"enabled" split_words:"true"`
	URL      string `yaml:"url" split_words:"true" validate:"required_if=Enabled true"`       // e.g., "http://homeassistant.local:5050"
	Token    string `yaml:"token" split_words:"true" validate:"required_if=Enabled true"`     // Long-lived access token
	EntityID string `yaml:"entity_id" split_words:"true" validate:"required_if=Enabled true"` // e.g., "sensor.usage_forecast"
}

// InfluxDBConfig holds InfluxDB v2 export settings
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled" split_words:"true"`
	URL     string `yaml:"url" split_words:"true" validate:"required_if=Enabled true"`
	Token   string `yaml:"token" split_words:"true"`
	Org     string `yaml:"org" split_words:"true" validate:"required_if=Enabled true"`
	Bucket  string `yaml:"bucket" split_words:"true" validate:"required_if=Enabled true"`
}

// Default returns the configuration used when no file or overrides exist
func Default() *Config {
	opts := parser.DefaultOptions()
	return &Config{
		Server: ServerConfig{
			Addr:           ":8000",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxUploadBytes: 32 << 20,
		},
		Parser: ParserConfig{
			SkipRows:         opts.SkipRows,
			HeaderSearchRows: opts.HeaderSearchRows,
			DateColumn:       opts.DateColumn,
			StartTimeColumn:  opts.StartTimeColumn,
			UsageColumn:      opts.UsageColumn,
			CostColumn:       opts.CostColumn,
			TimestampLayout:  opts.TimestampLayout,
		},
		Analytics: AnalyticsConfig{
			DefaultPeriod:  "week",
			ForecastDays:   7,
			ForecastWindow: 7,
			AnomalySigma:   2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			Path: "data.db",
		},
	}
}

// Load reads the config file, applies environment overrides and validates
// the result. A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// ParserOptions converts the parser section into parser options
func (c *Config) ParserOptions() parser.Options {
	return parser.Options{
		SkipRows:         c.Parser.SkipRows,
		HeaderSearchRows: c.Parser.HeaderSearchRows,
		DateColumn:       c.Parser.DateColumn,
		StartTimeColumn:  c.Parser.StartTimeColumn,
		UsageColumn:      c.Parser.UsageColumn,
		CostColumn:       c.Parser.CostColumn,
		TimestampLayout:  c.Parser.TimestampLayout,
	}
}

// GetTopicPrefix returns the MQTT topic prefix with a default of "gridinsight"
func (c *Config) GetTopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "gridinsight"
	}
	return c.MQTT.TopicPrefix
}

// GetClientID returns the MQTT client ID with a default of "gridinsight"
func (c *Config) GetClientID() string {
	if c.MQTT.ClientID == "" {
		return "gridinsight"
	}
	return c.MQTT.ClientID
}
