// Package influxdb exports daily aggregates and forecasts to InfluxDB v2.
package influxdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/jgoulah/gridinsight/internal/config"
	"github.com/jgoulah/gridinsight/pkg/models"
)

const (
	measurementDaily    = "daily_usage"
	measurementForecast = "usage_forecast"
)

// Client represents an InfluxDB v2 client
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *slog.Logger
}

// NewClient initializes the InfluxDB v2 client and verifies connectivity
func NewClient(ctx context.Context, cfg config.InfluxDBConfig, logger *slog.Logger) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	return &Client{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger:   logger.With(slog.String("component", "influxdb")),
	}, nil
}

// DailyPoints builds one point per day from usage and cost totals of the
// same records. Both series must cover the same days in the same order.
func DailyPoints(usage, cost models.Series) ([]*write.Point, error) {
	if len(usage) != len(cost) {
		return nil, fmt.Errorf("usage has %d days but cost has %d", len(usage), len(cost))
	}

	points := make([]*write.Point, 0, len(usage))
	for i, u := range usage {
		if cost[i].Key != u.Key {
			return nil, fmt.Errorf("day %d: usage key %q does not match cost key %q", i, u.Key, cost[i].Key)
		}

		day, err := time.Parse("2006-01-02", u.Key)
		if err != nil {
			return nil, fmt.Errorf("parsing day %q: %w", u.Key, err)
		}

		c := cost[i].Value
		points = append(points, write.NewPoint(
			measurementDaily,
			map[string]string{"source": "gridinsight"},
			map[string]interface{}{
				"usage_kwh": u.Value,
				"cost":      c,
			},
			day,
		))
	}
	return points, nil
}

// ForecastPoints builds one point per smoothed forecast day
func ForecastPoints(forecast models.Series) ([]*write.Point, error) {
	points := make([]*write.Point, 0, len(forecast))
	for _, f := range forecast {
		day, err := time.Parse("2006-01-02", f.Key)
		if err != nil {
			return nil, fmt.Errorf("parsing forecast day %q: %w", f.Key, err)
		}

		points = append(points, write.NewPoint(
			measurementForecast,
			map[string]string{"source": "gridinsight", "method": "moving_average"},
			map[string]interface{}{"usage_kwh": f.Value},
			day,
		))
	}
	return points, nil
}

// WritePoints writes points and waits for the server to accept them
func (c *Client) WritePoints(ctx context.Context, points []*write.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := c.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("writing %d points: %w", len(points), err)
	}
	c.logger.Info("points written", slog.Int("count", len(points)))
	return nil
}

// Close closes the InfluxDB client
func (c *Client) Close() {
	c.client.Close()
}
