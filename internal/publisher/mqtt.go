package publisher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jgoulah/gridinsight/internal/config"
	"github.com/jgoulah/gridinsight/pkg/models"
)

// messageClient is the part of mqtt.Client the publisher uses
type messageClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher handles publishing analytics to MQTT and Home Assistant
type Publisher struct {
	client      messageClient
	topicPrefix string
	haConfig    config.HAConfig
	httpClient  *http.Client
}

// New creates a new publisher (supports both MQTT and HA HTTP API)
func New(cfg *config.Config) (*Publisher, error) {
	haCfg := cfg.HomeAssistant
	mqttCfg := cfg.MQTT

	// Validate HA config if enabled
	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if haCfg.Token == "" {
			return nil, fmt.Errorf("Home Assistant token is required when enabled")
		}
		if haCfg.EntityID == "" {
			return nil, fmt.Errorf("Home Assistant entity_id is required when enabled")
		}
	}

	var client messageClient
	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, fmt.Errorf("MQTT broker address is required when enabled")
		}

		// Configure MQTT client options
		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
		opts.SetClientID(cfg.GetClientID())
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectTimeout(10 * time.Second)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		// Create and connect client
		c := mqtt.NewClient(opts)
		if token := c.Connect(); token.Wait() && token.Error() != nil {
			return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
		}
		client = c
	}

	return newPublisher(client, cfg.GetTopicPrefix(), haCfg), nil
}

func newPublisher(client messageClient, topicPrefix string, haCfg config.HAConfig) *Publisher {
	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		haConfig:    haCfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Summary is the set of analytics published after an ingestion
type Summary struct {
	Ingestion models.IngestSummary
	PeakHour  models.PeakHour
	WeekSplit models.WeekSplit
	Forecast  models.Series
}

// Enabled reports whether any destination is configured
func (p *Publisher) Enabled() bool {
	return p.client != nil || p.haConfig.Enabled
}

// Publish sends the summary to every enabled destination
func (p *Publisher) Publish(s Summary) error {
	if !p.Enabled() {
		return fmt.Errorf("neither MQTT nor Home Assistant publishing is enabled in config")
	}

	if p.client != nil {
		if err := p.publishMQTT(s); err != nil {
			return err
		}
	}

	if p.haConfig.Enabled && len(s.Forecast) > 0 {
		if err := p.publishHA(s.Forecast[len(s.Forecast)-1]); err != nil {
			return err
		}
	}

	return nil
}

// Topic returns the full topic for a summary field
func (p *Publisher) Topic(name string) string {
	return p.topicPrefix + "/" + name
}

func (p *Publisher) publishMQTT(s Summary) error {
	messages := []struct {
		topic   string
		payload any
	}{
		{p.Topic("ingestion"), s.Ingestion},
		{p.Topic("peak_hour"), s.PeakHour},
		{p.Topic("weekday_vs_weekend"), s.WeekSplit},
		{p.Topic("forecast"), s.Forecast},
	}

	for _, m := range messages {
		body, err := json.Marshal(m.payload)
		if err != nil {
			return fmt.Errorf("encoding %s payload: %w", m.topic, err)
		}

		token := p.client.Publish(m.topic, 1, true, body)
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("publishing to %s: timed out", m.topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing to %s: %w", m.topic, err)
		}
	}

	return nil
}

// HAPayload matches the Home Assistant backfill service call data
type HAPayload struct {
	EntityID    string `json:"entity_id"`
	State       string `json:"state"`
	LastChanged string `json:"last_changed"`
	LastUpdated string `json:"last_updated"`
}

// publishHA sends a forecast point to Home Assistant via the AppDaemon API
func (p *Publisher) publishHA(point models.Point) error {
	// Build the full API URL (AppDaemon API endpoint)
	apiURL := fmt.Sprintf("%s/api/appdaemon/backfill_state", p.haConfig.URL)

	day, err := time.Parse("2006-01-02", point.Key)
	if err != nil {
		return fmt.Errorf("parsing forecast day %q: %w", point.Key, err)
	}
	timestamp := day.Format(time.RFC3339)

	payload := HAPayload{
		EntityID:    p.haConfig.EntityID,
		State:       fmt.Sprintf("%.2f", point.Value),
		LastChanged: timestamp,
		LastUpdated: timestamp,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequest("POST", apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read error response body for debugging
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
