package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/jgoulah/assetwatch/internal/config"
	"github.com/jgoulah/assetwatch/internal/database"
	"github.com/jgoulah/assetwatch/pkg/models"
)

const publishTimeout = 10 * time.Second

// mqttClient is the part of mqtt.Client the publisher uses
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher sends classified rows to MQTT and a Home Assistant sensor
type Publisher struct {
	client      mqttClient
	topicPrefix string
	haConfig    config.HAConfig
	httpClient  *http.Client
}

// New creates a new publisher (supports both MQTT and HA HTTP API)
func New(mqttCfg config.MQTTConfig, haCfg config.HAConfig) (*Publisher, error) {
	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, errors.New("Home Assistant URL is required when enabled")
		}
		if haCfg.Token == "" {
			return nil, errors.New("Home Assistant token is required when enabled")
		}
		if haCfg.EntityID == "" {
			return nil, errors.New("Home Assistant entity_id is required when enabled")
		}
	}

	p := &Publisher{
		haConfig:   haCfg,
		httpClient: &http.Client{Timeout: publishTimeout},
	}

	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, errors.New("MQTT broker address is required when enabled")
		}

		p.topicPrefix = mqttCfg.TopicPrefix
		if p.topicPrefix == "" {
			p.topicPrefix = "assetwatch"
		}

		broker := mqttCfg.Broker
		if !strings.Contains(broker, "://") {
			broker = "tcp://" + broker
		}

		opts := mqtt.NewClientOptions()
		opts.AddBroker(broker)
		opts.SetClientID("assetwatch-" + uuid.NewString()[:8])
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectTimeout(publishTimeout)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		client, err := connect(mqtt.NewClient(opts), publishTimeout)
		if err != nil {
			return nil, err
		}
		p.client = client
	}

	return p, nil
}

// connectingClient is the part of mqtt.Client needed to establish a session
type connectingClient interface {
	mqttClient
	Connect() mqtt.Token
}

func connect(client connectingClient, timeout time.Duration) (mqttClient, error) {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connecting to MQTT broker: timed out after %s", timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	return client, nil
}

// MQTTEnabled reports whether rows are published to a broker
func (p *Publisher) MQTTEnabled() bool {
	return p.client != nil
}

// HomeAssistantEnabled reports whether the summary sensor is updated
func (p *Publisher) HomeAssistantEnabled() bool {
	return p.haConfig.Enabled
}

// RowMessage is the retained MQTT payload of one status row
type RowMessage struct {
	EvaluationID string `json:"evaluation_id"`
	EvaluatedAt  string `json:"evaluated_at"`
	models.AssetStatusRow
}

// Topic returns the retained topic of a row: <prefix>/<asset>/<product>/status.
// Rows without a product use "asset" as the product segment.
func Topic(prefix string, row models.AssetStatusRow) string {
	product := row.ProductID
	if product == "" {
		product = "asset"
	}
	return fmt.Sprintf("%s/%s/%s/status", prefix, topicSegment(row.AssetCode), topicSegment(product))
}

// topicSegment strips MQTT wildcards and separators from an identifier
func topicSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', ' ':
			return '_'
		}
		return r
	}, s)
}

// PublishRow sends one row as a retained message
func (p *Publisher) PublishRow(row models.AssetStatusRow, evaluationID string, evaluatedAt time.Time) error {
	if p.client == nil {
		return errors.New("MQTT publishing is not enabled in config")
	}

	payload, err := json.Marshal(RowMessage{
		EvaluationID:   evaluationID,
		EvaluatedAt:    evaluatedAt.Format(time.RFC3339),
		AssetStatusRow: row,
	})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	topic := Topic(p.topicPrefix, row)
	token := p.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// HAState is the body of a Home Assistant state update
type HAState struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// SummaryState builds the sensor state for a set of rows: the number of rows
// needing service, with the per-status counts as attributes
func SummaryState(rows []models.AssetStatusRow, evaluationID string, evaluatedAt time.Time) HAState {
	counts := make(map[string]int, len(models.StatusOrder))
	for _, s := range models.StatusOrder {
		counts[statusKey(s)] = 0
	}
	for _, row := range rows {
		counts[statusKey(row.Status)]++
	}

	attrs := map[string]any{
		"evaluation_id":       evaluationID,
		"evaluated_at":        evaluatedAt.Format(time.RFC3339),
		"rows":                len(rows),
		"unit_of_measurement": "rows",
		"friendly_name":       "Assets needing service",
	}
	for k, v := range counts {
		attrs[k] = v
	}
	return HAState{State: fmt.Sprint(counts[statusKey(models.StatusNeededService)]), Attributes: attrs}
}

func statusKey(s models.Status) string {
	if s == models.StatusUnknown {
		return "unknown"
	}
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "_")
}

// PublishSummary updates the Home Assistant sensor via HTTP API
func (p *Publisher) PublishSummary(ctx context.Context, state HAState) error {
	if !p.haConfig.Enabled {
		return errors.New("Home Assistant publishing is not enabled in config")
	}

	apiURL := fmt.Sprintf("%s/api/states/%s", strings.TrimRight(p.haConfig.URL, "/"), p.haConfig.EntityID)

	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
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

	// 201 on first creation of the entity, 200 afterwards
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Changed returns the rows whose status differs from the last published one
func Changed(rows []models.AssetStatusRow, published map[string]models.Status) []models.AssetStatusRow {
	var out []models.AssetStatusRow
	for _, row := range rows {
		last, ok := published[database.PublicationKey(row.AssetCode, row.ProductID)]
		if ok && last == row.Status {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
