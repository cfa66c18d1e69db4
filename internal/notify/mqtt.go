package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/djlord-it/easy-remind/internal/domain"
	"github.com/djlord-it/easy-remind/internal/metrics"
)

var errMQTTTimeout = errors.New("mqtt: operation timed out")

type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Topic     string
	Username  string
	Password  string
	QoS       byte
	Timeout   time.Duration
}

// MQTTGateway publishes notifications to "<topic>/<source>". Permission is
// granted once the broker accepts the connection.
type MQTTGateway struct {
	cfg     MQTTConfig
	client  mqtt.Client
	perm    permission
	metrics AttemptRecorder // optional, nil = disabled
}

func NewMQTTGateway(cfg MQTTConfig) *MQTTGateway {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("component", "notify").Str("broker", cfg.BrokerURL).Msg("mqtt connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Str("component", "notify").Err(err).Msg("mqtt connection lost")
	}

	return newMQTTGateway(cfg, mqtt.NewClient(opts))
}

func newMQTTGateway(cfg MQTTConfig, client mqtt.Client) *MQTTGateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MQTTGateway{cfg: cfg, client: client}
}

func (g *MQTTGateway) Name() string { return "mqtt" }

func (g *MQTTGateway) PermissionState() PermissionState {
	return g.perm.State()
}

func (g *MQTTGateway) RequestPermission(ctx context.Context) (PermissionState, error) {
	return g.perm.request(ctx, g.connect)
}

func (g *MQTTGateway) connect(ctx context.Context) error {
	if g.client.IsConnected() {
		return nil
	}
	if err := g.await(ctx, g.client.Connect()); err != nil {
		return fmt.Errorf("connect %s: %w", g.cfg.BrokerURL, err)
	}
	return nil
}

type mqttMessage struct {
	EntityID string `json:"entity_id"`
	Source   string `json:"source"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	DueAt    string `json:"due_at"`
}

func (g *MQTTGateway) Dispatch(ctx context.Context, n domain.Notification) error {
	if g.perm.State() != PermissionGranted {
		return ErrPermissionDenied
	}

	payload, err := json.Marshal(mqttMessage{
		EntityID: n.EntityID,
		Source:   string(n.Source),
		Title:    n.Title,
		Body:     n.Body,
		DueAt:    n.DueAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	topic := g.cfg.Topic + "/" + string(n.Source)
	start := time.Now()
	err = g.await(ctx, g.client.Publish(topic, g.cfg.QoS, false, payload))
	if g.metrics != nil {
		class := metrics.StatusClass2xx
		if err != nil {
			class = metrics.ClassifyStatus(0, err)
		}
		g.metrics.GatewayAttemptCompleted(g.Name(), class, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// WithMetrics attaches a metrics sink to the gateway.
func (g *MQTTGateway) WithMetrics(sink AttemptRecorder) *MQTTGateway {
	g.metrics = sink
	return g
}

func (g *MQTTGateway) await(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(g.cfg.Timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errMQTTTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *MQTTGateway) Close() {
	if g.client.IsConnected() {
		g.client.Disconnect(250)
	}
}
