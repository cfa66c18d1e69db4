package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-remind/internal/domain"
	"github.com/djlord-it/easy-remind/internal/metrics"
)

type WebhookConfig struct {
	URL    string
	Secret string
	// ProbeURL is fetched on permission request. Empty means a configured
	// URL is enough to grant.
	ProbeURL string
	Timeout  time.Duration
}

type WebhookPayload struct {
	DeliveryID string `json:"delivery_id"`
	EntityID   string `json:"entity_id"`
	Source     string `json:"source"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	DueAt      string `json:"due_at"`
	SentAt     string `json:"sent_at"`
}

// StatusError is returned when the receiver answers with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.Code)
}

// WebhookGateway posts notifications as signed JSON.
// Headers: X-EasyRemind-Delivery-ID, X-EasyRemind-Signature
type WebhookGateway struct {
	cfg     WebhookConfig
	client  *http.Client
	perm    permission
	clock   func() time.Time
	metrics AttemptRecorder // optional, nil = disabled
}

func NewWebhookGateway(cfg WebhookConfig) *WebhookGateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &WebhookGateway{
		cfg:    cfg,
		client: &http.Client{},
		clock:  time.Now,
	}
}

// WithMetrics attaches a metrics sink to the gateway.
func (g *WebhookGateway) WithMetrics(sink AttemptRecorder) *WebhookGateway {
	g.metrics = sink
	return g
}

func (g *WebhookGateway) Name() string { return "webhook" }

func (g *WebhookGateway) PermissionState() PermissionState {
	return g.perm.State()
}

func (g *WebhookGateway) RequestPermission(ctx context.Context) (PermissionState, error) {
	return g.perm.request(ctx, g.probe)
}

func (g *WebhookGateway) probe(ctx context.Context) error {
	if g.cfg.URL == "" {
		return fmt.Errorf("webhook url not configured")
	}
	if g.cfg.ProbeURL == "" {
		return nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodGet, g.cfg.ProbeURL, nil)
	if err != nil {
		return fmt.Errorf("create probe: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (g *WebhookGateway) Dispatch(ctx context.Context, n domain.Notification) error {
	if g.perm.State() != PermissionGranted {
		return ErrPermissionDenied
	}

	payload := WebhookPayload{
		DeliveryID: uuid.NewString(),
		EntityID:   n.EntityID,
		Source:     string(n.Source),
		Title:      n.Title,
		Body:       n.Body,
		DueAt:      n.DueAt.UTC().Format(time.RFC3339),
		SentAt:     g.clock().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, g.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-EasyRemind-Delivery-ID", payload.DeliveryID)
	req.Header.Set("X-EasyRemind-Signature", computeSignature(g.cfg.Secret, body))

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.recordAttempt(0, err, time.Since(start))
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	g.recordAttempt(resp.StatusCode, nil, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (g *WebhookGateway) recordAttempt(statusCode int, err error, d time.Duration) {
	if g.metrics != nil {
		g.metrics.GatewayAttemptCompleted(g.Name(), metrics.ClassifyStatus(statusCode, err), d)
	}
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature is for receivers to verify incoming notifications.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
