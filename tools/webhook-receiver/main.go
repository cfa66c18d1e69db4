// Command webhook-receiver is a local sink for GATEWAY=webhook. It verifies
// X-EasyRemind-Signature, keeps the last deliveries in memory and serves them
// on /stats.
package main

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/djlord-it/easy-remind/internal/notify"
)

const maxStored = 50

type delivery struct {
	ReceivedAt string                `json:"received_at"`
	DeliveryID string                `json:"delivery_id"`
	Verified   bool                  `json:"verified"`
	Payload    notify.WebhookPayload `json:"payload"`
}

type stats struct {
	Count      int64      `json:"count"`
	Rejected   int64      `json:"rejected"`
	Deliveries []delivery `json:"last_deliveries"`
	Since      string     `json:"since"`
}

type receiver struct {
	secret string
	now    func() time.Time

	mu         sync.Mutex
	count      int64
	rejected   int64
	deliveries []delivery
	since      time.Time
}

func newReceiver(secret string) *receiver {
	return &receiver{secret: secret, now: time.Now, since: time.Now().UTC()}
}

func (rc *receiver) routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/hook", rc.hook)
	r.Get("/stats", rc.stats)
	r.Post("/reset", rc.reset)
	// Used as WEBHOOK_PROBE_URL.
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}

func (rc *receiver) hook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	// Without a secret every delivery is accepted unverified.
	verified := false
	if rc.secret != "" {
		if !notify.VerifySignature(rc.secret, body, r.Header.Get("X-EasyRemind-Signature")) {
			rc.mu.Lock()
			rc.rejected++
			rc.mu.Unlock()
			log.Warn().Str("delivery_id", r.Header.Get("X-EasyRemind-Delivery-ID")).Msg("signature mismatch")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		verified = true
	}

	var payload notify.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	d := delivery{
		ReceivedAt: rc.now().UTC().Format(time.RFC3339Nano),
		DeliveryID: r.Header.Get("X-EasyRemind-Delivery-ID"),
		Verified:   verified,
		Payload:    payload,
	}

	rc.mu.Lock()
	rc.count++
	rc.deliveries = append(rc.deliveries, d)
	if len(rc.deliveries) > maxStored {
		rc.deliveries = rc.deliveries[len(rc.deliveries)-maxStored:]
	}
	current := rc.count
	rc.mu.Unlock()

	log.Info().
		Int64("n", current).
		Str("source", payload.Source).
		Str("entity_id", payload.EntityID).
		Str("title", payload.Title).
		Bool("verified", verified).
		Msg("reminder received")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{"received": current})
}

func (rc *receiver) stats(w http.ResponseWriter, _ *http.Request) {
	rc.mu.Lock()
	s := stats{
		Count:      rc.count,
		Rejected:   rc.rejected,
		Deliveries: append([]delivery{}, rc.deliveries...),
		Since:      rc.since.Format(time.RFC3339),
	}
	rc.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s)
}

func (rc *receiver) reset(w http.ResponseWriter, _ *http.Request) {
	rc.mu.Lock()
	rc.count = 0
	rc.rejected = 0
	rc.deliveries = nil
	rc.since = rc.now().UTC()
	rc.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func main() {
	addr := ":8081"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}
	rc := newReceiver(os.Getenv("WEBHOOK_SECRET"))

	log.Info().Str("addr", addr).Bool("verify", rc.secret != "").Msg("webhook-receiver listening")
	if err := http.ListenAndServe(addr, rc.routes()); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
