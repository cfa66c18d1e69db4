package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/djlord-it/easy-remind/internal/analytics"
	"github.com/djlord-it/easy-remind/internal/domain"
	"github.com/djlord-it/easy-remind/internal/notify"
	"github.com/djlord-it/easy-remind/internal/registry"
	"github.com/djlord-it/easy-remind/internal/tracker"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// PermissionGateway is the part of notify.Gateway the API exposes.
type PermissionGateway interface {
	Name() string
	PermissionState() notify.PermissionState
	RequestPermission(ctx context.Context) (notify.PermissionState, error)
}

// Watcher is a running reminder scheduler.
type Watcher interface {
	Name() string
	Interval() time.Duration
	Tracker() *tracker.NotifiedSet
}

// StatsReader serves fired-notification counts.
type StatsReader interface {
	Recent(ctx context.Context, source domain.Source, now time.Time, n int) ([]analytics.Bucket, error)
}

type Handler struct {
	appointments registry.Registry[domain.Appointment]
	events       registry.Registry[domain.CalendarEvent]
	gateway      PermissionGateway
	loc          *time.Location
	now          func() time.Time

	leadTime           time.Duration
	appointmentWatcher Watcher // optional
	eventWatcher       Watcher // optional
	stats              StatsReader
	db                 HealthChecker
}

func NewHandler(
	appointments registry.Registry[domain.Appointment],
	events registry.Registry[domain.CalendarEvent],
	gateway PermissionGateway,
	loc *time.Location,
) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		appointments: appointments,
		events:       events,
		gateway:      gateway,
		loc:          loc,
		now:          time.Now,
	}
}

// WithWatchers registers the schedulers whose notified sets are reported and
// cleaned up on delete.
func (h *Handler) WithWatchers(appointments, events Watcher) *Handler {
	h.appointmentWatcher = appointments
	h.eventWatcher = events
	return h
}

func (h *Handler) WithLeadTime(d time.Duration) *Handler {
	h.leadTime = d
	return h
}

// WithStats enables GET /notifications/stats.
func (h *Handler) WithStats(s StatsReader) *Handler {
	h.stats = s
	return h
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithClock overrides time.Now for list filtering and stats.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"
	if !verbose {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	resp.Components["gateway"] = h.gateway.Name() + ": " + h.gateway.PermissionState().String()

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components["database"] = "unhealthy: " + err.Error()
		} else {
			resp.Components["database"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, resp)
}

// forget drops an entity from a scheduler's notified set after delete.
func forget(w Watcher, id string) {
	if w != nil {
		w.Tracker().Forget(id)
	}
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// decodeJSON reads a size-limited JSON body. On failure it writes the error
// response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// writeRegistryError maps registry errors to HTTP statuses.
func writeRegistryError(w http.ResponseWriter, err error, op, kind string) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, kind+" not found")
	case errors.Is(err, registry.ErrDuplicate):
		writeError(w, http.StatusConflict, kind+" already exists")
	default:
		var verr *ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		log.Error().Str("component", "api").Str("op", op).Err(err).Msg("registry error")
		writeError(w, http.StatusInternalServerError, "failed to "+op+" "+kind)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Str("component", "api").Err(err).Msg("json encode error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if not specified.
// Returns an error if limit exceeds MaxLimit or if values are negative/invalid.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}

// page slices items per limit/offset.
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
