package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/djlord-it/easy-remind/internal/domain"
)

const (
	defaultStatsBuckets = 60
	maxStatsBuckets     = 1440
)

func (h *Handler) NotificationStatus(w http.ResponseWriter, r *http.Request) {
	resp := NotificationStatusResponse{
		Gateway:         h.gateway.Name(),
		Permission:      h.gateway.PermissionState().String(),
		LeadTimeMinutes: int(h.leadTime / time.Minute),
		Schedulers:      []WatcherStatus{},
	}
	for _, wt := range []Watcher{h.appointmentWatcher, h.eventWatcher} {
		if wt == nil {
			continue
		}
		resp.Schedulers = append(resp.Schedulers, WatcherStatus{
			Name:            wt.Name(),
			IntervalSeconds: int(wt.Interval() / time.Second),
			Notified:        wt.Tracker().Len(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// RequestPermission asks the gateway for permission on the user's behalf.
// Unlike the schedulers' one-time automatic request, this may re-ask after a
// denial.
func (h *Handler) RequestPermission(w http.ResponseWriter, r *http.Request) {
	state, err := h.gateway.RequestPermission(r.Context())
	resp := PermissionResponse{Permission: state.String()}
	if err != nil {
		log.Warn().Str("component", "api").Str("gateway", h.gateway.Name()).Err(err).Msg("permission request failed")
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) NotificationStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusNotFound, "analytics not enabled")
		return
	}

	source := domain.Source(r.URL.Query().Get("source"))
	if source == "" {
		source = domain.SourceAppointments
	}
	if source != domain.SourceAppointments && source != domain.SourceCalendar {
		writeError(w, http.StatusBadRequest, "source must be appointments or calendar")
		return
	}

	n := defaultStatsBuckets
	if s := r.URL.Query().Get("buckets"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > maxStatsBuckets {
			writeError(w, http.StatusBadRequest, "buckets must be between 1 and "+strconv.Itoa(maxStatsBuckets))
			return
		}
		n = v
	}

	buckets, err := h.stats.Recent(r.Context(), source, h.now(), n)
	if err != nil {
		log.Error().Str("component", "api").Err(err).Msg("read stats")
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}

	resp := StatsResponse{Source: string(source), Buckets: make([]StatsBucket, len(buckets))}
	for i, b := range buckets {
		resp.Buckets[i] = StatsBucket{Start: formatTime(b.Start), Count: b.Count}
	}
	writeJSON(w, http.StatusOK, resp)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
