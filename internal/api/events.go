package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/djlord-it/easy-remind/internal/domain"
)

// ListEvents returns events in registry order, or those on ?date= sorted by
// time with all-day events first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var (
		day    domain.Date
		hasDay bool
	)
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := domain.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: want YYYY-MM-DD")
			return
		}
		day, hasDay = d, true
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	all, err := h.events.Snapshot(r.Context())
	if err != nil {
		writeRegistryError(w, err, "list", "events")
		return
	}

	if hasDay {
		onDay := make([]domain.CalendarEvent, 0, len(all))
		for _, e := range all {
			if e.Date == day {
				onDay = append(onDay, e)
			}
		}
		sort.SliceStable(onDay, func(i, j int) bool {
			a, b := onDay[i].Time, onDay[j].Time
			switch {
			case a == nil:
				return b != nil
			case b == nil:
				return false
			default:
				return a.Hour*60+a.Minute < b.Hour*60+b.Minute
			}
		})
		all = onDay
	}

	writeJSON(w, http.StatusOK, ListEventsResponse{Events: page(all, limit, offset)})
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := buildEvent(uuid.NewString(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.events.Create(r.Context(), e); err != nil {
		writeRegistryError(w, err, "create", "event")
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRegistryError(w, err, "get", "event")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req EventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	next, err := buildEvent(id, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := h.events.Update(r.Context(), id, func(e *domain.CalendarEvent) error {
		*e = next
		return nil
	})
	if err != nil {
		writeRegistryError(w, err, "update", "event")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.events.Delete(r.Context(), id); err != nil {
		writeRegistryError(w, err, "delete", "event")
		return
	}
	forget(h.eventWatcher, id)

	w.WriteHeader(http.StatusNoContent)
}
