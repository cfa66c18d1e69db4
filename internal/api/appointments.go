package api

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/djlord-it/easy-remind/internal/domain"
)

// Appointment list filters.
const (
	FilterUpcoming = "upcoming"
	FilterPast     = "past"
	FilterAll      = "all"
)

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	filter := strings.ToLower(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = FilterUpcoming
	}
	if filter != FilterUpcoming && filter != FilterPast && filter != FilterAll {
		writeError(w, http.StatusBadRequest, "filter must be upcoming, past or all")
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	all, err := h.appointments.Snapshot(r.Context())
	if err != nil {
		writeRegistryError(w, err, "list", "appointments")
		return
	}

	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	now := h.now()

	matched := make([]domain.Appointment, 0, len(all))
	for _, a := range all {
		if q != "" && !strings.Contains(strings.ToLower(a.Title), q) &&
			!strings.Contains(strings.ToLower(a.ClientName), q) {
			continue
		}
		if !matchesFilter(a, filter, h.sortKey(a), now) {
			continue
		}
		matched = append(matched, a)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return h.sortKey(matched[i]).Before(h.sortKey(matched[j]))
	})

	writeJSON(w, http.StatusOK, ListAppointmentsResponse{Appointments: page(matched, limit, offset)})
}

// sortKey is the due instant, or the start of the day for appointments
// without a time.
func (h *Handler) sortKey(a domain.Appointment) time.Time {
	if due, ok := a.DueAt(h.loc); ok {
		return due
	}
	return time.Date(a.Date.Year, a.Date.Month, a.Date.Day, 0, 0, 0, 0, h.loc)
}

func matchesFilter(a domain.Appointment, filter string, due, now time.Time) bool {
	switch filter {
	case FilterUpcoming:
		return !due.Before(now) && a.Status != domain.AppointmentStatusCancelled
	case FilterPast:
		return due.Before(now) || a.Status == domain.AppointmentStatusCompleted
	default:
		return true
	}
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req AppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := buildAppointment(uuid.NewString(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.appointments.Create(r.Context(), a); err != nil {
		writeRegistryError(w, err, "create", "appointment")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := h.appointments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRegistryError(w, err, "get", "appointment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateAppointment replaces an appointment. A reminder already sent for it
// is not sent again, even if the time moves.
func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	next, err := buildAppointment(id, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.appointments.Update(r.Context(), id, func(a *domain.Appointment) error {
		*a = next
		return nil
	})
	if err != nil {
		writeRegistryError(w, err, "update", "appointment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.appointments.Delete(r.Context(), id); err != nil {
		writeRegistryError(w, err, "delete", "appointment")
		return
	}
	forget(h.appointmentWatcher, id)

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetAppointmentReminder(w http.ResponseWriter, r *http.Request) {
	var req ReminderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	a, err := h.appointments.Update(r.Context(), chi.URLParam(r, "id"), func(a *domain.Appointment) error {
		a.ReminderEnabled = *req.Enabled
		return nil
	})
	if err != nil {
		writeRegistryError(w, err, "update", "appointment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) SetAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status := domain.AppointmentStatus(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status \""+req.Status+"\"")
		return
	}

	a, err := h.appointments.Update(r.Context(), chi.URLParam(r, "id"), func(a *domain.Appointment) error {
		a.Status = status
		return nil
	})
	if err != nil {
		writeRegistryError(w, err, "update", "appointment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}
