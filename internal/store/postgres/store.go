package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/djlord-it/easy-remind/internal/domain"
	"github.com/djlord-it/easy-remind/internal/registry"
)

// DefaultOpTimeout bounds each registry call.
const DefaultOpTimeout = 5 * time.Second

type queries struct {
	list, get, lock, insert, update, del string
}

// table implements registry.Registry for one entity kind. R is the row
// struct sqlx scans into.
type table[E any, R any] struct {
	db      *sqlx.DB
	timeout time.Duration
	q       queries
	idOf    func(E) string
	rowID   func(R) string
	toRow   func(E) R
	fromRow func(R) (E, error)
}

// AppointmentStore persists appointments.
type AppointmentStore struct {
	table[domain.Appointment, appointmentRow]
}

// EventStore persists calendar events.
type EventStore struct {
	table[domain.CalendarEvent, eventRow]
}

var (
	_ registry.Registry[domain.Appointment]   = (*AppointmentStore)(nil)
	_ registry.Registry[domain.CalendarEvent] = (*EventStore)(nil)
)

func NewAppointmentStore(db *sqlx.DB, timeout time.Duration) *AppointmentStore {
	return &AppointmentStore{table[domain.Appointment, appointmentRow]{
		db:      db,
		timeout: orDefault(timeout),
		q: queries{
			list:   queryListAppointments,
			get:    queryGetAppointment,
			lock:   queryLockAppointment,
			insert: queryInsertAppointment,
			update: queryUpdateAppointment,
			del:    queryDeleteAppointment,
		},
		idOf:    func(a domain.Appointment) string { return a.ID },
		rowID:   func(r appointmentRow) string { return r.ID },
		toRow:   appointmentToRow,
		fromRow: appointmentFromRow,
	}}
}

func NewEventStore(db *sqlx.DB, timeout time.Duration) *EventStore {
	return &EventStore{table[domain.CalendarEvent, eventRow]{
		db:      db,
		timeout: orDefault(timeout),
		q: queries{
			list:   queryListEvents,
			get:    queryGetEvent,
			lock:   queryLockEvent,
			insert: queryInsertEvent,
			update: queryUpdateEvent,
			del:    queryDeleteEvent,
		},
		idOf:    func(e domain.CalendarEvent) string { return e.ID },
		rowID:   func(r eventRow) string { return r.ID },
		toRow:   eventToRow,
		fromRow: eventFromRow,
	}}
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultOpTimeout
	}
	return d
}

func (t *table[E, R]) Snapshot(ctx context.Context) ([]E, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var rows []R
	if err := t.db.SelectContext(ctx, &rows, t.q.list); err != nil {
		return nil, err
	}

	return convertRows(rows, t.fromRow, t.rowID), nil
}

// convertRows converts scanned rows, skipping any that fail to convert so
// one bad row does not hide the rest of the table.
func convertRows[E, R any](rows []R, fromRow func(R) (E, error), rowID func(R) string) []E {
	out := make([]E, 0, len(rows))
	for _, r := range rows {
		e, err := fromRow(r)
		if err != nil {
			log.Warn().Str("component", "store").Str("entity_id", rowID(r)).Err(err).Msg("skipping malformed row")
			continue
		}
		out = append(out, e)
	}
	return out
}

func (t *table[E, R]) Get(ctx context.Context, id string) (E, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var zero E
	var row R
	if err := t.db.GetContext(ctx, &row, t.q.get, id); err != nil {
		return zero, notFound(err)
	}
	return t.fromRow(row)
}

func (t *table[E, R]) Create(ctx context.Context, e E) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	_, err := t.db.NamedExecContext(ctx, t.q.insert, t.toRow(e))
	if isDuplicateKeyError(err) {
		return registry.ErrDuplicate
	}
	return err
}

// Update locks the row for the duration of fn so concurrent edits serialize.
func (t *table[E, R]) Update(ctx context.Context, id string, fn func(e *E) error) (E, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var zero E
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return zero, err
	}
	defer func() { _ = tx.Rollback() }()

	var row R
	if err := tx.GetContext(ctx, &row, t.q.lock, id); err != nil {
		return zero, notFound(err)
	}
	e, err := t.fromRow(row)
	if err != nil {
		return zero, err
	}
	if err := fn(&e); err != nil {
		return zero, err
	}
	if t.idOf(e) != id {
		return zero, errors.New("entity id is immutable")
	}

	if _, err := tx.NamedExecContext(ctx, t.q.update, t.toRow(e)); err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

func (t *table[E, R]) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	res, err := t.db.ExecContext(ctx, t.q.del, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return registry.ErrNotFound
	}
	return err
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	errStr := err.Error()
	return strings.Contains(errStr, "23505") || strings.Contains(errStr, "unique constraint") || strings.Contains(errStr, "duplicate key")
}
