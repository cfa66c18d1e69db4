package postgres

const appointmentColumns = `
    id, title, client_name, contact, due_date, due_time, duration_minutes,
    type, status, notes, reminder_enabled
`

const queryListAppointments = `
SELECT` + appointmentColumns + `
FROM appointments
WHERE deleted_at IS NULL
ORDER BY seq
`

const queryGetAppointment = `
SELECT` + appointmentColumns + `
FROM appointments
WHERE id = $1 AND deleted_at IS NULL
`

const queryLockAppointment = queryGetAppointment + `FOR UPDATE`

const queryInsertAppointment = `
INSERT INTO appointments (
    id, title, client_name, contact, due_date, due_time, duration_minutes,
    type, status, notes, reminder_enabled
) VALUES (
    :id, :title, :client_name, :contact, :due_date, :due_time, :duration_minutes,
    :type, :status, :notes, :reminder_enabled
)
`

const queryUpdateAppointment = `
UPDATE appointments SET
    title = :title, client_name = :client_name, contact = :contact,
    due_date = :due_date, due_time = :due_time, duration_minutes = :duration_minutes,
    type = :type, status = :status, notes = :notes, reminder_enabled = :reminder_enabled
WHERE id = :id AND deleted_at IS NULL
`

const queryDeleteAppointment = `
UPDATE appointments SET deleted_at = now()
WHERE id = $1 AND deleted_at IS NULL
`

const eventColumns = `
    id, title, event_date, type, event_time, description, attendees, is_completed
`

const queryListEvents = `
SELECT` + eventColumns + `
FROM calendar_events
WHERE deleted_at IS NULL
ORDER BY seq
`

const queryGetEvent = `
SELECT` + eventColumns + `
FROM calendar_events
WHERE id = $1 AND deleted_at IS NULL
`

const queryLockEvent = queryGetEvent + `FOR UPDATE`

const queryInsertEvent = `
INSERT INTO calendar_events (
    id, title, event_date, type, event_time, description, attendees, is_completed
) VALUES (
    :id, :title, :event_date, :type, :event_time, :description, :attendees, :is_completed
)
`

const queryUpdateEvent = `
UPDATE calendar_events SET
    title = :title, event_date = :event_date, type = :type, event_time = :event_time,
    description = :description, attendees = :attendees, is_completed = :is_completed
WHERE id = :id AND deleted_at IS NULL
`

const queryDeleteEvent = `
UPDATE calendar_events SET deleted_at = now()
WHERE id = $1 AND deleted_at IS NULL
`
