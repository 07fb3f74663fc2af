package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/model"
)

const eventCols = "id, chore_id, event_type, due_at, title, body, created_at"

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func scanEvent(scanner interface {
	Scan(dest ...any) error
}) (*model.NotificationEvent, error) {
	var e model.NotificationEvent
	var id, choreID string
	var dueAt, createdAt string

	if err := scanner.Scan(&id, &choreID, &e.EventType, &dueAt, &e.Title, &e.Body, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse event id: %w", err)
	}
	if e.ChoreID, err = uuid.Parse(choreID); err != nil {
		return nil, fmt.Errorf("parse chore id: %w", err)
	}
	if e.DueAt, err = parseTime(dueAt); err != nil {
		return nil, fmt.Errorf("parse due_at: %w", err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &e, nil
}

// InsertIfAbsent inserts the event unless one already exists with the same
// (chore_id, event_type, due_at) key, in which case it is a no-op. The bool
// return reports whether a new row was actually inserted — the caller (the
// materializer) uses this to decide whether to seed deliveries.
//
// Call this within tx so the event insert and delivery inserts commit or
// roll back together (see DeliveryStore.Create).
func (s *EventStore) InsertIfAbsent(tx *sql.Tx, e *model.NotificationEvent) (bool, error) {
	res, err := tx.Exec(
		`INSERT INTO notification_events (`+eventCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chore_id, event_type, due_at) DO NOTHING`,
		e.ID.String(), e.ChoreID.String(), e.EventType, formatTime(e.DueAt), e.Title, e.Body, formatTime(e.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert notification event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("notification event rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *EventStore) Get(id uuid.UUID) (*model.NotificationEvent, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM notification_events WHERE id = ?`, id.String())
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification event: %w", err)
	}
	return e, nil
}

func (s *EventStore) BeginTx() (*sql.Tx, error) {
	return s.db.Begin()
}
