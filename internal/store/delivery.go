package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/model"
)

const deliveryCols = "id, event_id, channel, status, attempt_count, last_error, last_attempted_at, delivered_at, created_at, updated_at"

type DeliveryStore struct {
	db *sql.DB
}

func NewDeliveryStore(db *sql.DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

func scanDelivery(scanner interface {
	Scan(dest ...any) error
}) (*model.NotificationDelivery, error) {
	var d model.NotificationDelivery
	var id, eventID, status string
	var lastError, lastAttemptedAt, deliveredAt sql.NullString
	var createdAt, updatedAt string

	if err := scanner.Scan(&id, &eventID, &d.Channel, &status, &d.AttemptCount,
		&lastError, &lastAttemptedAt, &deliveredAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if d.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse delivery id: %w", err)
	}
	if d.EventID, err = uuid.Parse(eventID); err != nil {
		return nil, fmt.Errorf("parse event id: %w", err)
	}
	d.Status = model.DeliveryStatus(status)
	if lastError.Valid {
		d.LastError = &lastError.String
	}
	if lastAttemptedAt.Valid {
		t, err := parseTime(lastAttemptedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_attempted_at: %w", err)
		}
		d.LastAttemptedAt = &t
	}
	if deliveredAt.Valid {
		t, err := parseTime(deliveredAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse delivered_at: %w", err)
		}
		d.DeliveredAt = &t
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &d, nil
}

// Create seeds a pending delivery for an event+channel pair. Must be called
// in the same transaction as the owning event's insert so a crash between
// the two never leaves an event with no delivery rows.
func (s *DeliveryStore) Create(tx *sql.Tx, d *model.NotificationDelivery) error {
	_, err := tx.Exec(
		`INSERT INTO notification_deliveries (`+deliveryCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(event_id, channel) DO NOTHING`,
		d.ID.String(), d.EventID.String(), d.Channel, string(d.Status), d.AttemptCount,
		nil, nil, nil, formatTime(d.CreatedAt), formatTime(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert notification delivery: %w", err)
	}
	return nil
}

// Claim selects deliveries eligible for a dispatch attempt: pending or
// failed, under the attempt cap, ordered with NULL last_attempted_at first
// (SQLite sorts NULL before any value ascending) then by creation order.
// Backoff eligibility is checked by the caller (internal/dispatch), since it
// depends on attempt count in a way a plain SQL predicate can't express
// without per-row exponent arithmetic.
func (s *DeliveryStore) Claim(maxAttempts, limit int) ([]*model.NotificationDelivery, error) {
	rows, err := s.db.Query(`
		SELECT `+deliveryCols+`
		FROM notification_deliveries
		WHERE status IN ('pending', 'failed') AND attempt_count < ?
		ORDER BY last_attempted_at IS NOT NULL, last_attempted_at, created_at
		LIMIT ?`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("claim deliveries: %w", err)
	}
	defer rows.Close()

	var out []*model.NotificationDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkAttempting increments attempt_count and stamps last_attempted_at
// before the adapter is invoked, so a crash mid-send is visible on restart
// as an already-incremented attempt rather than a silent retry loop.
func (s *DeliveryStore) MarkAttempting(id uuid.UUID, now time.Time) error {
	_, err := s.db.Exec(
		`UPDATE notification_deliveries SET status = 'pending', attempt_count = attempt_count + 1,
		 last_attempted_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(now), formatTime(now), id.String(),
	)
	if err != nil {
		return fmt.Errorf("mark delivery attempting: %w", err)
	}
	return nil
}

func (s *DeliveryStore) MarkDelivered(id uuid.UUID, now time.Time) error {
	_, err := s.db.Exec(
		`UPDATE notification_deliveries SET status = 'delivered', delivered_at = ?, last_error = NULL, updated_at = ?
		 WHERE id = ?`,
		formatTime(now), formatTime(now), id.String(),
	)
	if err != nil {
		return fmt.Errorf("mark delivery delivered: %w", err)
	}
	return nil
}

// MarkFailed records a transient failure, leaving the delivery eligible for
// retry up to the dispatcher's attempt cap.
func (s *DeliveryStore) MarkFailed(id uuid.UUID, lastErr string, now time.Time) error {
	_, err := s.db.Exec(
		`UPDATE notification_deliveries SET status = 'failed', last_error = ?, updated_at = ? WHERE id = ?`,
		truncateError(lastErr), formatTime(now), id.String(),
	)
	if err != nil {
		return fmt.Errorf("mark delivery failed: %w", err)
	}
	return nil
}

// Park records a permanent failure and freezes attempt_count at maxAttempts
// so Claim never selects this delivery again.
func (s *DeliveryStore) Park(id uuid.UUID, lastErr string, maxAttempts int, now time.Time) error {
	_, err := s.db.Exec(
		`UPDATE notification_deliveries SET status = 'failed', attempt_count = ?, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		maxAttempts, truncateError(lastErr), formatTime(now), id.String(),
	)
	if err != nil {
		return fmt.Errorf("park delivery: %w", err)
	}
	return nil
}

const maxErrorLen = 500

func truncateError(s string) string {
	if len(s) <= maxErrorLen {
		return s
	}
	return s[:maxErrorLen]
}
