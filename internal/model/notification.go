package model

import (
	"time"

	"github.com/google/uuid"
)

const NotificationEventTypeDue = "due"

// NotificationEvent is a materialized due-instant for a chore. The triple
// (ChoreID, EventType, DueAt) is unique and is the dedup key that makes
// materialization idempotent.
type NotificationEvent struct {
	ID        uuid.UUID `json:"id"`
	ChoreID   uuid.UUID `json:"chore_id"`
	EventType string    `json:"event_type"`
	DueAt     time.Time `json:"due_at"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryDelivered DeliveryStatus = "delivered"
)

// Channel names, currently supported by internal/channel.
const (
	ChannelTelegram = "telegram"
	ChannelWebpush  = "webpush"
)

// NotificationDelivery is one channel's attempt at sending an event. The
// pair (EventID, Channel) is unique: at most one delivery row per event per
// channel.
type NotificationDelivery struct {
	ID              uuid.UUID      `json:"id"`
	EventID         uuid.UUID      `json:"event_id"`
	Channel         string         `json:"channel"`
	Status          DeliveryStatus `json:"status"`
	AttemptCount    int            `json:"attempt_count"`
	LastError       *string        `json:"last_error,omitempty"`
	LastAttemptedAt *time.Time     `json:"last_attempted_at,omitempty"`
	DeliveredAt     *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
