package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/channel"
	"github.com/dukerupert/nag/internal/database"
	"github.com/dukerupert/nag/internal/model"
	"github.com/dukerupert/nag/internal/store"
)

type sentMessage struct {
	Recipient string
	Title     string
	Body      string
	Hint      channel.ActionHint
}

// fakeAdapter returns scripted errors per Send call (nil means success) and
// records everything it was asked to deliver.
type fakeAdapter struct {
	name string
	errs []error
	sent []sentMessage
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Send(ctx context.Context, recipient, title, body string, hint channel.ActionHint) error {
	f.sent = append(f.sent, sentMessage{Recipient: recipient, Title: title, Body: body, Hint: hint})
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeAdapter) VerifyCallback(headers map[string]string, body []byte) (channel.ActionHint, error) {
	return channel.ActionHint{}, errors.New("not implemented")
}

type fixture struct {
	db       *sql.DB
	chores   *store.ChoreStore
	events   *store.EventStore
	delivery *store.DeliveryStore
	adapter  *fakeAdapter
	disp     *Dispatcher
}

func setupDispatcher(t *testing.T, cfg Config) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:       db,
		chores:   store.NewChoreStore(db),
		events:   store.NewEventStore(db),
		delivery: store.NewDeliveryStore(db),
		adapter:  &fakeAdapter{name: model.ChannelTelegram},
	}
	if cfg.BackoffBase == 0 {
		// Collapse backoff so repeated ticks in a test are always eligible.
		cfg.BackoffBase = time.Nanosecond
	}
	if cfg.DefaultRecip == nil {
		cfg.DefaultRecip = map[string]string{model.ChannelTelegram: "chat-42"}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.disp = New(f.events, f.delivery, f.chores,
		map[string]channel.Adapter{f.adapter.name: f.adapter}, cfg, logger)
	return f
}

// seed creates a chore, a due event and one pending telegram delivery.
func (f *fixture) seed(t *testing.T) (*model.NotificationEvent, uuid.UUID) {
	t.Helper()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := &model.Chore{
		ID:        uuid.New(),
		Name:      "Clean litter box",
		Schedule:  model.Schedule{Kind: model.ScheduleInterval, IntervalDays: 1},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.chores.Create(c); err != nil {
		t.Fatalf("create chore: %v", err)
	}

	tx, err := f.events.BeginTx()
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	event := &model.NotificationEvent{
		ID:        uuid.New(),
		ChoreID:   c.ID,
		EventType: model.NotificationEventTypeDue,
		DueAt:     now,
		Title:     c.Name,
		Body:      "Due now",
		CreatedAt: now,
	}
	if _, err := f.events.InsertIfAbsent(tx, event); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	d := &model.NotificationDelivery{
		ID:        uuid.New(),
		EventID:   event.ID,
		Channel:   model.ChannelTelegram,
		Status:    model.DeliveryPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.delivery.Create(tx, d); err != nil {
		t.Fatalf("create delivery: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return event, d.ID
}

func (f *fixture) deliveryRow(t *testing.T, id uuid.UUID) (status string, attempts int, lastError sql.NullString) {
	t.Helper()
	if err := f.db.QueryRow(
		"SELECT status, attempt_count, last_error FROM notification_deliveries WHERE id = ?", id.String(),
	).Scan(&status, &attempts, &lastError); err != nil {
		t.Fatalf("read delivery row: %v", err)
	}
	return
}

func TestDispatchSuccess(t *testing.T) {
	f := setupDispatcher(t, Config{})
	event, id := f.seed(t)

	f.disp.tick(context.Background())

	if len(f.adapter.sent) != 1 {
		t.Fatalf("%d sends, want 1", len(f.adapter.sent))
	}
	msg := f.adapter.sent[0]
	if msg.Recipient != "chat-42" {
		t.Errorf("recipient = %q, want default recipient", msg.Recipient)
	}
	if msg.Title != "Clean litter box" || msg.Body != "Due now" {
		t.Errorf("message = %q / %q, want event title and body", msg.Title, msg.Body)
	}
	if msg.Hint.EventID != event.ID || msg.Hint.ChoreID != event.ChoreID {
		t.Errorf("action hint = %+v, want event/chore ids", msg.Hint)
	}

	status, attempts, _ := f.deliveryRow(t, id)
	if status != "delivered" {
		t.Errorf("status = %q, want delivered", status)
	}
	if attempts != 1 {
		t.Errorf("attempt_count = %d, want 1", attempts)
	}

	// A delivered row is terminal: further ticks send nothing.
	f.disp.tick(context.Background())
	if len(f.adapter.sent) != 1 {
		t.Errorf("delivered row re-sent: %d sends", len(f.adapter.sent))
	}
}

func TestDispatchTransientThenPark(t *testing.T) {
	f := setupDispatcher(t, Config{MaxAttempts: 5})
	_, id := f.seed(t)

	// Transient failures on attempts 1-4, a permanent rejection on 5.
	f.adapter.errs = []error{
		errors.New("connect timeout"),
		errors.New("connect timeout"),
		errors.New("connect timeout"),
		errors.New("connect timeout"),
		fmt.Errorf("recipient invalid: %w", channel.ErrPermanent),
	}

	for i := 0; i < 7; i++ {
		f.disp.tick(context.Background())
	}

	if len(f.adapter.sent) != 5 {
		t.Fatalf("%d sends, want exactly max_attempts (5)", len(f.adapter.sent))
	}
	status, attempts, lastError := f.deliveryRow(t, id)
	if status != "failed" {
		t.Errorf("status = %q, want failed", status)
	}
	if attempts != 5 {
		t.Errorf("attempt_count = %d, want 5", attempts)
	}
	if !lastError.Valid || lastError.String == "" {
		t.Error("last_error empty on parked delivery")
	}
}

func TestDispatchTransientRetriesUntilSuccess(t *testing.T) {
	f := setupDispatcher(t, Config{MaxAttempts: 5})
	_, id := f.seed(t)

	f.adapter.errs = []error{errors.New("503 from bot api"), nil}

	f.disp.tick(context.Background())
	status, attempts, lastError := f.deliveryRow(t, id)
	if status != "failed" || attempts != 1 {
		t.Fatalf("after transient failure: status=%q attempts=%d, want failed/1", status, attempts)
	}
	if !lastError.Valid {
		t.Error("last_error not recorded on transient failure")
	}

	f.disp.tick(context.Background())
	status, attempts, lastError = f.deliveryRow(t, id)
	if status != "delivered" || attempts != 2 {
		t.Errorf("after retry: status=%q attempts=%d, want delivered/2", status, attempts)
	}
	if lastError.Valid {
		t.Errorf("last_error = %q after success, want cleared", lastError.String)
	}
}

func TestDispatchPermanentParksImmediately(t *testing.T) {
	f := setupDispatcher(t, Config{MaxAttempts: 5})
	_, id := f.seed(t)

	f.adapter.errs = []error{fmt.Errorf("bot token rejected: %w", channel.ErrPermanent)}

	f.disp.tick(context.Background())

	status, attempts, _ := f.deliveryRow(t, id)
	if status != "failed" {
		t.Errorf("status = %q, want failed", status)
	}
	if attempts != 5 {
		t.Errorf("attempt_count = %d, want parked at max_attempts", attempts)
	}

	f.disp.tick(context.Background())
	if len(f.adapter.sent) != 1 {
		t.Errorf("parked delivery re-sent: %d sends", len(f.adapter.sent))
	}
}

func TestDispatchBackoffDefersRetry(t *testing.T) {
	// Real backoff base: after one failure the delivery is claimed but not
	// eligible until 2*base elapses, so an immediate second tick is a no-op.
	f := setupDispatcher(t, Config{MaxAttempts: 5, BackoffBase: time.Hour, BackoffCap: 2 * time.Hour})
	f.seed(t)

	f.adapter.errs = []error{errors.New("connect timeout")}

	f.disp.tick(context.Background())
	f.disp.tick(context.Background())

	if len(f.adapter.sent) != 1 {
		t.Errorf("%d sends, want 1: retry must wait out the backoff", len(f.adapter.sent))
	}
}

func TestDispatchSkipsCascadedDelivery(t *testing.T) {
	f := setupDispatcher(t, Config{MaxAttempts: 5})
	event, id := f.seed(t)

	// Deleting the parent event cascades the delivery away; the next tick
	// must find nothing to send.
	if _, err := f.db.Exec("DELETE FROM notification_events WHERE id = ?", event.ID.String()); err != nil {
		t.Fatalf("delete event: %v", err)
	}

	f.disp.tick(context.Background())
	if len(f.adapter.sent) != 0 {
		t.Errorf("sent %d messages for a cascaded-away delivery", len(f.adapter.sent))
	}

	var n int
	if err := f.db.QueryRow("SELECT COUNT(*) FROM notification_deliveries WHERE id = ?", id.String()).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("delivery survived its event's deletion")
	}
}
