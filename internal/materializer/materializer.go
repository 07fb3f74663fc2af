// Package materializer implements the periodic task that turns due chores
// into persisted notification events and per-channel deliveries, exactly
// once per due instant.
package materializer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/choredue"
	"github.com/dukerupert/nag/internal/model"
	"github.com/dukerupert/nag/internal/schedule"
	"github.com/dukerupert/nag/internal/store"
)

const DefaultPollInterval = 60 * time.Second

// Materializer runs one tick per PollInterval: mutex-guarded start/stop
// over a ticker, with a done channel signaling the loop has exited.
type Materializer struct {
	mu       sync.Mutex
	chores   *store.ChoreStore
	compl    *store.CompletionStore
	events   *store.EventStore
	delivery *store.DeliveryStore
	channels []string

	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	logger   *slog.Logger
}

func New(chores *store.ChoreStore, compl *store.CompletionStore, events *store.EventStore, delivery *store.DeliveryStore, channels []string, interval time.Duration, logger *slog.Logger) *Materializer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Materializer{
		chores:   chores,
		compl:    compl,
		events:   events,
		delivery: delivery,
		channels: channels,
		interval: interval,
		logger:   logger,
	}
}

func (m *Materializer) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.tick(time.Now().UTC())
			}
		}
	}()
}

func (m *Materializer) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// tick reads now once and reuses it for every chore so evaluation and
// materialization within the tick are mutually consistent.
func (m *Materializer) tick(now time.Time) {
	chores, err := m.chores.ListScheduled()
	if err != nil {
		m.logger.Error("list scheduled chores", "error", err)
		return
	}

	for _, c := range chores {
		if err := m.materializeChore(c, now); err != nil {
			m.logger.Error("materialize chore", "chore_id", c.ID, "error", err)
		}
	}
}

// materializeChore computes the chore's current due instant and, if due,
// commits the event + seed deliveries in one transaction. A cron schedule
// that was down for days only yields its *current* due instant per tick —
// the evaluator is stateless, not a historical iterator — so catch-up
// ticks drain one event per chore each, never a storm.
func (m *Materializer) materializeChore(c *model.Chore, now time.Time) error {
	last, err := m.compl.Last(c.ID)
	if err != nil {
		return fmt.Errorf("last completion: %w", err)
	}
	var lastAt *time.Time
	if last != nil {
		lastAt = &last.CompletedAt
	}

	next, ok, err := schedule.Next(c.Schedule, now, c.CreatedAt, lastAt)
	if err != nil {
		// InvalidSchedule: log once per tick and skip. Never raises — a
		// malformed chore must not stall the rest of the batch.
		m.logger.Warn("skipping chore with invalid schedule", "chore_id", c.ID, "error", err)
		return nil
	}
	if !ok || next.After(now) {
		return nil
	}

	tx, err := m.events.BeginTx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	event := &model.NotificationEvent{
		ID:        uuid.New(),
		ChoreID:   c.ID,
		EventType: model.NotificationEventTypeDue,
		DueAt:     next,
		Title:     c.Name,
		Body:      composeBody(c, next, now),
		CreatedAt: now,
	}

	inserted, err := m.events.InsertIfAbsent(tx, event)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if !inserted {
		// An earlier tick (or a concurrent materializer instance) already
		// recorded this due instant. Commit the no-op and move on.
		return tx.Commit()
	}

	for _, ch := range m.channels {
		d := &model.NotificationDelivery{
			ID:        uuid.New(),
			EventID:   event.ID,
			Channel:   ch,
			Status:    model.DeliveryPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.delivery.Create(tx, d); err != nil {
			return fmt.Errorf("seed delivery for channel %s: %w", ch, err)
		}
	}

	return tx.Commit()
}

func composeBody(c *model.Chore, dueAt, now time.Time) string {
	due := fmt.Sprintf("Due %s (%s)", dueAt.Format(time.RFC3339), choredue.Relative(dueAt, now))
	if c.Description == "" {
		return due
	}
	return c.Description + "\n" + due
}
