// Package dispatch implements the periodic task that delivers pending and
// retry-eligible notification deliveries to their channel adapter with
// bounded retry, exponential backoff, and crash-safe state transitions.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/nag/internal/channel"
	"github.com/dukerupert/nag/internal/model"
	"github.com/dukerupert/nag/internal/store"
)

const (
	DefaultDispatchInterval = 15 * time.Second
	DefaultMaxAttempts      = 5
	DefaultBatchSize        = 50
	DefaultSendTimeout      = 10 * time.Second
)

type Config struct {
	Interval     time.Duration
	MaxAttempts  int
	BatchSize    int
	SendTimeout  time.Duration
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	DefaultRecip map[string]string // channel name -> default recipient
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultDispatchInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = DefaultBackoffCap
	}
}

// Dispatcher mirrors the materializer's ticker-driven task shape.
type Dispatcher struct {
	mu       sync.Mutex
	events   *store.EventStore
	delivery *store.DeliveryStore
	chores   *store.ChoreStore
	channels map[string]channel.Adapter
	cfg      Config

	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

func New(events *store.EventStore, delivery *store.DeliveryStore, chores *store.ChoreStore, channels map[string]channel.Adapter, cfg Config, logger *slog.Logger) *Dispatcher {
	cfg.setDefaults()
	return &Dispatcher{
		events:   events,
		delivery: delivery,
		chores:   chores,
		channels: channels,
		cfg:      cfg,
		logger:   logger,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.tick(ctx)
			}
		}
	}()
}

func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	done := d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	claimed, err := d.delivery.Claim(d.cfg.MaxAttempts, d.cfg.BatchSize)
	if err != nil {
		d.logger.Error("claim deliveries", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, del := range claimed {
		if !eligible(del.AttemptCount, del.LastAttemptedAt, d.cfg.BackoffBase, d.cfg.BackoffCap, now) {
			continue
		}
		if err := d.attempt(ctx, del); err != nil {
			d.logger.Error("attempt delivery", "delivery_id", del.ID, "error", err)
		}
	}
}

// attempt runs one send for a single delivery: mark pending + increment
// attempt before sending
// so a crash between send and the post-send write is visible as an
// already-incremented attempt on restart, not a silently repeating retry.
func (d *Dispatcher) attempt(ctx context.Context, del *model.NotificationDelivery) error {
	adapter, ok := d.channels[del.Channel]
	if !ok {
		return fmt.Errorf("no adapter registered for channel %q", del.Channel)
	}

	event, err := d.events.Get(del.EventID)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}
	if event == nil {
		// Event was deleted out from under the delivery (cascaded chore
		// deletion race). Park it — nothing left to send.
		return d.delivery.Park(del.ID, "parent event no longer exists", d.cfg.MaxAttempts, time.Now().UTC())
	}

	chore, err := d.chores.Get(event.ChoreID)
	if err != nil {
		return fmt.Errorf("load chore: %w", err)
	}
	choreID := event.ChoreID
	if chore != nil {
		choreID = chore.ID
	}

	now := time.Now().UTC()
	if err := d.delivery.MarkAttempting(del.ID, now); err != nil {
		return fmt.Errorf("mark attempting: %w", err)
	}
	attemptCount := del.AttemptCount + 1

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	recipient := d.cfg.DefaultRecip[del.Channel]
	sendErr := adapter.Send(sendCtx, recipient, event.Title, event.Body, channel.ActionHint{
		EventID: event.ID,
		ChoreID: choreID,
	})

	now = time.Now().UTC()
	if sendErr == nil {
		return d.delivery.MarkDelivered(del.ID, now)
	}

	if errors.Is(sendErr, channel.ErrPermanent) || attemptCount >= d.cfg.MaxAttempts {
		return d.delivery.Park(del.ID, sendErr.Error(), d.cfg.MaxAttempts, now)
	}
	return d.delivery.MarkFailed(del.ID, sendErr.Error(), now)
}
