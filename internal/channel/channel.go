// Package channel defines the polymorphic outbound notification adapter
// the dispatcher (C5) and callback ingestor (C6) depend on. Variants
// currently implemented: telegram (a chat-bot HTTP API) and webpush (Web
// Push subscriptions). The dispatcher is agnostic to which variant it
// holds — adding a channel means adding a variant and a channel name, not
// touching C4 or C5.
package channel

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ActionHint encodes the (event, chore) pair an adapter may attach to an
// inline "mark done" action. Its payload is opaque to the dispatcher; only
// the adapter and the corresponding callback verifier understand it.
type ActionHint struct {
	EventID uuid.UUID
	ChoreID uuid.UUID
}

// ErrPermanent signals that a send failure must not be retried (invalid
// recipient, rejected credentials, 4xx other than 429). Wrap it with
// fmt.Errorf("...: %w", ErrPermanent) so callers can detect it with
// errors.Is; the underlying cause is carried only in the message text.
var ErrPermanent = errors.New("permanent channel failure")

// Adapter is the capability set every channel variant implements.
type Adapter interface {
	// Name is the channel tag stored on notification_deliveries.channel.
	Name() string

	// Send delivers a notification. A returned error wrapping ErrPermanent
	// parks the delivery; any other error is treated as transient and
	// retried with backoff.
	Send(ctx context.Context, recipient, title, body string, hint ActionHint) error

	// VerifyCallback validates an inbound callback payload (adapter-specific
	// signature or shared-secret check) and extracts the action hint it was
	// issued with.
	VerifyCallback(headers map[string]string, body []byte) (ActionHint, error)
}
