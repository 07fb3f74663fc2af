package channel

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
)

// ErrExpired reports that a push subscription is no longer valid (410 Gone)
// and should be dropped rather than retried.
var ErrExpired = errors.New("push subscription expired")

// Webpush is the Adapter variant backed by the Web Push protocol. Its
// recipient strings encode a subscription as "endpoint|p256dh|auth" — Nag
// serves a single deployment, so this avoids a separate subscription store
// for what the dispatcher only ever uses as an opaque destination.
type Webpush struct {
	publicKey  string
	privateKey string
	secret     string
}

func NewWebpush(publicKey, privateKey, secret string) *Webpush {
	return &Webpush{publicKey: publicKey, privateKey: privateKey, secret: secret}
}

func (w *Webpush) Name() string { return "webpush" }

func (w *Webpush) Configured() bool {
	return w.publicKey != "" && w.privateKey != ""
}

type webpushPayload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	EventID string `json:"event_id"`
	ChoreID string `json:"chore_id"`
}

func (w *Webpush) Send(ctx context.Context, recipient, title, body string, hint ActionHint) error {
	if !w.Configured() {
		return fmt.Errorf("webpush adapter not configured: missing VAPID keys")
	}

	parts := strings.SplitN(recipient, "|", 3)
	if len(parts) != 3 {
		return fmt.Errorf("webpush: malformed recipient: %w", ErrPermanent)
	}
	endpoint, p256dh, auth := parts[0], parts[1], parts[2]

	data, err := json.Marshal(webpushPayload{
		Title:   title,
		Body:    body,
		EventID: hint.EventID.String(),
		ChoreID: hint.ChoreID.String(),
	})
	if err != nil {
		return fmt.Errorf("marshal webpush payload: %w", err)
	}

	resp, err := webpush.SendNotification(data, &webpush.Subscription{
		Endpoint: endpoint,
		Keys:     webpush.Keys{P256dh: p256dh, Auth: auth},
	}, &webpush.Options{
		VAPIDPublicKey:  w.publicKey,
		VAPIDPrivateKey: w.privateKey,
		Subscriber:      "mailto:noreply@nag.app",
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send webpush notification: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: %w", ErrExpired, ErrPermanent)
	case resp.StatusCode >= 500:
		return fmt.Errorf("webpush service error %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("webpush rejected notification (status %d): %w", resp.StatusCode, ErrPermanent)
	}
	return nil
}

// VerifyCallback checks a shared-secret header set by the browser's
// service-worker action handler (there is no provider-issued signature for
// a self-hosted push action, unlike Telegram's webhook secret), then
// decodes the (event_id, chore_id) pair from the JSON body it posts back.
func (w *Webpush) VerifyCallback(headers map[string]string, body []byte) (ActionHint, error) {
	got := headers["X-Nag-Webpush-Secret"]
	if subtle.ConstantTimeCompare([]byte(got), []byte(w.secret)) != 1 {
		return ActionHint{}, fmt.Errorf("webpush callback: secret mismatch")
	}

	var payload struct {
		EventID string `json:"event_id"`
		ChoreID string `json:"chore_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ActionHint{}, fmt.Errorf("webpush callback: unmarshal body: %w", err)
	}

	eventID, err := uuid.Parse(payload.EventID)
	if err != nil {
		return ActionHint{}, fmt.Errorf("webpush callback: parse event id: %w", err)
	}
	choreID, err := uuid.Parse(payload.ChoreID)
	if err != nil {
		return ActionHint{}, fmt.Errorf("webpush callback: parse chore id: %w", err)
	}

	return ActionHint{EventID: eventID, ChoreID: choreID}, nil
}
