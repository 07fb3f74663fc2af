package channel

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const telegramDefaultTimeout = 10 * time.Second

// Telegram is the Adapter variant backed by the Telegram bot HTTP API. It
// attaches an inline "mark done" button whose callback_data encodes the
// (event_id, chore_id) action hint, and verifies inbound webhook calls
// using a shared secret token rather than a cryptographic signature,
// matching Telegram's own webhook-security recommendation.
type Telegram struct {
	token       string
	recipient   string
	secretToken string
	baseURL     string
	httpClient  *http.Client
}

type TelegramOption func(*Telegram)

func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(t *Telegram) { t.httpClient = c }
}

func WithTelegramBaseURL(url string) TelegramOption {
	return func(t *Telegram) { t.baseURL = url }
}

func NewTelegram(token, recipient, secretToken string, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		token:       token,
		recipient:   recipient,
		secretToken: secretToken,
		baseURL:     "https://api.telegram.org",
		httpClient:  &http.Client{Timeout: telegramDefaultTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Configured returns true if the adapter has a bot token to call with.
func (t *Telegram) Configured() bool {
	return t.token != ""
}

func (t *Telegram) Name() string { return "telegram" }

type telegramInlineKeyboard struct {
	InlineKeyboard [][]telegramButton `json:"inline_keyboard"`
}

type telegramButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type telegramSendMessage struct {
	ChatID      string                 `json:"chat_id"`
	Text        string                 `json:"text"`
	ReplyMarkup telegramInlineKeyboard `json:"reply_markup"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, recipient, title, body string, hint ActionHint) error {
	if !t.Configured() {
		return fmt.Errorf("telegram adapter not configured: missing bot token")
	}
	if recipient == "" {
		recipient = t.recipient
	}

	payload := telegramSendMessage{
		ChatID: recipient,
		Text:   fmt.Sprintf("%s\n\n%s", title, body),
		ReplyMarkup: telegramInlineKeyboard{
			InlineKeyboard: [][]telegramButton{{{
				Text:         "Mark done",
				CallbackData: fmt.Sprintf("%s:%s", hint.EventID, hint.ChoreID),
			}}},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	var tr telegramResponse
	_ = json.NewDecoder(resp.Body).Decode(&tr)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("telegram rate limited: %s", tr.Description)
	case resp.StatusCode >= 500:
		return fmt.Errorf("telegram server error %d: %s", resp.StatusCode, tr.Description)
	case resp.StatusCode >= 400:
		return fmt.Errorf("telegram rejected message (status %d: %s): %w", resp.StatusCode, tr.Description, ErrPermanent)
	case !tr.OK:
		return fmt.Errorf("telegram rejected message: %s: %w", tr.Description, ErrPermanent)
	}
	return nil
}

// VerifyCallback checks the X-Telegram-Bot-Api-Secret-Token header against
// the configured secret with a constant-time comparison, then parses the
// "event_id:chore_id" callback_data payload Send attached.
func (t *Telegram) VerifyCallback(headers map[string]string, body []byte) (ActionHint, error) {
	got := headers["X-Telegram-Bot-Api-Secret-Token"]
	if subtle.ConstantTimeCompare([]byte(got), []byte(t.secretToken)) != 1 {
		return ActionHint{}, fmt.Errorf("telegram callback: secret token mismatch")
	}

	var update struct {
		CallbackQuery struct {
			Data string `json:"data"`
		} `json:"callback_query"`
	}
	if err := json.Unmarshal(body, &update); err != nil {
		return ActionHint{}, fmt.Errorf("telegram callback: unmarshal update: %w", err)
	}

	parts := strings.SplitN(update.CallbackQuery.Data, ":", 2)
	if len(parts) != 2 {
		return ActionHint{}, fmt.Errorf("telegram callback: malformed callback_data %q", update.CallbackQuery.Data)
	}
	eventID, err := uuid.Parse(parts[0])
	if err != nil {
		return ActionHint{}, fmt.Errorf("telegram callback: parse event id: %w", err)
	}
	choreID, err := uuid.Parse(parts[1])
	if err != nil {
		return ActionHint{}, fmt.Errorf("telegram callback: parse chore id: %w", err)
	}

	return ActionHint{EventID: eventID, ChoreID: choreID}, nil
}
