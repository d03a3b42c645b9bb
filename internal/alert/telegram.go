package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
)

const (
	// DefaultTelegramAPI is the public Bot API base URL.
	DefaultTelegramAPI = "https://api.telegram.org"

	// maxMessageLen is Telegram's limit for sendMessage text.
	maxMessageLen = 4096
)

// Sender delivers one alert text. Implementations make a single attempt.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// NopSender is used when no alert destination is configured.
type NopSender struct{}

func (NopSender) Send(context.Context, string) error { return nil }

// NewSender returns a TelegramSender, or NopSender when token or chatID is empty.
func NewSender(baseURL, token, chatID string, timeout time.Duration) Sender {
	if token == "" || chatID == "" {
		return NopSender{}
	}
	return NewTelegramSender(baseURL, token, chatID, timeout)
}

// TelegramSender posts alerts to the Telegram Bot API sendMessage method.
type TelegramSender struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

func NewTelegramSender(baseURL, token, chatID string, timeout time.Duration) *TelegramSender {
	if baseURL == "" {
		baseURL = DefaultTelegramAPI
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelegramSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: timeout},
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Send makes one delivery attempt. Errors never include the bot token.
func (s *TelegramSender) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: s.chatID, Text: truncate(text, maxMessageLen)})
	if err != nil {
		return &apperrors.AlertError{Message: "marshal message", Err: err}
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &apperrors.AlertError{Message: "build request", Err: redact(err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &apperrors.AlertError{Message: "request failed", Err: redact(err)}
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apperrors.AlertError{
			StatusCode: resp.StatusCode,
			Message:    "telegram sendMessage rejected",
			Err:        errors.New(strings.TrimSpace(string(snippet))),
		}
	}
	return nil
}

// redact strips the request URL, which carries the bot token.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
