package notifications

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// Level is the severity of an alert
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Notifier delivers operator alerts
type Notifier interface {
	SendAlert(ctx context.Context, level Level, message string) error
}

// Nop drops every alert
type Nop struct{}

func (Nop) SendAlert(context.Context, Level, string) error { return nil }

// TelegramNotifier posts alerts to a Telegram chat through the bot API
type TelegramNotifier struct {
	token   string
	chatID  string
	baseURL string
	title   string
	client  *http.Client
}

// TelegramOption customizes a TelegramNotifier
type TelegramOption func(*TelegramNotifier)

// WithBaseURL points the notifier at another API host
func WithBaseURL(u string) TelegramOption {
	return func(t *TelegramNotifier) { t.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) TelegramOption {
	return func(t *TelegramNotifier) { t.client = c }
}

// WithTitle sets the heading of every message
func WithTitle(title string) TelegramOption {
	return func(t *TelegramNotifier) { t.title = title }
}

func NewTelegramNotifier(token, chatID string, opts ...TelegramOption) *TelegramNotifier {
	t := &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPI,
		title:   "Trade Engine Alert",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// New returns a Telegram notifier, or Nop when no token is configured
func New(token, chatID string, opts ...TelegramOption) Notifier {
	if token == "" {
		return Nop{}
	}
	return NewTelegramNotifier(token, chatID, opts...)
}

func (t *TelegramNotifier) SendAlert(ctx context.Context, level Level, message string) error {
	emoji := "ℹ️"
	switch level {
	case LevelWarning:
		emoji = "⚠️"
	case LevelError:
		emoji = "🚨"
	case LevelSuccess:
		emoji = "✅"
	}

	text := fmt.Sprintf("%s *%s*\n\n%s", emoji, t.title, message)

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
