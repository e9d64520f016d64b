// Package notify delivers operator alerts raised during sync passes.
// Alerts are best effort: a failed delivery is reported to the caller
// but never blocks or fails the pass that raised it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Notifier sends a short plain-text alert to an operator channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Telegram sends alerts through the Telegram Bot API.
type Telegram struct {
	// BaseURL is the API root. Defaults to the public Bot API endpoint;
	// overridable for tests.
	BaseURL string
	Token   string
	ChatID  string

	httpClient *http.Client
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		BaseURL:    "https://api.telegram.org",
		Token:      token,
		ChatID:     chatID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Notify posts text to the configured chat via sendMessage.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	payload := struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}{ChatID: t.ChatID, Text: text}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, t.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// LogNotifier writes alerts to a logger. Used when no Telegram
// credentials are configured.
type LogNotifier struct {
	Logger *log.Logger
}

func (l *LogNotifier) Notify(_ context.Context, text string) error {
	l.Logger.Printf("alert: %s", text)
	return nil
}
