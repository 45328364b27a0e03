package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Telegram is the plain send-capability adapted from the teacher's
// notifications.Notify: a one-way HTTP POST to the Telegram Bot API, no
// interactive listener or inline-keyboard machinery (that surface is a
// human-facing CLI, out of scope here).
type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Send posts text to the configured chat. Best-effort: failures are
// returned to the caller but are never allowed to block a trading decision
// (spec §5 item ii, §7).
func (t *Telegram) Send(text string) error {
	if t.botToken == "" || t.chatID == "" {
		return fmt.Errorf("notify: telegram credentials missing, skipping notification")
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("notify: telegram request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: telegram returned status %d", resp.StatusCode)
	}
	return nil
}
