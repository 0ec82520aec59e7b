package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TelegramClient posts announcements to the team's ops channel via the
// Telegram bot API.
type TelegramClient struct {
	token     string
	channelID string
	http      *http.Client
}

func NewTelegramClient(token, channelID string) *TelegramClient {
	return &TelegramClient{
		token:     token,
		channelID: channelID,
		http:      &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *TelegramClient) Announce(ctx context.Context, message string) error {
	if c.token == "" || c.channelID == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"chat_id": c.channelID,
		"text":    message,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}
