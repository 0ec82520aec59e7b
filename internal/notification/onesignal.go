package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/enigmateam/lovewidget/internal/domain"
	"github.com/enigmateam/lovewidget/internal/repository"
)

const defaultEndpoint = "https://onesignal.com/api/v1/notifications"

// Client sends push notifications through the OneSignal REST API. The
// recipient's device id (player id) is resolved from the user directory;
// users without one are silently skipped.
type Client struct {
	appID    string
	apiKey   string
	endpoint string
	users    repository.UserRepository
	http     *http.Client
}

func NewClient(appID, apiKey string, users repository.UserRepository) *Client {
	return &Client{
		appID:    appID,
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		users:    users,
		http:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) SendPush(ctx context.Context, event domain.PushEvent) error {
	if c.appID == "" || c.apiKey == "" {
		return nil
	}

	user, err := c.users.GetByID(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("resolving push recipient: %w", err)
	}
	if user == nil || user.PlayerID == nil || *user.PlayerID == "" {
		return nil
	}

	payload := map[string]any{
		"app_id":             c.appID,
		"include_player_ids": []string{*user.PlayerID},
		"contents":           map[string]string{"en": event.Message},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("onesignal returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}
