package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vendhub-bot/pkg/uid"
)

// WebhookClient implements Messenger against a gateway sidecar that
// owns the actual platform connection. Each outbound intent is a JSON
// POST; the sidecar translates it into platform API calls.
type WebhookClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewWebhookClient creates a webhook-backed messenger.
func NewWebhookClient(baseURL, token string) *WebhookClient {
	return &WebhookClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *WebhookClient) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uid.New())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %d for %s", resp.StatusCode, path)
	}
	return nil
}

// Reply edits or responds to the bound message.
func (c *WebhookClient) Reply(ctx context.Context, channelID, messageID, text string) error {
	return c.post(ctx, "/messages/reply", map[string]string{
		"channel_id": channelID,
		"message_id": messageID,
		"text":       text,
	})
}

// ReplyPrivate sends an ephemeral notice to one user.
func (c *WebhookClient) ReplyPrivate(ctx context.Context, channelID, userID, text string) error {
	return c.post(ctx, "/messages/ephemeral", map[string]string{
		"channel_id": channelID,
		"user_id":    userID,
		"text":       text,
	})
}

// Announce posts a public message to the channel.
func (c *WebhookClient) Announce(ctx context.Context, channelID, text string) error {
	return c.post(ctx, "/messages/announce", map[string]string{
		"channel_id": channelID,
		"text":       text,
	})
}

// DirectMessage delivers text over a private channel.
func (c *WebhookClient) DirectMessage(ctx context.Context, userID, text string) error {
	return c.post(ctx, "/messages/dm", map[string]string{
		"user_id": userID,
		"text":    text,
	})
}

// GrantRole asks the platform to grant a role.
func (c *WebhookClient) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.post(ctx, "/roles/grant", map[string]string{
		"guild_id": guildID,
		"user_id":  userID,
		"role_id":  roleID,
	})
}

// DisableControls freezes the bound message's controls.
func (c *WebhookClient) DisableControls(ctx context.Context, channelID, messageID, text string) error {
	return c.post(ctx, "/messages/disable", map[string]string{
		"channel_id": channelID,
		"message_id": messageID,
		"text":       text,
	})
}

// Ensure WebhookClient implements Messenger
var _ Messenger = (*WebhookClient)(nil)
