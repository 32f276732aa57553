package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client is a minimal Discord REST client covering what the pipeline needs.
type Client struct {
	BotToken string
	HTTP     *http.Client
	BaseURL  string
}

func (c *Client) baseURL() string {
	if c.BaseURL == "" {
		return "https://discord.com/api/v10"
	}
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.BotToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(b, out)
	}
	return nil
}

// GetUserName returns the global display name when set, else the username.
func (c *Client) GetUserName(ctx context.Context, userID string) (string, error) {
	var u struct {
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/"+userID, nil, &u); err != nil {
		return "", err
	}
	if u.GlobalName != "" {
		return u.GlobalName, nil
	}
	return u.Username, nil
}

// CreateMessage posts into a channel, replying to replyToID when set, and
// returns the new message id.
func (c *Client) CreateMessage(ctx context.Context, channelID, replyToID, text string) (string, error) {
	body := map[string]any{"content": text}
	if replyToID != "" {
		body["message_reference"] = map[string]string{"message_id": replyToID}
	}
	var m struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", body, &m); err != nil {
		return "", err
	}
	if m.ID == "" {
		return "", errors.New("discord: create message returned no id")
	}
	return m.ID, nil
}

// EditMessage rewrites an existing message (status-toggle re-renders).
func (c *Client) EditMessage(ctx context.Context, channelID, messageID, text string) error {
	return c.do(ctx, http.MethodPatch, "/channels/"+channelID+"/messages/"+messageID,
		map[string]any{"content": text}, nil)
}

// BotIdentity returns the application's own bot user id (installation setup).
func (c *Client) BotIdentity(ctx context.Context) (string, error) {
	var u struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, &u); err != nil {
		return "", err
	}
	return u.ID, nil
}
