package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client is a minimal Bot API client covering what the pipeline needs.
// Telegram has no webhook signature; the registered webhook URL (with its
// secret path token) is the trust boundary.
type Client struct {
	BotToken string
	HTTP     *http.Client
	BaseURL  string
}

func (c *Client) baseURL() string {
	if c.BaseURL == "" {
		return "https://api.telegram.org"
	}
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) call(ctx context.Context, method string, form url.Values, out any) error {
	endpoint := c.baseURL() + "/bot" + c.BotToken + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return err
	}
	if !envelope.OK {
		if envelope.Description != "" {
			return errors.New("telegram: " + envelope.Description)
		}
		return fmt.Errorf("telegram %s: status %d", method, resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(envelope.Result, out)
	}
	return nil
}

// GetChatMemberName resolves a display name. The ref encodes "chatID/userID"
// because the Bot API scopes member lookups to a chat.
func (c *Client) GetChatMemberName(ctx context.Context, ref string) (string, error) {
	chatID, userID, ok := strings.Cut(ref, "/")
	if !ok {
		return "", errors.New("telegram: sender ref must be chatID/userID")
	}
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("user_id", userID)

	var member struct {
		User User `json:"user"`
	}
	if err := c.call(ctx, "getChatMember", form, &member); err != nil {
		return "", err
	}
	return displayName(member.User), nil
}

// SendMessage posts into a chat, threading into topicID when set, and returns
// the new message id.
func (c *Client) SendMessage(ctx context.Context, chatID, topicID, text string) (string, error) {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)
	if topicID != "" {
		form.Set("message_thread_id", topicID)
	}
	var m struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, "sendMessage", form, &m); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", m.MessageID), nil
}

// EditMessageText rewrites an existing message (status-toggle re-renders).
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID, text string) error {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("message_id", messageID)
	form.Set("text", text)
	return c.call(ctx, "editMessageText", form, nil)
}

// GetMe returns the bot's own identity (installation setup).
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var u User
	if err := c.call(ctx, "getMe", url.Values{}, &u); err != nil {
		return User{}, err
	}
	return u, nil
}
