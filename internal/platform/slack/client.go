package slack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client is a minimal Slack Web API client covering what the pipeline needs.
type Client struct {
	Token   string
	HTTP    *http.Client
	BaseURL string
}

func (c *Client) baseURL() string {
	if c.BaseURL == "" {
		return "https://slack.com/api"
	}
	return strings.TrimRight(c.BaseURL, "/")
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	TS    string `json:"ts"`
	User  struct {
		Name    string `json:"name"`
		Profile struct {
			DisplayName string `json:"display_name"`
			RealName    string `json:"real_name"`
		} `json:"profile"`
	} `json:"user"`
}

func (c *Client) call(ctx context.Context, method string, form url.Values) (apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return apiResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apiResponse{}, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out apiResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return apiResponse{}, err
	}
	if !out.OK {
		if out.Error != "" {
			return out, errors.New("slack: " + out.Error)
		}
		return out, errors.New("slack api call failed")
	}
	return out, nil
}

// UsersInfo returns the user's display name, preferring the profile display
// name over the real name over the login name.
func (c *Client) UsersInfo(ctx context.Context, userID string) (string, error) {
	form := url.Values{}
	form.Set("user", userID)
	out, err := c.call(ctx, "users.info", form)
	if err != nil {
		return "", err
	}
	if n := out.User.Profile.DisplayName; n != "" {
		return n, nil
	}
	if n := out.User.Profile.RealName; n != "" {
		return n, nil
	}
	return out.User.Name, nil
}

// PostMessage posts into a channel, threading under threadTS when set, and
// returns the new message's timestamp.
func (c *Client) PostMessage(ctx context.Context, channel, threadTS, text string) (string, error) {
	form := url.Values{}
	form.Set("channel", channel)
	form.Set("text", text)
	if threadTS != "" {
		form.Set("thread_ts", threadTS)
	}
	out, err := c.call(ctx, "chat.postMessage", form)
	if err != nil {
		return "", err
	}
	return out.TS, nil
}

// UpdateMessage rewrites an existing message in place (status-toggle
// re-renders).
func (c *Client) UpdateMessage(ctx context.Context, channel, ts, text string) error {
	form := url.Values{}
	form.Set("channel", channel)
	form.Set("ts", ts)
	form.Set("text", text)
	_, err := c.call(ctx, "chat.update", form)
	return err
}

// OAuthResult is the installation identity returned by the OAuth exchange.
type OAuthResult struct {
	TeamID      string
	TeamName    string
	BotUserID   string
	AccessToken string
}

// ExchangeOAuth redeems an oauth.v2.access code. The onboarding UI lives
// elsewhere; the adapter owns the platform API surface.
func (c *Client) ExchangeOAuth(ctx context.Context, clientID, clientSecret, code string) (OAuthResult, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/oauth.v2.access", strings.NewReader(form.Encode()))
	if err != nil {
		return OAuthResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return OAuthResult{}, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out struct {
		OK          bool   `json:"ok"`
		Error       string `json:"error"`
		AccessToken string `json:"access_token"`
		BotUserID   string `json:"bot_user_id"`
		Team        struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"team"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return OAuthResult{}, err
	}
	if !out.OK {
		return OAuthResult{}, errors.New("slack oauth: " + out.Error)
	}
	return OAuthResult{
		TeamID:      out.Team.ID,
		TeamName:    out.Team.Name,
		BotUserID:   out.BotUserID,
		AccessToken: out.AccessToken,
	}, nil
}
