// Package platform selects and hardens the per-platform chat API adapters.
// Signature verification and wire parsing live in the subpackages; this
// package owns the capability interface the processor programs against.
package platform

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"deskbridge/internal/domain"
	"deskbridge/internal/platform/discord"
	"deskbridge/internal/platform/slack"
	"deskbridge/internal/platform/telegram"
	"deskbridge/internal/store"
)

// ChannelRef addresses a destination for a new message. ThreadID is empty for
// a top-level post.
type ChannelRef struct {
	ChannelID string
	ThreadID  string
}

// MessageRef addresses an existing message for in-place updates.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// Adapter is the per-platform capability surface the pipeline needs. One
// implementation per platform, selected by the tenant's active installation.
type Adapter interface {
	Platform() string
	FetchSenderName(ctx context.Context, senderID string) (string, error)
	PostMessage(ctx context.Context, ref ChannelRef, text string) (string, error)
	UpdateMessage(ctx context.Context, ref MessageRef, text string) error
}

// Options carries the shared outbound hardening: one rate limiter and one
// circuit breaker per process, wrapped around every platform API call.
type Options struct {
	HTTP    *http.Client
	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker

	DiscordBotToken  string
	TelegramBotToken string
}

// ForInstallation returns the adapter bound to the installation's credentials.
func ForInstallation(in store.Installation, opts Options) (Adapter, error) {
	g := guard{limiter: opts.Limiter, breaker: opts.Breaker}
	switch in.Platform {
	case domain.PlatformSlack:
		return &slackAdapter{
			c: &slack.Client{Token: in.AccessToken, HTTP: opts.HTTP},
			g: g,
		}, nil
	case domain.PlatformDiscord:
		token := opts.DiscordBotToken
		if in.AccessToken != "" {
			token = in.AccessToken
		}
		return &discordAdapter{
			c: &discord.Client{BotToken: token, HTTP: opts.HTTP},
			g: g,
		}, nil
	case domain.PlatformTelegram:
		token := opts.TelegramBotToken
		if in.AccessToken != "" {
			token = in.AccessToken
		}
		return &telegramAdapter{
			c: &telegram.Client{BotToken: token, HTTP: opts.HTTP},
			g: g,
		}, nil
	}
	return nil, fmt.Errorf("no adapter for platform %q", in.Platform)
}
