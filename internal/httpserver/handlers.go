package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"deskbridge/internal/domain"
	"deskbridge/internal/ingest"
	"deskbridge/internal/platform"
	"deskbridge/internal/platform/discord"
	"deskbridge/internal/platform/slack"
	"deskbridge/internal/platform/telegram"
	"deskbridge/internal/store"
)

type GatewayStore interface {
	GetInstallationByExternalID(ctx context.Context, platformName, externalID string) (store.Installation, bool, error)
	GetTelegramInstallationByChat(ctx context.Context, chatID string) (store.Installation, bool, error)
}

// Gateway is the platform-facing HTTP boundary. Signature failures reject
// with 401 and malformed bodies with 400; any failure past the adapter stage
// still answers 200, because chat platforms retry-storm on non-2xx responses.
// Correctness is the dedup store's job, not the status code's.
type Gateway struct {
	SlackSigningSecret string
	DiscordPublicKey   string
	TelegramPath       string

	Store      GatewayStore
	Dispatcher *ingest.Dispatcher
	Toggler    *ingest.StatusToggler
	Now        func() time.Time
}

func (g *Gateway) Register(r *mux.Router) {
	r.HandleFunc("/slack/events", g.handleSlackEvents).Methods(http.MethodPost)
	r.HandleFunc("/slack/interactive", g.handleSlackInteractive).Methods(http.MethodPost)
	r.HandleFunc("/discord/events", g.handleDiscordEvents).Methods(http.MethodPost)
	path := g.TelegramPath
	if path == "" {
		path = "/telegram/webhook"
	}
	r.HandleFunc(path, g.handleTelegramWebhook).Methods(http.MethodPost)
}

func (g *Gateway) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Gateway) verifySlack(w http.ResponseWriter, r *http.Request, body []byte) bool {
	ts := r.Header.Get("X-Slack-Request-Timestamp")
	sig := r.Header.Get("X-Slack-Signature")
	if !slack.VerifySignature(g.SlackSigningSecret, ts, body, sig, g.now()) {
		http.Error(w, ErrInvalidSignature, http.StatusUnauthorized)
		return false
	}
	return true
}

func (g *Gateway) handleSlackEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if !g.verifySlack(w, r, body) {
		return
	}

	cb, err := slack.ParseCallback(body)
	if err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	switch cb.Type {
	case slack.TypeURLVerification:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": cb.Challenge})
		return
	case slack.TypeEventCallback:
		in, found, err := g.Store.GetInstallationByExternalID(r.Context(), domain.PlatformSlack, cb.TeamID)
		if err != nil {
			slog.Error("slack installation lookup failed", "err", err, "team_id", cb.TeamID)
			w.WriteHeader(http.StatusOK)
			return
		}
		if !found {
			slog.Info("slack event for unknown workspace", "team_id", cb.TeamID)
			w.WriteHeader(http.StatusOK)
			return
		}
		ev := slack.ToCanonical(cb, body)
		ev.AccountID = in.AccountID
		g.Dispatcher.Dispatch(r.Context(), ev)
	}
	w.WriteHeader(http.StatusOK)
}

func (g *Gateway) handleSlackInteractive(w http.ResponseWriter, r *http.Request) {
	// The signature covers the raw form-encoded body, so read before parsing.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, ErrBadForm, http.StatusBadRequest)
		return
	}
	if !g.verifySlack(w, r, body) {
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil || form.Get("payload") == "" {
		http.Error(w, ErrBadForm, http.StatusBadRequest)
		return
	}
	in, err := slack.ParseInteraction([]byte(form.Get("payload")))
	if err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	if in.Type == "block_actions" {
		if ticketID := in.TicketID(); ticketID != "" {
			// Status toggles run inline regardless of execution mode: the
			// platform expects a prompt interaction response.
			if _, err := g.Toggler.Toggle(r.Context(), domain.PlatformSlack, in.Team.ID, ticketID, platform.MessageRef{
				ChannelID: in.Channel.ID,
				MessageID: in.Message.TS,
			}); err != nil {
				slog.Error("slack status toggle failed", "err", err, "ticket_id", ticketID)
			}
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (g *Gateway) handleDiscordEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	// The Interactions endpoint signs every request; forwarded gateway events
	// may arrive unsigned. A present signature must verify either way.
	sig := r.Header.Get("X-Signature-Ed25519")
	ts := r.Header.Get("X-Signature-Timestamp")
	if sig != "" || ts != "" {
		if !discord.VerifySignature(g.DiscordPublicKey, ts, body, sig) {
			http.Error(w, ErrInvalidSignature, http.StatusUnauthorized)
			return
		}
	}

	p, err := discord.ParsePayload(body)
	if err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	switch {
	case p.Type == discord.InteractionPing:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":1}`))
		return
	case p.Type == discord.InteractionComponent:
		if sig == "" {
			http.Error(w, ErrInvalidSignature, http.StatusUnauthorized)
			return
		}
		if ticketID := p.TicketID(); ticketID != "" {
			if _, err := g.Toggler.Toggle(r.Context(), domain.PlatformDiscord, p.GuildID, ticketID, platform.MessageRef{
				ChannelID: p.ChannelID,
				MessageID: p.Message.ID,
			}); err != nil {
				slog.Error("discord status toggle failed", "err", err, "ticket_id", ticketID)
			}
		}
		// Deferred message update: the toggle already re-rendered.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":6}`))
		return
	case p.T == discord.EventMessageCreate:
		ev, err := discord.ToCanonical(p, body)
		if err != nil {
			http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
			return
		}
		in, found, lookupErr := g.Store.GetInstallationByExternalID(r.Context(), domain.PlatformDiscord, ev.ExternalID)
		if lookupErr != nil {
			slog.Error("discord installation lookup failed", "err", lookupErr, "guild_id", ev.ExternalID)
			w.WriteHeader(http.StatusOK)
			return
		}
		if !found {
			slog.Info("discord event for unknown guild", "guild_id", ev.ExternalID)
			w.WriteHeader(http.StatusOK)
			return
		}
		ev.AccountID = in.AccountID
		g.Dispatcher.Dispatch(r.Context(), ev)
	}
	w.WriteHeader(http.StatusOK)
}

func (g *Gateway) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	u, err := telegram.ParseUpdate(body)
	if err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	ev := telegram.ToCanonical(u, body)
	if ev.ExternalID == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	in, found, err := g.Store.GetTelegramInstallationByChat(r.Context(), ev.ExternalID)
	if err != nil {
		slog.Error("telegram installation lookup failed", "err", err, "chat_id", ev.ExternalID)
		w.WriteHeader(http.StatusOK)
		return
	}
	if !found {
		slog.Info("telegram update for unknown chat", "chat_id", ev.ExternalID)
		w.WriteHeader(http.StatusOK)
		return
	}
	ev.AccountID = in.AccountID
	g.Dispatcher.Dispatch(r.Context(), ev)
	w.WriteHeader(http.StatusOK)
}
