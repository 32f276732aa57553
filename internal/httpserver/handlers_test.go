package httpserver

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"deskbridge/internal/domain"
	"deskbridge/internal/ingest"
	"deskbridge/internal/store"
)

const slackSecret = "8f742231b10e8888abcd99yyyzzz85a5"

var fixedNow = time.Unix(1726312345, 0)

type fakeGatewayStore struct {
	installs map[string]store.Installation
}

func (f *fakeGatewayStore) GetInstallationByExternalID(ctx context.Context, platformName, externalID string) (store.Installation, bool, error) {
	in, ok := f.installs[platformName+"/"+externalID]
	return in, ok, nil
}

func (f *fakeGatewayStore) GetTelegramInstallationByChat(ctx context.Context, chatID string) (store.Installation, bool, error) {
	in, ok := f.installs[domain.PlatformTelegram+"/"+chatID]
	return in, ok, nil
}

type captureQueue struct {
	events []domain.CanonicalEvent
}

func (c *captureQueue) EnqueueEvent(ctx context.Context, ev domain.CanonicalEvent) error {
	c.events = append(c.events, ev)
	return nil
}

type fakeToggleStore struct {
	ticket  store.Ticket
	install store.Installation
	updates []string
}

func (f *fakeToggleStore) GetTicket(ctx context.Context, ticketID string) (store.Ticket, bool, error) {
	return f.ticket, f.ticket.ID == ticketID, nil
}

func (f *fakeToggleStore) GetInstallation(ctx context.Context, accountID, platformName string) (store.Installation, bool, error) {
	return f.install, f.install.Platform == platformName, nil
}

func (f *fakeToggleStore) UpdateTicketStatus(ctx context.Context, ticketID, status string, now time.Time) error {
	f.updates = append(f.updates, status)
	return nil
}

type fixture struct {
	router  *mux.Router
	queue   *captureQueue
	toggles *fakeToggleStore
	pub     ed25519.PublicKey
	priv    ed25519.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	q := &captureQueue{}
	toggles := &fakeToggleStore{
		ticket:  store.Ticket{ID: "tkt_1", AccountID: "acc_1", Status: store.TicketOpen},
		install: store.Installation{AccountID: "acc_1", Platform: domain.PlatformSlack, ExternalID: "T123"},
	}
	gw := &Gateway{
		SlackSigningSecret: slackSecret,
		DiscordPublicKey:   hex.EncodeToString(pub),
		Store: &fakeGatewayStore{installs: map[string]store.Installation{
			"slack/T123":       {AccountID: "acc_1", Platform: domain.PlatformSlack, ExternalID: "T123"},
			"discord/G1":       {AccountID: "acc_2", Platform: domain.PlatformDiscord, ExternalID: "G1"},
			"telegram/-100123": {AccountID: "acc_3", Platform: domain.PlatformTelegram, ExternalID: "-100123"},
		}},
		Dispatcher: &ingest.Dispatcher{Mode: ingest.ModeQueued, Queue: q},
		Toggler:    &ingest.StatusToggler{Store: toggles},
		Now:        func() time.Time { return fixedNow },
	}

	r := New().Mux
	gw.Register(r)
	return &fixture{router: r, queue: q, toggles: toggles, pub: pub, priv: priv}
}

func slackSign(body []byte, ts string) string {
	mac := hmac.New(sha256.New, []byte(slackSecret))
	mac.Write([]byte("v0:" + ts + ":"))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func slackRequest(path string, body []byte) *http.Request {
	ts := strconv.FormatInt(fixedNow.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", slackSign(body, ts))
	return req
}

func TestSlackEventsRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"type":"event_callback"}`)

	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(fixedNow.Unix(), 10))
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if len(f.queue.events) != 0 {
		t.Fatalf("rejected request must not enqueue")
	}
}

func TestSlackEventsRejectsMalformedBody(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, slackRequest("/slack/events", []byte(`{nope`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSlackURLVerificationEchoesChallenge(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"type":"url_verification","challenge":"c0ffee"}`)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, slackRequest("/slack/events", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"challenge":"c0ffee"`) {
		t.Fatalf("challenge not echoed: %s", w.Body.String())
	}
}

func TestSlackEventDispatched(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{
		"type": "event_callback",
		"team_id": "T123",
		"event_id": "Ev001",
		"event": {"type":"message","user":"U7","text":"hi","ts":"100.2","thread_ts":"100.1","channel":"C9"}
	}`)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, slackRequest("/slack/events", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(f.queue.events) != 1 {
		t.Fatalf("expected 1 enqueued event, got %d", len(f.queue.events))
	}
	ev := f.queue.events[0]
	if ev.AccountID != "acc_1" || ev.EventID != "Ev001" || ev.ThreadAnchor != "100.1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestSlackEventUnknownWorkspaceOverAcks(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"type":"event_callback","team_id":"TNOPE","event":{"type":"message","ts":"1.0"}}`)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, slackRequest("/slack/events", body))

	if w.Code != http.StatusOK {
		t.Fatalf("unknown workspace must still 200, got %d", w.Code)
	}
	if len(f.queue.events) != 0 {
		t.Fatalf("unknown workspace must not enqueue")
	}
}

func TestSlackInteractiveTogglesStatus(t *testing.T) {
	f := newFixture(t)
	payload := `{
		"type": "block_actions",
		"team": {"id": "T123"},
		"channel": {"id": "C9"},
		"message": {"ts": "100.5"},
		"actions": [{"action_id": "toggle_status", "value": "ticket:tkt_1"}]
	}`
	form := url.Values{"payload": {payload}}
	body := []byte(form.Encode())

	req := slackRequest("/slack/interactive", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(f.toggles.updates) != 1 || f.toggles.updates[0] != store.TicketResolved {
		t.Fatalf("expected resolved toggle, got %v", f.toggles.updates)
	}
}

func discordRequest(f *fixture, body []byte, signed bool) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/discord/events", bytes.NewReader(body))
	if signed {
		ts := strconv.FormatInt(fixedNow.Unix(), 10)
		sig := ed25519.Sign(f.priv, append([]byte(ts), body...))
		req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(sig))
		req.Header.Set("X-Signature-Timestamp", ts)
	}
	return req
}

func TestDiscordPingEchoesExactBody(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, discordRequest(f, []byte(`{"type":1}`), true))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != `{"type":1}` {
		t.Fatalf("ping response must be exactly {\"type\":1}, got %q", w.Body.String())
	}
	if len(f.queue.events) != 0 {
		t.Fatalf("ping must not enqueue")
	}
}

func TestDiscordRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"type":1}`)
	req := httptest.NewRequest(http.MethodPost, "/discord/events", bytes.NewReader(body))
	req.Header.Set("X-Signature-Ed25519", "deadbeef")
	req.Header.Set("X-Signature-Timestamp", "1")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestDiscordComponentRequiresSignature(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"type":3,"guild_id":"G1","data":{"custom_id":"ticket:tkt_1"}}`)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, discordRequest(f, body, false))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned component, got %d", w.Code)
	}
}

func TestDiscordComponentAcksWithDeferredUpdate(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{
		"type": 3,
		"guild_id": "G1",
		"channel_id": "C1",
		"message": {"id": "M1"},
		"data": {"custom_id": "ticket:tkt_1"}
	}`)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, discordRequest(f, body, true))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != `{"type":6}` {
		t.Fatalf("expected deferred-update ack, got %q", w.Body.String())
	}
}

func TestDiscordMessageCreateDispatched(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{
		"t": "MESSAGE_CREATE",
		"d": {
			"id": "900",
			"channel_id": "C1",
			"guild_id": "G1",
			"content": "thanks",
			"timestamp": "2024-09-14T11:12:25Z",
			"author": {"id": "U5", "username": "dana"},
			"message_reference": {"message_id": "800", "channel_id": "C1"}
		}
	}`)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, discordRequest(f, body, false))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(f.queue.events) != 1 {
		t.Fatalf("expected 1 enqueued event, got %d", len(f.queue.events))
	}
	if f.queue.events[0].AccountID != "acc_2" {
		t.Fatalf("unexpected account %q", f.queue.events[0].AccountID)
	}
}

func TestTelegramWebhookDispatched(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{
		"update_id": 5001,
		"message": {
			"message_id": 42,
			"message_thread_id": 17,
			"date": 1726312345,
			"text": "hello",
			"from": {"id": 9, "first_name": "Dana"},
			"chat": {"id": -100123, "type": "supergroup"}
		}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(f.queue.events) != 1 {
		t.Fatalf("expected 1 enqueued event, got %d", len(f.queue.events))
	}
	if f.queue.events[0].AccountID != "acc_3" {
		t.Fatalf("unexpected account %q", f.queue.events[0].AccountID)
	}
}

func TestTelegramUnknownChatOverAcks(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"update_id":1,"message":{"message_id":1,"date":1,"chat":{"id":555}}}`)
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("unknown chat must still 200, got %d", w.Code)
	}
	if len(f.queue.events) != 0 {
		t.Fatalf("unknown chat must not enqueue")
	}
}
