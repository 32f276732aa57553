package discord

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"deskbridge/internal/domain"
)

func TestVerifySignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pubHex := hex.EncodeToString(pub)

	ts := "1726312345"
	body := []byte(`{"type":1}`)
	sig := ed25519.Sign(priv, append([]byte(ts), body...))
	sigHex := hex.EncodeToString(sig)

	if !VerifySignature(pubHex, ts, body, sigHex) {
		t.Fatalf("valid signature rejected")
	}
	if VerifySignature(pubHex, "1726312346", body, sigHex) {
		t.Fatalf("different timestamp accepted")
	}
	if VerifySignature(pubHex, ts, []byte(`{"type":2}`), sigHex) {
		t.Fatalf("tampered body accepted")
	}
	if VerifySignature("zz", ts, body, sigHex) {
		t.Fatalf("bad public key accepted")
	}
	if VerifySignature(pubHex, ts, body, "zz") {
		t.Fatalf("bad signature encoding accepted")
	}
}

func TestParsePayloadPing(t *testing.T) {
	p, err := ParsePayload([]byte(`{"type":1}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Type != InteractionPing {
		t.Fatalf("expected ping, got %d", p.Type)
	}
}

func TestPayloadTicketID(t *testing.T) {
	p, err := ParsePayload([]byte(`{
		"type": 3,
		"guild_id": "G1",
		"channel_id": "C1",
		"message": {"id": "M1"},
		"data": {"custom_id": "ticket:tkt_7"}
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.TicketID() != "tkt_7" {
		t.Fatalf("expected tkt_7, got %q", p.TicketID())
	}

	p.Data.CustomID = "unrelated"
	if p.TicketID() != "" {
		t.Fatalf("expected empty ticket id")
	}
}

func TestToCanonicalMessageCreateReply(t *testing.T) {
	raw := []byte(`{
		"t": "MESSAGE_CREATE",
		"d": {
			"id": "900",
			"channel_id": "C1",
			"guild_id": "G1",
			"content": "thanks, fixed",
			"timestamp": "2024-09-14T11:12:25Z",
			"author": {"id": "U5", "username": "dana", "bot": false},
			"message_reference": {"message_id": "800", "channel_id": "C1"}
		}
	}`)
	p, err := ParsePayload(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ev, err := ToCanonical(p, raw)
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if ev.Platform != domain.PlatformDiscord || ev.EventID != "900" || ev.ExternalID != "G1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.ThreadAnchor != "C1/800" || ev.RootID != "C1/900" {
		t.Fatalf("unexpected threading %+v", ev)
	}
	if ev.SenderID != "U5" || ev.SenderName != "dana" || ev.BotMarker {
		t.Fatalf("unexpected sender %+v", ev)
	}
	if !ev.IsMessage || ev.Timestamp.Unix() != 1726312345 {
		t.Fatalf("unexpected flags %+v", ev)
	}
}

func TestToCanonicalTopLevelMessageHasNoAnchor(t *testing.T) {
	raw := []byte(`{
		"t": "MESSAGE_CREATE",
		"d": {
			"id": "901",
			"channel_id": "C1",
			"guild_id": "G1",
			"content": "hello",
			"timestamp": "2024-09-14T11:12:25Z",
			"author": {"id": "U5", "username": "dana"}
		}
	}`)
	p, _ := ParsePayload(raw)
	ev, err := ToCanonical(p, raw)
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if ev.ThreadAnchor != "" {
		t.Fatalf("top-level post must carry no anchor, got %q", ev.ThreadAnchor)
	}
}

func TestToCanonicalBotAuthor(t *testing.T) {
	raw := []byte(`{
		"t": "MESSAGE_CREATE",
		"d": {
			"id": "902",
			"channel_id": "C1",
			"guild_id": "G1",
			"author": {"id": "UB", "username": "bridge", "bot": true},
			"message_reference": {"message_id": "800"}
		}
	}`)
	p, _ := ParsePayload(raw)
	ev, err := ToCanonical(p, raw)
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if !ev.BotMarker {
		t.Fatalf("bot author must set the bot marker")
	}
	// Reference without a channel falls back to the message's own channel.
	if ev.ThreadAnchor != "C1/800" {
		t.Fatalf("unexpected anchor %q", ev.ThreadAnchor)
	}
}
