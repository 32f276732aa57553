package slack

import (
	"testing"
	"time"

	"deskbridge/internal/domain"
)

func TestToCanonicalThreadReply(t *testing.T) {
	raw := []byte(`{
		"type": "event_callback",
		"team_id": "T123",
		"event_id": "Ev001",
		"event": {
			"type": "message",
			"user": "U777",
			"text": "any update?",
			"ts": "1726312345.000200",
			"thread_ts": "1726312000.000100",
			"channel": "C9"
		}
	}`)
	cb, err := ParseCallback(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.Type != TypeEventCallback {
		t.Fatalf("expected event_callback, got %s", cb.Type)
	}

	ev := ToCanonical(cb, raw)
	if ev.Platform != domain.PlatformSlack || ev.EventID != "Ev001" || ev.ExternalID != "T123" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.ThreadAnchor != "1726312000.000100" || ev.RootID != "1726312345.000200" {
		t.Fatalf("unexpected threading %+v", ev)
	}
	if !ev.IsMessage || ev.BotMarker {
		t.Fatalf("unexpected flags %+v", ev)
	}
	want := time.Date(2024, 9, 14, 11, 12, 25, 200000, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Fatalf("expected %v, got %v", want, ev.Timestamp)
	}
}

func TestToCanonicalEventIDFallsBackToTS(t *testing.T) {
	cb := Callback{Type: TypeEventCallback, TeamID: "T123", Event: InnerEvent{Type: "message", TS: "100.2"}}
	ev := ToCanonical(cb, nil)
	if ev.EventID != "100.2" {
		t.Fatalf("expected ts fallback, got %q", ev.EventID)
	}
}

func TestToCanonicalBotMessage(t *testing.T) {
	cb := Callback{Type: TypeEventCallback, Event: InnerEvent{Type: "message", BotID: "B42", TS: "1.0"}}
	if ev := ToCanonical(cb, nil); !ev.BotMarker {
		t.Fatalf("bot_id must mark the sender as a bot")
	}
}

func TestParseInteractionTicketID(t *testing.T) {
	in, err := ParseInteraction([]byte(`{
		"type": "block_actions",
		"team": {"id": "T123"},
		"channel": {"id": "C9"},
		"message": {"ts": "100.5"},
		"actions": [
			{"action_id": "other", "value": "noise"},
			{"action_id": "toggle_status", "value": "ticket:tkt_42"}
		]
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if in.TicketID() != "tkt_42" {
		t.Fatalf("expected tkt_42, got %q", in.TicketID())
	}

	in.Actions = nil
	if in.TicketID() != "" {
		t.Fatalf("expected empty ticket id without actions")
	}
}

func TestTsToTime(t *testing.T) {
	if got := tsToTime("1726312345.000200"); got.Unix() != 1726312345 || got.Nanosecond() != 200000 {
		t.Fatalf("unexpected time %v", got)
	}
	if got := tsToTime("1726312345"); got.Unix() != 1726312345 {
		t.Fatalf("unexpected time %v", got)
	}
	if !tsToTime("garbage").IsZero() {
		t.Fatalf("garbage must yield zero time")
	}
}
