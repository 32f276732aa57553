package telegram

import (
	"testing"

	"deskbridge/internal/domain"
)

func TestToCanonicalTopicReply(t *testing.T) {
	raw := []byte(`{
		"update_id": 5001,
		"message": {
			"message_id": 42,
			"message_thread_id": 17,
			"is_topic_message": true,
			"date": 1726312345,
			"text": "it works now",
			"from": {"id": 9, "is_bot": false, "first_name": "Dana", "last_name": "K"},
			"chat": {"id": -100123, "type": "supergroup"}
		}
	}`)
	u, err := ParseUpdate(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ev := ToCanonical(u, raw)
	if ev.Platform != domain.PlatformTelegram || ev.EventID != "5001" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.ExternalID != "-100123" {
		t.Fatalf("unexpected chat id %q", ev.ExternalID)
	}
	if ev.ThreadAnchor != "-100123/17" || ev.RootID != "-100123/42" {
		t.Fatalf("unexpected threading %+v", ev)
	}
	if ev.SenderID != "9" || ev.SenderName != "Dana K" || ev.BotMarker {
		t.Fatalf("unexpected sender %+v", ev)
	}
	if ev.Timestamp.Unix() != 1726312345 {
		t.Fatalf("unexpected time %v", ev.Timestamp)
	}
}

func TestToCanonicalTopicRootAnchorsItself(t *testing.T) {
	// The message opening a topic carries its own id as the thread id.
	raw := []byte(`{
		"update_id": 5002,
		"message": {
			"message_id": 17,
			"message_thread_id": 17,
			"date": 1726312345,
			"text": "new topic",
			"chat": {"id": -100123, "type": "supergroup"}
		}
	}`)
	u, _ := ParseUpdate(raw)
	ev := ToCanonical(u, raw)
	if ev.ThreadAnchor != ev.RootID {
		t.Fatalf("topic root must anchor itself: %q vs %q", ev.ThreadAnchor, ev.RootID)
	}
}

func TestToCanonicalPlainGroupMessage(t *testing.T) {
	raw := []byte(`{
		"update_id": 5003,
		"message": {
			"message_id": 50,
			"date": 1726312345,
			"text": "hello",
			"from": {"id": 9, "username": "dana9"},
			"chat": {"id": -100123, "type": "group"}
		}
	}`)
	u, _ := ParseUpdate(raw)
	ev := ToCanonical(u, raw)
	if ev.ThreadAnchor != "" {
		t.Fatalf("non-topic message must carry no anchor, got %q", ev.ThreadAnchor)
	}
	if ev.SenderName != "dana9" {
		t.Fatalf("expected username fallback, got %q", ev.SenderName)
	}
}

func TestToCanonicalNonMessageUpdate(t *testing.T) {
	u, err := ParseUpdate([]byte(`{"update_id": 5004}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ev := ToCanonical(u, nil)
	if ev.IsMessage {
		t.Fatalf("update without message must not be a message event")
	}
	if ev.EventID != "5004" {
		t.Fatalf("unexpected event id %q", ev.EventID)
	}
}

func TestDisplayName(t *testing.T) {
	if got := displayName(User{FirstName: "Dana"}); got != "Dana" {
		t.Fatalf("got %q", got)
	}
	if got := displayName(User{Username: "dana9"}); got != "dana9" {
		t.Fatalf("got %q", got)
	}
}
