package slack

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deskbridge/internal/domain"
)

// Callback is the top-level Events API envelope.
type Callback struct {
	Type      string     `json:"type"`
	TeamID    string     `json:"team_id"`
	Challenge string     `json:"challenge"`
	EventID   string     `json:"event_id"`
	Event     InnerEvent `json:"event"`
}

type InnerEvent struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype"`
	User     string `json:"user"`
	BotID    string `json:"bot_id"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
	Channel  string `json:"channel"`
}

const (
	TypeURLVerification = "url_verification"
	TypeEventCallback   = "event_callback"
)

// ParseCallback decodes the envelope without interpreting the inner event.
func ParseCallback(raw []byte) (Callback, error) {
	var cb Callback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return Callback{}, fmt.Errorf("parse slack callback: %w", err)
	}
	return cb, nil
}

// ToCanonical translates an event_callback into the processor's shape. The
// event id falls back to the message timestamp when Slack omits it.
func ToCanonical(cb Callback, raw []byte) domain.CanonicalEvent {
	ev := cb.Event
	eventID := cb.EventID
	if eventID == "" {
		eventID = ev.TS
	}
	return domain.CanonicalEvent{
		Platform:     domain.PlatformSlack,
		EventID:      eventID,
		ExternalID:   cb.TeamID,
		ThreadAnchor: ev.ThreadTS,
		RootID:       ev.TS,
		SenderID:     ev.User,
		BotMarker:    ev.BotID != "",
		Text:         ev.Text,
		Subtype:      ev.Subtype,
		IsMessage:    ev.Type == "message",
		Timestamp:    tsToTime(ev.TS),
		RawPayload:   raw,
	}
}

// Interaction is the form-posted payload for block actions (button clicks).
type Interaction struct {
	Type string `json:"type"`
	Team struct {
		ID string `json:"id"`
	} `json:"team"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Message struct {
		TS string `json:"ts"`
	} `json:"message"`
	Actions []Action `json:"actions"`
}

type Action struct {
	ActionID string `json:"action_id"`
	Value    string `json:"value"`
}

func ParseInteraction(payload []byte) (Interaction, error) {
	var in Interaction
	if err := json.Unmarshal(payload, &in); err != nil {
		return Interaction{}, fmt.Errorf("parse slack interaction: %w", err)
	}
	return in, nil
}

// TicketID extracts the ticket id our bot embedded in the action value.
func (in Interaction) TicketID() string {
	for _, a := range in.Actions {
		if strings.HasPrefix(a.Value, "ticket:") {
			return strings.TrimPrefix(a.Value, "ticket:")
		}
	}
	return ""
}

// tsToTime parses Slack's "1726312345.000200" second.micros timestamps.
func tsToTime(ts string) time.Time {
	sec, frac, _ := strings.Cut(ts, ".")
	s, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var micros int64
	if frac != "" {
		micros, _ = strconv.ParseInt(frac, 10, 64)
	}
	return time.Unix(s, micros*int64(time.Microsecond)).UTC()
}
