package telegram

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deskbridge/internal/domain"
)

// Update is the Bot API webhook push. Only message updates matter to the
// pipeline; everything else parses to a non-message canonical event.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID       int64  `json:"message_id"`
	MessageThreadID int64  `json:"message_thread_id"`
	IsTopicMessage  bool   `json:"is_topic_message"`
	Date            int64  `json:"date"`
	Text            string `json:"text"`
	From            *User  `json:"from"`
	Chat            Chat   `json:"chat"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

func ParseUpdate(raw []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return Update{}, fmt.Errorf("parse telegram update: %w", err)
	}
	return u, nil
}

// ToCanonical translates an update into the processor's shape. Anchors are
// "chat/topic" pairs; a message outside a forum topic carries no anchor. The
// topic-opening message has message_thread_id equal to its own message_id, so
// the generic anchor==root filter catches topic roots.
func ToCanonical(u Update, raw []byte) domain.CanonicalEvent {
	if u.Message == nil {
		return domain.CanonicalEvent{
			Platform:   domain.PlatformTelegram,
			EventID:    strconv.FormatInt(u.UpdateID, 10),
			RawPayload: raw,
		}
	}
	m := u.Message
	chatID := strconv.FormatInt(m.Chat.ID, 10)

	anchor := ""
	if m.MessageThreadID != 0 {
		anchor = chatID + "/" + strconv.FormatInt(m.MessageThreadID, 10)
	}

	ev := domain.CanonicalEvent{
		Platform:     domain.PlatformTelegram,
		EventID:      strconv.FormatInt(u.UpdateID, 10),
		ExternalID:   chatID,
		ThreadAnchor: anchor,
		RootID:       chatID + "/" + strconv.FormatInt(m.MessageID, 10),
		Text:         m.Text,
		IsMessage:    true,
		Timestamp:    time.Unix(m.Date, 0).UTC(),
		RawPayload:   raw,
	}
	if m.From != nil {
		ev.SenderID = strconv.FormatInt(m.From.ID, 10)
		ev.SenderName = displayName(*m.From)
		ev.BotMarker = m.From.IsBot
	}
	return ev
}

func displayName(u User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.Username
}
