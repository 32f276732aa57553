package discord

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"deskbridge/internal/domain"
)

// Interaction types on the Interactions endpoint.
const (
	InteractionPing      = 1
	InteractionComponent = 3
)

// Payload is the union shape arriving at /discord/events: either an
// interaction (Type set) or a forwarded gateway event (T set).
type Payload struct {
	Type    int             `json:"type"`
	T       string          `json:"t"`
	GuildID string          `json:"guild_id"`
	D       json.RawMessage `json:"d"`

	ChannelID string `json:"channel_id"`
	Message   struct {
		ID string `json:"id"`
	} `json:"message"`
	Data struct {
		CustomID string `json:"custom_id"`
	} `json:"data"`
	Member struct {
		User User `json:"user"`
	} `json:"member"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

// GatewayMessage is the MESSAGE_CREATE payload under "d".
type GatewayMessage struct {
	ID               string `json:"id"`
	ChannelID        string `json:"channel_id"`
	GuildID          string `json:"guild_id"`
	Content          string `json:"content"`
	Timestamp        string `json:"timestamp"`
	Author           User   `json:"author"`
	MessageReference *struct {
		MessageID string `json:"message_id"`
		ChannelID string `json:"channel_id"`
	} `json:"message_reference"`
}

const EventMessageCreate = "MESSAGE_CREATE"

func ParsePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("parse discord payload: %w", err)
	}
	return p, nil
}

// TicketID extracts the ticket id our bot embedded in the component custom_id.
func (p Payload) TicketID() string {
	if strings.HasPrefix(p.Data.CustomID, "ticket:") {
		return strings.TrimPrefix(p.Data.CustomID, "ticket:")
	}
	return ""
}

// ToCanonical translates a forwarded MESSAGE_CREATE into the processor's
// shape. Anchors are "channel/message" pairs; a message without a reply
// reference carries no anchor and is filtered as a top-level post.
func ToCanonical(p Payload, raw []byte) (domain.CanonicalEvent, error) {
	if p.T != EventMessageCreate {
		return domain.CanonicalEvent{Platform: domain.PlatformDiscord, RawPayload: raw}, nil
	}
	var m GatewayMessage
	if err := json.Unmarshal(p.D, &m); err != nil {
		return domain.CanonicalEvent{}, fmt.Errorf("parse discord message: %w", err)
	}
	guildID := m.GuildID
	if guildID == "" {
		guildID = p.GuildID
	}

	anchor := ""
	if ref := m.MessageReference; ref != nil && ref.MessageID != "" {
		ch := ref.ChannelID
		if ch == "" {
			ch = m.ChannelID
		}
		anchor = ch + "/" + ref.MessageID
	}

	ts, _ := time.Parse(time.RFC3339, m.Timestamp)
	return domain.CanonicalEvent{
		Platform:     domain.PlatformDiscord,
		EventID:      m.ID,
		ExternalID:   guildID,
		ThreadAnchor: anchor,
		RootID:       m.ChannelID + "/" + m.ID,
		SenderID:     m.Author.ID,
		SenderName:   m.Author.Username,
		BotMarker:    m.Author.Bot,
		Text:         m.Content,
		IsMessage:    true,
		Timestamp:    ts.UTC(),
		RawPayload:   raw,
	}, nil
}
