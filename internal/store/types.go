package store

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrDuplicateEvent is the authoritative duplicate signal: the event_dedup
// primary key rejected the insert, so this (account, event) pair has already
// produced a message.
var ErrDuplicateEvent = errors.New("duplicate event")

// Ticket lifecycle states. The pipeline only ever toggles open <-> resolved;
// pending/closed are set by the dashboard.
const (
	TicketOpen     = "OPEN"
	TicketPending  = "PENDING"
	TicketResolved = "RESOLVED"
	TicketClosed   = "CLOSED"
)

type Installation struct {
	ID          string
	AccountID   string
	Platform    string
	ExternalID  string // team / guild / chat identifier
	BotUserID   string
	AccessToken string
	InstalledAt time.Time
}

type Ticket struct {
	ID        string
	AccountID string
	Status    string

	// Exactly one anchor set is populated, keyed by the active platform.
	SlackThreadTS    string
	DiscordChannelID string
	DiscordMessageID string
	TelegramChatID   string
	TelegramTopicID  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResolveTicketQuery identifies the unique ticket a thread reply belongs to.
// Anchor carries the platform-native encoding ("ts" for Slack,
// "channel/message" for Discord, "chat/topic" for Telegram).
type ResolveTicketQuery struct {
	AccountID  string
	Platform   string
	ExternalID string
	Anchor     string
}

type MessageInsert struct {
	ID         string
	TicketID   string
	AccountID  string
	EventID    string // platform event id; dedup key together with AccountID
	Source     string
	Text       string
	PlatformTS string
	SenderID   string
	SenderName string
	RawPayload json.RawMessage
	Now        time.Time
}

type WebhookEndpoint struct {
	ID        string
	AccountID string
	URL       string
	Secret    string
	Enabled   bool
}

// Webhook delivery states. A delivery is immutable once delivered or failed.
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

type DeliveryInsert struct {
	ID         string
	EndpointID string
	AccountID  string
	EventType  string
	URL        string
	Payload    []byte
	Now        time.Time
}

type DeliveryAttempt struct {
	DeliveryID string
	Attempt    int
	StatusCode int
	Error      string
	OccurredAt time.Time
}

type DeliveryStateUpdate struct {
	ID         string
	State      string
	Attempts   int
	LastStatus int
	LastError  string
	Now        time.Time
}

type DeadLetter struct {
	ID        string
	AccountID string
	Platform  string
	Payload   json.RawMessage
	Error     string
	Now       time.Time
}
