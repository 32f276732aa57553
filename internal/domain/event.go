package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// Platform names double as Message.Source values for agent replies.
const (
	PlatformSlack    = "slack"
	PlatformDiscord  = "discord"
	PlatformTelegram = "telegram"
)

// CanonicalEvent is the platform-agnostic shape produced by an adapter and
// consumed by the processor. EventID is the platform's delivery identifier
// and, together with the account, the idempotency key.
type CanonicalEvent struct {
	Platform   string `json:"platform"`
	EventID    string `json:"eventId"`
	AccountID  string `json:"accountId"`
	ExternalID string `json:"externalId"` // team/guild/chat id the event arrived from

	// ThreadAnchor ties a reply to its originating conversation. RootID is the
	// event's own message id/timestamp; a message whose anchor equals its own
	// RootID (or carries no anchor) is a top-level post, not a reply.
	ThreadAnchor string `json:"threadAnchor"`
	RootID       string `json:"rootId"`

	SenderID string `json:"senderId"`
	// SenderName is a best-effort hint from the wire payload (Telegram carries
	// it inline); when empty the processor asks the adapter.
	SenderName string `json:"senderName,omitempty"`
	BotMarker  bool   `json:"botMarker"` // platform flagged the sender as a bot
	Text       string `json:"text"`
	Subtype    string `json:"subtype,omitempty"`
	IsMessage  bool   `json:"isMessage"` // false for non-message event shapes

	Timestamp  time.Time       `json:"timestamp"`
	RawPayload json.RawMessage `json:"rawPayload,omitempty"`
}

func (e CanonicalEvent) Validate() error {
	if e.Platform == "" || e.EventID == "" || e.AccountID == "" {
		return ErrMissingFields
	}
	return nil
}

var ErrMissingFields = errors.New("missing required fields")

// Skip reasons reported by the processor. Benign: logged, never retried.
const (
	SkipNotAMessage    = "not a message event"
	SkipNotThreadReply = "not a thread reply"
	SkipDuplicate      = "duplicate event"
	SkipNoTicket       = "no matching ticket"
	SkipOwnBot         = "message from our bot"
)

// SkipSubtype echoes the offending subtype verbatim in the skip reason.
func SkipSubtype(subtype string) string {
	return "skipping subtype: " + subtype
}

type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
)

// Result is the processor's answer for one canonical event.
type Result struct {
	Outcome   Outcome
	MessageID string // set when processed
	Reason    string // set when skipped
}

func Processed(messageID string) Result {
	return Result{Outcome: OutcomeProcessed, MessageID: messageID}
}

func Skipped(reason string) Result {
	return Result{Outcome: OutcomeSkipped, Reason: reason}
}
