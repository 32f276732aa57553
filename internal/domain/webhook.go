package domain

import "time"

// Domain event types fanned out to tenant webhook endpoints.
const (
	EventMessageCreated = "message.created"
	EventTicketUpdated  = "ticket.updated"
)

type MessageCreatedEvent struct {
	TicketID         string `json:"ticketId"`
	AccountID        string `json:"accountId"`
	MessageID        string `json:"messageId"`
	Source           string `json:"source"`
	Text             string `json:"text"`
	PlatformUserID   string `json:"platformUserId"`
	PlatformUserName string `json:"platformUserName"`
}

type TicketUpdatedEvent struct {
	TicketID  string `json:"ticketId"`
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
}

// Envelope wraps a domain event for delivery. The raw JSON encoding of the
// envelope is what gets signed. CorrelationID lets tenants tie retries of one
// logical event together.
type Envelope struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlationId"`
	Type          string    `json:"type"`
	AccountID     string    `json:"accountId"`
	OccurredAt    time.Time `json:"occurredAt"`
	Data          any       `json:"data"`
}
