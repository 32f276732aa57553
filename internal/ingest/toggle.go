package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"deskbridge/internal/domain"
	"deskbridge/internal/platform"
	"deskbridge/internal/store"
	"deskbridge/internal/util"
)

type ToggleStore interface {
	GetTicket(ctx context.Context, ticketID string) (store.Ticket, bool, error)
	GetInstallation(ctx context.Context, accountID, platformName string) (store.Installation, bool, error)
	UpdateTicketStatus(ctx context.Context, ticketID, status string, now time.Time) error
}

// StatusToggler flips a ticket between open and resolved from a button click
// in the chat platform. It always runs inline: platforms require a prompt
// interaction response regardless of the configured execution mode.
type StatusToggler struct {
	Store    ToggleStore
	Adapters AdapterFactory
	Emitter  Emitter
}

// Toggle validates the interaction against the ticket's installation,
// persists the flipped status, re-renders the originating platform message,
// and emits ticket.updated. The message re-render is best effort.
func (t *StatusToggler) Toggle(ctx context.Context, platformName, externalID, ticketID string, ref platform.MessageRef) (string, error) {
	ticket, found, err := t.Store.GetTicket(ctx, ticketID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("ticket %s not found", ticketID)
	}

	in, found, err := t.Store.GetInstallation(ctx, ticket.AccountID, platformName)
	if err != nil {
		return "", err
	}
	if !found || in.ExternalID != externalID {
		return "", fmt.Errorf("interaction for ticket %s from foreign workspace", ticketID)
	}

	next := store.TicketResolved
	if ticket.Status == store.TicketResolved {
		next = store.TicketOpen
	}
	if err := t.Store.UpdateTicketStatus(ctx, ticket.ID, next, util.NowUTC()); err != nil {
		return "", err
	}

	if t.Adapters != nil && ref.MessageID != "" {
		if adapter, err := t.Adapters(in); err == nil {
			if err := adapter.UpdateMessage(ctx, ref, statusText(next)); err != nil {
				slog.Warn("status re-render failed", "err", err,
					"platform", platformName, "ticket_id", ticket.ID)
			}
		}
	}

	if t.Emitter != nil {
		if err := t.Emitter.EmitTicketUpdated(ctx, domain.TicketUpdatedEvent{
			TicketID:  ticket.ID,
			AccountID: ticket.AccountID,
			Status:    next,
		}); err != nil {
			slog.Error("emit ticket.updated failed", "err", err, "ticket_id", ticket.ID)
		}
	}

	return next, nil
}

func statusText(status string) string {
	if status == store.TicketResolved {
		return "Ticket resolved. Reply in this thread to reopen it."
	}
	return "Ticket reopened."
}
