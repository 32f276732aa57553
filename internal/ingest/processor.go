// Package ingest holds the decision-and-effect pipeline for inbound platform
// events: validate shape, deduplicate, resolve the ticket, persist the
// message, and hand the result to webhook fan-out.
package ingest

import (
	"context"
	"errors"
	"log/slog"

	"deskbridge/internal/domain"
	"deskbridge/internal/namecache"
	"deskbridge/internal/observability"
	"deskbridge/internal/platform"
	"deskbridge/internal/store"
	"deskbridge/internal/util"
)

type Store interface {
	GetInstallation(ctx context.Context, accountID, platformName string) (store.Installation, bool, error)
	ResolveTicket(ctx context.Context, q store.ResolveTicketQuery) (store.Ticket, bool, error)
	IsDuplicateEvent(ctx context.Context, accountID, eventID string) (bool, error)
	InsertMessageWithDedup(ctx context.Context, in store.MessageInsert) error
}

// AdapterFactory binds an installation's credentials to its platform adapter.
type AdapterFactory func(in store.Installation) (platform.Adapter, error)

type Emitter interface {
	EmitMessageCreated(ctx context.Context, ev domain.MessageCreatedEvent) error
	EmitTicketUpdated(ctx context.Context, ev domain.TicketUpdatedEvent) error
}

// Processor runs the ordered pipeline over one canonical event. Short-circuit
// results are benign skips, never errors: the queue acks them without retry.
type Processor struct {
	Store    Store
	Adapters AdapterFactory
	Names    *namecache.Cache
	Emitter  Emitter
	IDGen    func() string

	// AllowedSubtypes is the subtype allow-list; nil means the default of
	// plain messages plus bot_message (legitimate agent relays arrive with
	// that subtype).
	AllowedSubtypes map[string]bool
}

var defaultSubtypes = map[string]bool{"": true, "bot_message": true}

func (p *Processor) allowed(subtype string) bool {
	if p.AllowedSubtypes == nil {
		return defaultSubtypes[subtype]
	}
	return p.AllowedSubtypes[subtype]
}

func (p *Processor) idgen() string {
	if p.IDGen != nil {
		return p.IDGen()
	}
	return util.NewMessageID()
}

// Process applies the pipeline steps in strict order. Returned errors are
// transient (store or emit trouble) and mean the job should be retried; every
// business outcome is a Result.
func (p *Processor) Process(ctx context.Context, ev domain.CanonicalEvent) (domain.Result, error) {
	res, err := p.process(ctx, ev)
	switch {
	case err != nil:
		observability.IngestEvents.WithLabelValues(ev.Platform, "error").Inc()
	default:
		observability.IngestEvents.WithLabelValues(ev.Platform, string(res.Outcome)).Inc()
	}
	return res, err
}

func (p *Processor) process(ctx context.Context, ev domain.CanonicalEvent) (domain.Result, error) {
	if err := ev.Validate(); err != nil {
		return domain.Result{}, err
	}

	// 1. Structural filter.
	if !ev.IsMessage {
		return domain.Skipped(domain.SkipNotAMessage), nil
	}
	if !p.allowed(ev.Subtype) {
		return domain.Skipped(domain.SkipSubtype(ev.Subtype)), nil
	}

	// 2. Threading filter: a top-level post is never a visitor-directed reply.
	if ev.ThreadAnchor == "" || ev.ThreadAnchor == ev.RootID {
		return domain.Skipped(domain.SkipNotThreadReply), nil
	}

	// 3. Advisory dedup check. Fast path only; the insert below is the
	// guarantee.
	if dup, err := p.Store.IsDuplicateEvent(ctx, ev.AccountID, ev.EventID); err != nil {
		return domain.Result{}, err
	} else if dup {
		return domain.Skipped(domain.SkipDuplicate), nil
	}

	// 4. Ticket resolution, scoped by tenant and installation workspace.
	in, found, err := p.Store.GetInstallation(ctx, ev.AccountID, ev.Platform)
	if err != nil {
		return domain.Result{}, err
	}
	if !found || in.ExternalID != ev.ExternalID {
		return domain.Skipped(domain.SkipNoTicket), nil
	}
	ticket, found, err := p.Store.ResolveTicket(ctx, store.ResolveTicketQuery{
		AccountID:  ev.AccountID,
		Platform:   ev.Platform,
		ExternalID: ev.ExternalID,
		Anchor:     ev.ThreadAnchor,
	})
	if err != nil {
		return domain.Result{}, err
	}
	if !found {
		return domain.Skipped(domain.SkipNoTicket), nil
	}

	// 5. Self-message filter: our own posts echo back as events.
	if ev.BotMarker || (in.BotUserID != "" && ev.SenderID == in.BotUserID) {
		return domain.Skipped(domain.SkipOwnBot), nil
	}

	// 6. Display-name enrichment. Best effort; never aborts the pipeline.
	senderName := p.senderName(ctx, ev, in)

	// 7+8. Message persistence and dedup marking, atomically. The dedup
	// primary key is the authoritative duplicate signal under concurrent
	// delivery of the same event.
	msgID := p.idgen()
	err = p.Store.InsertMessageWithDedup(ctx, store.MessageInsert{
		ID:         msgID,
		TicketID:   ticket.ID,
		AccountID:  ev.AccountID,
		EventID:    ev.EventID,
		Source:     ev.Platform,
		Text:       ev.Text,
		PlatformTS: ev.RootID,
		SenderID:   ev.SenderID,
		SenderName: senderName,
		RawPayload: ev.RawPayload,
		Now:        util.NowUTC(),
	})
	if errors.Is(err, store.ErrDuplicateEvent) {
		return domain.Skipped(domain.SkipDuplicate), nil
	}
	if err != nil {
		return domain.Result{}, err
	}

	// 9. Fan out. The fan-out persists delivery rows before enqueueing, so a
	// failure here is visible in the delivery log; it must not fail the job,
	// or the redrive would hit the dedup marker and the event would be lost
	// for good.
	if p.Emitter != nil {
		if err := p.Emitter.EmitMessageCreated(ctx, domain.MessageCreatedEvent{
			TicketID:         ticket.ID,
			AccountID:        ev.AccountID,
			MessageID:        msgID,
			Source:           ev.Platform,
			Text:             ev.Text,
			PlatformUserID:   ev.SenderID,
			PlatformUserName: senderName,
		}); err != nil {
			slog.Error("emit message.created failed",
				"err", err, "account_id", ev.AccountID, "message_id", msgID)
		}
	}

	return domain.Processed(msgID), nil
}

func (p *Processor) senderName(ctx context.Context, ev domain.CanonicalEvent, in store.Installation) string {
	if ev.SenderName != "" {
		return ev.SenderName
	}
	if name, ok := p.Names.Get(ctx, ev.AccountID, ev.Platform, ev.SenderID); ok {
		return name
	}
	if p.Adapters == nil {
		return ev.SenderID
	}
	adapter, err := p.Adapters(in)
	if err != nil {
		slog.Warn("no adapter for sender lookup", "err", err, "platform", ev.Platform)
		return ev.SenderID
	}

	ref := ev.SenderID
	if ev.Platform == domain.PlatformTelegram {
		// Bot API member lookups are chat-scoped.
		ref = ev.ExternalID + "/" + ev.SenderID
	}
	name, err := adapter.FetchSenderName(ctx, ref)
	if err != nil || name == "" {
		if err != nil {
			slog.Warn("sender name lookup failed", "err", err,
				"platform", ev.Platform, "sender_id", ev.SenderID)
		}
		return ev.SenderID
	}
	p.Names.Set(ctx, ev.AccountID, ev.Platform, ev.SenderID, name)
	return name
}
