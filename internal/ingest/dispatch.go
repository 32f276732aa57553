package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"deskbridge/internal/domain"
	"deskbridge/internal/observability"
	"deskbridge/internal/store"
	"deskbridge/internal/util"
)

// ExecutionMode is decided once at startup from config, not sniffed from the
// process environment per request. Queued needs a persistent worker process
// polling the queue; serverless hosts tear the handler down after responding,
// so there inline is the only mode that does not silently drop work.
type ExecutionMode int

const (
	ModeQueued ExecutionMode = iota
	ModeInline
)

func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "queued":
		return ModeQueued, nil
	case "inline":
		return ModeInline, nil
	}
	return ModeQueued, fmt.Errorf("unknown execution mode %q", s)
}

func (m ExecutionMode) String() string {
	if m == ModeInline {
		return "inline"
	}
	return "queued"
}

type EventQueue interface {
	EnqueueEvent(ctx context.Context, ev domain.CanonicalEvent) error
}

type DeadLetterStore interface {
	InsertDeadLetter(ctx context.Context, in store.DeadLetter) error
}

// Dispatcher routes a verified canonical event into the processor, inline or
// via the queue. Failures never reach the platform response. Inline failures
// and enqueue failures are parked as dead letters rather than only logged, so
// they keep a replay path.
type Dispatcher struct {
	Mode        ExecutionMode
	Processor   *Processor
	Queue       EventQueue
	DeadLetters DeadLetterStore
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.CanonicalEvent) {
	switch d.Mode {
	case ModeInline:
		res, err := d.Processor.Process(ctx, ev)
		if err != nil {
			slog.Error("inline processing failed", "err", err,
				"platform", ev.Platform, "event_id", ev.EventID)
			d.park(ctx, ev, err)
			return
		}
		if res.Outcome == domain.OutcomeSkipped {
			slog.Info("event skipped", "platform", ev.Platform,
				"event_id", ev.EventID, "reason", res.Reason)
		}
	default:
		if err := d.Queue.EnqueueEvent(ctx, ev); err != nil {
			observability.Enqueues.WithLabelValues("events", "error").Inc()
			slog.Error("event enqueue failed", "err", err,
				"platform", ev.Platform, "event_id", ev.EventID)
			d.park(ctx, ev, err)
			return
		}
		observability.Enqueues.WithLabelValues("events", "ok").Inc()
	}
}

func (d *Dispatcher) park(ctx context.Context, ev domain.CanonicalEvent, cause error) {
	if d.DeadLetters == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("dead letter marshal failed", "err", err, "event_id", ev.EventID)
		return
	}
	observability.DeadLetters.WithLabelValues(ev.Platform).Inc()
	if err := d.DeadLetters.InsertDeadLetter(ctx, store.DeadLetter{
		ID:        util.NewDeadLetterID(),
		AccountID: ev.AccountID,
		Platform:  ev.Platform,
		Payload:   payload,
		Error:     cause.Error(),
		Now:       util.NowUTC(),
	}); err != nil {
		slog.Error("dead letter insert failed", "err", err, "event_id", ev.EventID)
	}
}
