package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"deskbridge/internal/domain"
	sqsqueue "deskbridge/internal/queue/sqs"
	"deskbridge/internal/store"
	"deskbridge/internal/util"
)

type FanoutStore interface {
	ListWebhookEndpoints(ctx context.Context, accountID string) ([]store.WebhookEndpoint, error)
	InsertDelivery(ctx context.Context, in store.DeliveryInsert) error
}

type DeliveryQueue interface {
	Enqueue(ctx context.Context, job sqsqueue.DeliveryJob, delay time.Duration) error
}

// Fanout turns one domain event into one delivery series per enabled
// endpoint. The endpoint secret is snapshotted into the job at creation time:
// rotation affects subsequent deliveries only, never in-flight retries.
type Fanout struct {
	Store FanoutStore
	Queue DeliveryQueue
}

func (f *Fanout) EmitMessageCreated(ctx context.Context, ev domain.MessageCreatedEvent) error {
	return f.emit(ctx, ev.AccountID, domain.EventMessageCreated, ev)
}

func (f *Fanout) EmitTicketUpdated(ctx context.Context, ev domain.TicketUpdatedEvent) error {
	return f.emit(ctx, ev.AccountID, domain.EventTicketUpdated, ev)
}

func (f *Fanout) emit(ctx context.Context, accountID, eventType string, data any) error {
	endpoints, err := f.Store.ListWebhookEndpoints(ctx, accountID)
	if err != nil {
		return err
	}
	if len(endpoints) == 0 {
		return nil
	}

	envelope := domain.Envelope{
		ID:            uuid.NewString(),
		CorrelationID: uuid.NewString(),
		Type:          eventType,
		AccountID:     accountID,
		OccurredAt:    util.NowUTC(),
		Data:          data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	for _, ep := range endpoints {
		deliveryID := util.NewDeliveryID()
		if err := f.Store.InsertDelivery(ctx, store.DeliveryInsert{
			ID:         deliveryID,
			EndpointID: ep.ID,
			AccountID:  accountID,
			EventType:  eventType,
			URL:        ep.URL,
			Payload:    payload,
			Now:        util.NowUTC(),
		}); err != nil {
			return fmt.Errorf("insert delivery for endpoint %s: %w", ep.ID, err)
		}
		if err := f.Queue.Enqueue(ctx, sqsqueue.DeliveryJob{
			DeliveryID: deliveryID,
			AccountID:  accountID,
			URL:        ep.URL,
			Secret:     ep.Secret,
			Payload:    payload,
			Attempt:    1,
		}, Backoff(1)); err != nil {
			// The pending delivery row keeps the failure visible in the
			// tenant's delivery log.
			return fmt.Errorf("enqueue delivery %s: %w", deliveryID, err)
		}
	}
	return nil
}
