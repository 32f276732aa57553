package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"deskbridge/internal/domain"
	sqsqueue "deskbridge/internal/queue/sqs"
	"deskbridge/internal/store"
)

type fakeFanoutStore struct {
	endpoints []store.WebhookEndpoint
	listErr   error

	inserted []store.DeliveryInsert
}

func (f *fakeFanoutStore) ListWebhookEndpoints(ctx context.Context, accountID string) ([]store.WebhookEndpoint, error) {
	return f.endpoints, f.listErr
}

func (f *fakeFanoutStore) InsertDelivery(ctx context.Context, in store.DeliveryInsert) error {
	f.inserted = append(f.inserted, in)
	return nil
}

type failingQueue struct {
	err error
}

func (f *failingQueue) Enqueue(ctx context.Context, job sqsqueue.DeliveryJob, delay time.Duration) error {
	return f.err
}

func TestFanoutOneSeriesPerEndpoint(t *testing.T) {
	st := &fakeFanoutStore{endpoints: []store.WebhookEndpoint{
		{ID: "ep_1", AccountID: "acc_1", URL: "https://a.example/hook", Secret: "sa", Enabled: true},
		{ID: "ep_2", AccountID: "acc_1", URL: "https://b.example/hook", Secret: "sb", Enabled: true},
	}}
	q := &fakeDeliveryQueue{}
	f := &Fanout{Store: st, Queue: q}

	err := f.EmitMessageCreated(context.Background(), domain.MessageCreatedEvent{
		TicketID: "tkt_1", AccountID: "acc_1", MessageID: "msg_1",
		Source: "slack", Text: "hello", PlatformUserID: "U1", PlatformUserName: "Dana",
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	if len(st.inserted) != 2 || len(q.jobs) != 2 {
		t.Fatalf("expected 2 deliveries, got %d rows %d jobs", len(st.inserted), len(q.jobs))
	}
	for i, job := range q.jobs {
		if job.DeliveryID != st.inserted[i].ID {
			t.Fatalf("job %d not tied to its delivery row", i)
		}
		if job.Attempt != 1 {
			t.Fatalf("first job must be attempt 1, got %d", job.Attempt)
		}
	}
	// Secrets are snapshotted per endpoint.
	if q.jobs[0].Secret != "sa" || q.jobs[1].Secret != "sb" {
		t.Fatalf("secrets not snapshotted: %q %q", q.jobs[0].Secret, q.jobs[1].Secret)
	}

	var env domain.Envelope
	if err := json.Unmarshal(q.jobs[0].Payload, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != domain.EventMessageCreated || env.AccountID != "acc_1" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.ID == "" || env.CorrelationID == "" || env.OccurredAt.IsZero() {
		t.Fatalf("envelope missing identifiers: %+v", env)
	}
}

func TestFanoutNoEndpointsIsNoop(t *testing.T) {
	q := &fakeDeliveryQueue{}
	f := &Fanout{Store: &fakeFanoutStore{}, Queue: q}

	if err := f.EmitTicketUpdated(context.Background(), domain.TicketUpdatedEvent{AccountID: "acc_1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(q.jobs) != 0 {
		t.Fatalf("no endpoints must enqueue nothing")
	}
}

func TestFanoutEnqueueFailureKeepsRow(t *testing.T) {
	st := &fakeFanoutStore{endpoints: []store.WebhookEndpoint{
		{ID: "ep_1", AccountID: "acc_1", URL: "https://a.example/hook", Secret: "sa", Enabled: true},
	}}
	f := &Fanout{Store: st, Queue: &failingQueue{err: errors.New("sqs down")}}

	err := f.EmitTicketUpdated(context.Background(), domain.TicketUpdatedEvent{AccountID: "acc_1", TicketID: "tkt_1"})
	if err == nil {
		t.Fatalf("expected enqueue failure")
	}
	if len(st.inserted) != 1 {
		t.Fatalf("pending row must exist for the failed enqueue")
	}
}
