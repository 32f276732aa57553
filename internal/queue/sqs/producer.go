package sqsqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"deskbridge/internal/domain"
)

// EventProducer enqueues canonical events for the worker. Standard (non-FIFO)
// queue: the dedup store substitutes for ordering guarantees.
type EventProducer struct {
	SQS      *sqs.Client
	QueueURL string
}

func (p *EventProducer) EnqueueEvent(ctx context.Context, ev domain.CanonicalEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	})
	return err
}

// DeliveryJob is one attempt of one (event, endpoint) delivery series. The
// endpoint secret is snapshotted at job creation; rotation does not affect
// in-flight retries.
type DeliveryJob struct {
	DeliveryID string          `json:"deliveryId"`
	AccountID  string          `json:"accountId"`
	URL        string          `json:"url"`
	Secret     string          `json:"secret"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"` // 1-based
}

type DeliveryProducer struct {
	SQS      *sqs.Client
	QueueURL string
}

// Enqueue schedules a delivery attempt after the given delay. SQS caps
// DelaySeconds at 900; the retry ladder tops out at 10 minutes, well inside.
func (p *DeliveryProducer) Enqueue(ctx context.Context, job DeliveryJob, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	in := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	}
	if delay > 0 {
		in.DelaySeconds = int32(delay / time.Second)
	}
	_, err = p.SQS.SendMessage(ctx, in)
	return err
}

func str(s string) *string { return &s }
