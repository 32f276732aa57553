package delivery

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"deskbridge/internal/observability"
	sqsqueue "deskbridge/internal/queue/sqs"
	"deskbridge/internal/store"
	"deskbridge/internal/util"
)

// MaxAttempts bounds one delivery series; after the final failed attempt the
// delivery is marked permanently failed and never retried.
const MaxAttempts = 5

// ladder holds the fixed per-attempt delays. All under SQS's 900s delay cap.
var ladder = [MaxAttempts]time.Duration{
	1 * time.Second,
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
}

// Backoff maps a 1-based attempt number to its scheduling delay.
func Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return ladder[0]
	}
	if attempt > MaxAttempts {
		return ladder[MaxAttempts-1]
	}
	return ladder[attempt-1]
}

type DelivererStore interface {
	InsertDeliveryAttempt(ctx context.Context, in store.DeliveryAttempt) error
	UpdateDeliveryState(ctx context.Context, in store.DeliveryStateUpdate) error
}

// Deliverer executes one scheduled attempt of a delivery series. Outcomes ack
// the queue message; only store trouble returns an error and redrives.
type Deliverer struct {
	Store DelivererStore
	Queue DeliveryQueue
	HTTP  *http.Client
}

func (d *Deliverer) HandleJob(ctx context.Context, job sqsqueue.DeliveryJob) error {
	statusCode, attemptErr := d.attempt(ctx, job)

	errText := ""
	if attemptErr != nil {
		errText = attemptErr.Error()
	}
	if err := d.Store.InsertDeliveryAttempt(ctx, store.DeliveryAttempt{
		DeliveryID: job.DeliveryID,
		Attempt:    job.Attempt,
		StatusCode: statusCode,
		Error:      errText,
		OccurredAt: util.NowUTC(),
	}); err != nil {
		return err
	}

	if attemptErr == nil && statusCode >= 200 && statusCode < 300 {
		observability.DeliveryAttempts.WithLabelValues("ok").Inc()
		return d.Store.UpdateDeliveryState(ctx, store.DeliveryStateUpdate{
			ID:         job.DeliveryID,
			State:      store.DeliveryDelivered,
			Attempts:   job.Attempt,
			LastStatus: statusCode,
			Now:        util.NowUTC(),
		})
	}

	if job.Attempt >= MaxAttempts {
		observability.DeliveryAttempts.WithLabelValues("permanent_failure").Inc()
		slog.Warn("delivery permanently failed",
			"delivery_id", job.DeliveryID, "attempts", job.Attempt,
			"status", statusCode, "err", errText)
		return d.Store.UpdateDeliveryState(ctx, store.DeliveryStateUpdate{
			ID:         job.DeliveryID,
			State:      store.DeliveryFailed,
			Attempts:   job.Attempt,
			LastStatus: statusCode,
			LastError:  errText,
			Now:        util.NowUTC(),
		})
	}

	observability.DeliveryAttempts.WithLabelValues("retry").Inc()
	if err := d.Store.UpdateDeliveryState(ctx, store.DeliveryStateUpdate{
		ID:         job.DeliveryID,
		State:      store.DeliveryPending,
		Attempts:   job.Attempt,
		LastStatus: statusCode,
		LastError:  errText,
		Now:        util.NowUTC(),
	}); err != nil {
		return err
	}

	next := job
	next.Attempt = job.Attempt + 1
	return d.Queue.Enqueue(ctx, next, Backoff(next.Attempt))
}

// attempt performs the signed POST. Timeouts come from the injected client.
func (d *Deliverer) attempt(ctx context.Context, job sqsqueue.DeliveryJob) (int, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.URL, bytes.NewReader(job.Payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(job.Secret, job.Payload))
	req.Header.Set(TimestampHeader, strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set(DeliveryHeader, job.DeliveryID)

	resp, err := d.HTTP.Do(req)
	if err != nil {
		observability.DeliveryLatency.Observe(time.Since(start).Seconds())
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	observability.DeliveryLatency.Observe(time.Since(start).Seconds())
	return resp.StatusCode, nil
}
