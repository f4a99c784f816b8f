package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/paybridge/paybridge/infra/logger"
)

// ErrQueueFull is returned when the buffer cannot accept another job.
// The webhook handler surfaces it as a retryable condition to the sender.
var ErrQueueFull = errors.New("webhook queue is full")

// Job is one webhook processing unit of work
type Job struct {
	Provider   string
	Body       []byte
	ReceivedAt time.Time
}

// Processor handles one job; a returned error triggers a bounded retry
type Processor func(ctx context.Context, job Job) error

// Options configures a webhook queue
type Options struct {
	Workers    int
	BufferSize int
	MaxRetries int
	Backoff    time.Duration
}

// WebhookQueue decouples webhook acknowledgment from transaction
// mutation: the HTTP handler only authenticates and enqueues, workers do
// the rest with bounded retries and fixed backoff.
type WebhookQueue struct {
	jobs      chan Job
	processor Processor
	opts      Options
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewWebhookQueue creates a queue; Start must be called before Enqueue
func NewWebhookQueue(processor Processor, opts Options) *WebhookQueue {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 128
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	return &WebhookQueue{
		jobs:      make(chan Job, opts.BufferSize),
		processor: processor,
		opts:      opts,
	}
}

// Start launches the worker goroutines. Workers stop when ctx is
// cancelled and the job channel has drained.
func (q *WebhookQueue) Start(ctx context.Context) {
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

func (q *WebhookQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.process(ctx, job)
		}
	}
}

func (q *WebhookQueue) process(ctx context.Context, job Job) {
	var err error
	for attempt := 1; attempt <= q.opts.MaxRetries; attempt++ {
		if err = q.processor(ctx, job); err == nil {
			return
		}
		if attempt < q.opts.MaxRetries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.opts.Backoff):
			}
		}
	}
	logger.Error("Webhook processing failed permanently", logger.LogContext{
		Provider: job.Provider,
		Fields: map[string]any{
			"attempts": q.opts.MaxRetries,
			"error":    err.Error(),
		},
	})
}

// Enqueue submits a job without blocking; a full buffer is an error so
// the HTTP boundary can tell the provider to redeliver
func (q *WebhookQueue) Enqueue(job Job) error {
	if job.ReceivedAt.IsZero() {
		job.ReceivedAt = time.Now().UTC()
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for workers to finish, up to
// the context deadline
func (q *WebhookQueue) Shutdown(ctx context.Context) error {
	q.closeOnce.Do(func() { close(q.jobs) })

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
