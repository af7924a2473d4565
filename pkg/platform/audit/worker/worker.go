package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"agegate/internal/platform/kafka/producer"
	"agegate/pkg/platform/audit/outbox"
)

// Worker polls the outbox table and publishes audit events to Kafka.
// Publishing is at-least-once: an entry published but not marked processed is
// re-published on the next poll, and consumers deduplicate by entry ID.
type Worker struct {
	store        outbox.Store
	producer     *producer.Producer
	topic        string
	batchSize    int
	pollInterval time.Duration
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Worker.
type Option func(*Worker)

// WithTopic sets the Kafka topic for publishing.
func WithTopic(topic string) Option {
	return func(w *Worker) {
		w.topic = topic
	}
}

// WithBatchSize sets the maximum number of entries to fetch per poll.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		w.batchSize = size
	}
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		w.pollInterval = interval
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// New creates a new outbox worker.
func New(store outbox.Store, prod *producer.Producer, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		store:        store,
		producer:     prod,
		topic:        "agegate.audit.events",
		batchSize:    100,
		pollInterval: 100 * time.Millisecond,
		ctx:          ctx,
		cancel:       cancel,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start begins the polling loop in a background goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop cancels the polling loop and waits for the final poll to finish.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll fetches and processes a batch of outbox entries.
func (w *Worker) poll() {
	entries, err := w.store.FetchUnprocessed(w.ctx, w.batchSize)
	if err != nil {
		if w.logger != nil {
			w.logger.Error("failed to fetch outbox entries", "error", err)
		}
		return
	}

	for _, entry := range entries {
		if err := w.publishEntry(entry); err != nil {
			if w.logger != nil {
				w.logger.Error("failed to publish outbox entry",
					"id", entry.ID,
					"event_type", entry.EventType,
					"error", err,
				)
			}
			// Continue with other entries; this one is retried on next poll.
			continue
		}

		if err := w.store.MarkProcessed(w.ctx, entry.ID, time.Now()); err != nil {
			if w.logger != nil {
				w.logger.Error("failed to mark entry as processed",
					"id", entry.ID,
					"error", err,
				)
			}
			continue
		}
	}
}

// publishEntry publishes a single outbox entry to Kafka.
func (w *Worker) publishEntry(entry *outbox.Entry) error {
	msg := &producer.Message{
		Topic: w.topic,
		// Entry ID as key so consumers can deduplicate replays.
		Key:   []byte(entry.ID.String()),
		Value: entry.Payload,
		Headers: map[string]string{
			"aggregate_type": entry.AggregateType,
			"aggregate_id":   entry.AggregateID,
			"event_type":     entry.EventType,
		},
	}
	return w.producer.Produce(w.ctx, msg)
}
