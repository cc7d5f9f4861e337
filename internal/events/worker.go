package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/coursecart/fulfillment/internal/metrics"
)

// ConsumerGroup is the Redis consumer group shared by all API replicas.
const ConsumerGroup = "order_webhooks"

// Worker defaults. DefaultMaxAttempts counts deliveries per entry per
// read; an entry that exhausts them stays pending and is reclaimed.
const (
	DefaultBatchSize          = 50
	DefaultBlockTimeout       = 5 * time.Second
	DefaultMaxAttempts        = 3
	DefaultRetryBackoff       = time.Second
	DefaultClaimInterval      = 30 * time.Second
	DefaultClaimIdle          = time.Minute
	DefaultQueueDepthInterval = 10 * time.Second

	deadLetterMaxLen = 10000
)

// Deliverer sends one event to the integrator.
type Deliverer interface {
	Deliver(ctx context.Context, deliveryID, eventType string, payload []byte) error
}

// WorkerOption tunes a Worker. Non-positive durations keep the default
// unless noted.
type WorkerOption func(*Worker)

func WithBlockTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.blockTimeout = d
		}
	}
}

// WithRetryBackoff sets the first in-process retry delay; it doubles on
// each further attempt.
func WithRetryBackoff(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.retryBackoff = d
		}
	}
}

// WithClaim sets how often pending entries are scanned and how long
// an entry must sit idle before another consumer takes it over.
func WithClaim(interval, idle time.Duration) WorkerOption {
	return func(w *Worker) {
		if interval > 0 {
			w.claimInterval = interval
		}
		if idle > 0 {
			w.claimIdle = idle
		}
	}
}

// WithQueueDepthInterval sets how often the queue depth gauge is
// refreshed. Zero turns the gauge off.
func WithQueueDepthInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d >= 0 {
			w.depthInterval = d
		}
	}
}

// Worker reads order events from the stream as part of ConsumerGroup
// and hands them to a Deliverer.
type Worker struct {
	redis      *redis.Client
	deliverer  Deliverer
	logger     *slog.Logger
	metrics    metrics.Recorder
	consumerID string

	batchSize     int
	blockTimeout  time.Duration
	maxAttempts   int
	retryBackoff  time.Duration
	claimInterval time.Duration
	claimIdle     time.Duration
	depthInterval time.Duration

	claimCursor string
	lastClaim   time.Time
	lastDepth   time.Time

	mu       sync.Mutex
	started  bool
	stopping bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewConsumerID names this process inside the consumer group.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), strings.ToLower(ulid.Make().String()))
}

func NewWorker(client *redis.Client, deliverer Deliverer, logger *slog.Logger, consumerID string, recorder metrics.Recorder, opts ...WorkerOption) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	w := &Worker{
		redis:         client,
		deliverer:     deliverer,
		logger:        logger.With("component", "events.worker", "consumer_id", consumerID),
		metrics:       recorder,
		consumerID:    consumerID,
		batchSize:     DefaultBatchSize,
		blockTimeout:  DefaultBlockTimeout,
		maxAttempts:   DefaultMaxAttempts,
		retryBackoff:  DefaultRetryBackoff,
		claimInterval: DefaultClaimInterval,
		claimIdle:     DefaultClaimIdle,
		depthInterval: DefaultQueueDepthInterval,
		claimCursor:   "0-0",
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes until ctx ends or Shutdown is called. A Worker runs once.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()
	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}
	w.logger.Info("order event worker started")

	for !w.isStopping() {
		err := w.processOnce(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		w.logger.Error("order event batch failed", "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	}
	w.logger.Info("order event worker stopped")
	return nil
}

func (w *Worker) isStopping() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopping
}

// Shutdown stops Run and waits until the in-flight batch is acknowledged.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.stopping = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("order event worker did not stop in time")
		return ctx.Err()
	}
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// processOnce handles one batch: reclaimed entries when a claim is due
// and finds any, otherwise new ones.
func (w *Worker) processOnce(ctx context.Context) error {
	w.refreshQueueDepth(ctx)

	batch, err := w.claimStale(ctx)
	if err != nil {
		w.logger.Warn("failed to claim stale entries", "error", err)
	}
	if len(batch) == 0 {
		if batch, err = w.readNew(ctx); err != nil {
			return err
		}
	}

	var ack []string
	for _, msg := range batch {
		if ctx.Err() != nil {
			break
		}
		if w.process(ctx, msg) != outcomeRetryLater {
			ack = append(ack, msg.ID)
		}
	}
	if len(ack) == 0 {
		return ctx.Err()
	}
	// Finished entries are acknowledged even during shutdown.
	if err := w.redis.XAck(context.WithoutCancel(ctx), StreamKey, ConsumerGroup, ack...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeDeadLettered
	outcomeRetryLater
)

func (w *Worker) process(ctx context.Context, msg redis.XMessage) outcome {
	event, payload, reason, err := decodeEntry(msg)
	if err != nil {
		w.deadLetter(ctx, msg, reason, err.Error())
		return outcomeDeadLettered
	}

	err = w.deliver(ctx, msg.ID, event.Type, payload)
	switch {
	case err == nil:
		w.metrics.IncOrderEventDelivered(metrics.StatusSuccess)
		w.logger.Info("order event delivered",
			"stream_id", msg.ID,
			"order_id", event.OrderID,
			"lag_ms", time.Since(event.PlacedTime()).Milliseconds(),
		)
		return outcomeDelivered
	case isPermanent(err):
		w.deadLetter(ctx, msg, "rejected", err.Error())
		return outcomeDeadLettered
	}

	if ctx.Err() == nil {
		w.metrics.IncOrderEventDelivered(metrics.StatusFailed)
		w.logger.Warn("order event delivery failed, left pending",
			"stream_id", msg.ID,
			"order_id", event.OrderID,
			"error", err,
		)
	}
	return outcomeRetryLater
}

// decodeEntry returns the event and its raw payload, or the dead-letter
// reason describing why the entry can never be delivered.
func decodeEntry(msg redis.XMessage) (OrderPlaced, []byte, string, error) {
	var event OrderPlaced
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return event, nil, "invalid_format", errors.New("payload field missing or not a string")
	}
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return event, nil, "unmarshal_error", err
	}
	if err := event.Validate(); err != nil {
		return event, nil, "validation_error", err
	}
	return event, []byte(raw), "", nil
}

// isPermanent reports whether err says retrying cannot help.
func isPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}

// deliver tries up to maxAttempts times with doubling backoff. The stream
// ID doubles as the delivery ID so receivers can deduplicate.
func (w *Worker) deliver(ctx context.Context, deliveryID, eventType string, payload []byte) error {
	backoff := w.retryBackoff
	for attempt := 1; ; attempt++ {
		err := w.deliverer.Deliver(ctx, deliveryID, eventType, payload)
		if err == nil || isPermanent(err) || attempt >= w.maxAttempts {
			return err
		}

		w.logger.Debug("delivery attempt failed",
			"stream_id", deliveryID,
			"attempt", attempt,
			"backoff_ms", backoff.Milliseconds(),
			"error", err,
		)
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff *= 2
	}
}

func (w *Worker) claimStale(ctx context.Context) ([]redis.XMessage, error) {
	if !due(&w.lastClaim, w.claimInterval) {
		return nil, nil
	}

	msgs, cursor, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimCursor,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if cursor != "" {
		w.claimCursor = cursor
	}
	return msgs, nil
}

// due reports whether a periodic task last run at *last should run now,
// and if so records the run.
func due(last *time.Time, every time.Duration) bool {
	now := time.Now()
	if every <= 0 || now.Sub(*last) < every {
		return false
	}
	*last = now
	return true
}

func (w *Worker) readNew(ctx context.Context) ([]redis.XMessage, error) {
	res, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("xreadgroup: %w", err)
	case len(res) == 0:
		return nil, nil
	}
	return res[0].Messages, nil
}

// refreshQueueDepth publishes pending plus unread entries for the group.
func (w *Worker) refreshQueueDepth(ctx context.Context) {
	if !due(&w.lastDepth, w.depthInterval) {
		return
	}

	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil {
		w.logger.Debug("stream group info unavailable", "error", err)
		return
	}
	for _, g := range groups {
		if g.Name == ConsumerGroup {
			w.metrics.SetOrderEventQueueDepth(g.Pending + g.Lag)
			return
		}
	}
}

func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering order event", "stream_id", msg.ID, "reason", reason, "detail", detail)
	w.metrics.IncOrderEventDelivered(metrics.StatusDeadLettered)

	err := w.redis.XAdd(context.WithoutCancel(ctx), &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: deadLetterMaxLen,
		Approx: true,
		Values: map[string]any{
			"original_id":      msg.ID,
			"reason":           reason,
			"detail":           detail,
			"payload":          msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("failed to write dead letter", "stream_id", msg.ID, "error", err)
	}
}
