package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coursecart/fulfillment/internal/metrics"
	"github.com/coursecart/fulfillment/internal/model"
)

// Stream layout. Entries carry "type" and the JSON "payload".
const (
	StreamKey           = "stream:order_events"
	DeadLetterStreamKey = "stream:order_events:dlq"
	MaxStreamLen        = 100000

	// PublishTimeout bounds one XADD issued after an order commits.
	PublishTimeout = 500 * time.Millisecond
)

// Publisher appends order events to the stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "events.publisher"),
		metrics: recorder,
	}
}

// Publish appends event and returns its stream ID.
func (p *Publisher) Publish(ctx context.Context, event OrderPlaced) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{
			"type":    event.Type,
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// PublishOrderPlaced publishes in the background. The order is already
// committed, so failures are logged and counted but never returned.
// Calls made after Drain has started are dropped.
func (p *Publisher) PublishOrderPlaced(order *model.Order, course *model.Course) {
	event := NewOrderPlaced(order, course)

	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		p.logger.Warn("order event dropped during shutdown", "order_id", event.OrderID)
		p.metrics.IncOrderEventPublished(metrics.StatusDropped)
		return
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish order event", "order_id", event.OrderID, "error", err)
			p.metrics.IncOrderEventPublished(metrics.StatusDropped)
			return
		}
		p.logger.Debug("order event published", "order_id", event.OrderID, "stream_id", streamID)
		p.metrics.IncOrderEventPublished(metrics.StatusSuccess)
	}()
}

// Drain stops accepting background publishes and waits for those in
// flight. It runs as a shutdown hook before Redis is closed.
func (p *Publisher) Drain(ctx context.Context) error {
	p.mu.Lock()
	p.draining = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
