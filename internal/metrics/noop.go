package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncOrderPlaced() {}

func (n *NoopRecorder) IncOrderFailed(kind string) {}

func (n *NoopRecorder) ObserveOrderDuration(duration time.Duration) {}

func (n *NoopRecorder) IncGatewayOrder(status string) {}

func (n *NoopRecorder) IncCacheRefresh(status string) {}

func (n *NoopRecorder) IncProfileCacheHit() {}

func (n *NoopRecorder) IncProfileCacheMiss() {}

func (n *NoopRecorder) IncMailSent(status string) {}

func (n *NoopRecorder) ObserveMailDuration(duration time.Duration) {}

func (n *NoopRecorder) IncRateLimited() {}

func (n *NoopRecorder) IncOrderEventPublished(status string) {}

func (n *NoopRecorder) IncOrderEventDelivered(status string) {}

func (n *NoopRecorder) ObserveWebhookDuration(duration time.Duration) {}

func (n *NoopRecorder) SetOrderEventQueueDepth(depth int64) {}
