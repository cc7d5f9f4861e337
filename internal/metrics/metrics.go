// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Status label values shared by the status-labelled counters.
const (
	StatusSuccess      = "success"
	StatusFailed       = "failed"
	StatusDropped      = "dropped"
	StatusDeadLettered = "dead_lettered"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Order workflow metrics
	IncOrderPlaced()
	IncOrderFailed(kind string)
	ObserveOrderDuration(duration time.Duration)

	// Payment gateway metrics
	IncGatewayOrder(status string)

	// Cache mirror metrics
	IncCacheRefresh(status string)
	IncProfileCacheHit()
	IncProfileCacheMiss()

	// Notification metrics
	IncMailSent(status string)
	ObserveMailDuration(duration time.Duration)

	// Rate limiting
	IncRateLimited()

	// Order event feed
	IncOrderEventPublished(status string)
	IncOrderEventDelivered(status string)
	ObserveWebhookDuration(duration time.Duration)
	SetOrderEventQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
