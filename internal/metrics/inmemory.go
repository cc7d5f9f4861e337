package metrics

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	OrdersPlaced        uint64
	OrderFailures       map[string]uint64
	OrderDurationCount  uint64
	GatewayOrders       map[string]uint64
	CacheRefreshes      map[string]uint64
	ProfileCacheHits    uint64
	ProfileCacheMisses  uint64
	MailsSent           map[string]uint64
	MailDurationCount   uint64
	MailDurationTotalNs int64
	RateLimitedRequests uint64
	EventsPublished     map[string]uint64
	EventsDelivered     map[string]uint64
	WebhookCount        uint64
	EventQueueDepth     int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	ordersPlaced        uint64
	orderDurationCount  uint64
	profileCacheHits    uint64
	profileCacheMisses  uint64
	mailDurationCount   uint64
	mailDurationTotalNs int64
	rateLimited         uint64
	webhookCount        uint64
	eventQueueDepth     int64

	mu              sync.Mutex
	orderFailures   map[string]uint64
	gatewayOrders   map[string]uint64
	cacheRefreshes  map[string]uint64
	mailsSent       map[string]uint64
	eventsPublished map[string]uint64
	eventsDelivered map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		orderFailures:   map[string]uint64{},
		gatewayOrders:   map[string]uint64{},
		cacheRefreshes:  map[string]uint64{},
		mailsSent:       map[string]uint64{},
		eventsPublished: map[string]uint64{},
		eventsDelivered: map[string]uint64{},
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		OrdersPlaced:        atomic.LoadUint64(&m.ordersPlaced),
		OrderFailures:       maps.Clone(m.orderFailures),
		OrderDurationCount:  atomic.LoadUint64(&m.orderDurationCount),
		GatewayOrders:       maps.Clone(m.gatewayOrders),
		CacheRefreshes:      maps.Clone(m.cacheRefreshes),
		ProfileCacheHits:    atomic.LoadUint64(&m.profileCacheHits),
		ProfileCacheMisses:  atomic.LoadUint64(&m.profileCacheMisses),
		MailsSent:           maps.Clone(m.mailsSent),
		MailDurationCount:   atomic.LoadUint64(&m.mailDurationCount),
		MailDurationTotalNs: atomic.LoadInt64(&m.mailDurationTotalNs),
		RateLimitedRequests: atomic.LoadUint64(&m.rateLimited),
		EventsPublished:     maps.Clone(m.eventsPublished),
		EventsDelivered:     maps.Clone(m.eventsDelivered),
		WebhookCount:        atomic.LoadUint64(&m.webhookCount),
		EventQueueDepth:     atomic.LoadInt64(&m.eventQueueDepth),
	}
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, label string) {
	m.mu.Lock()
	counts[label]++
	m.mu.Unlock()
}

// IncOrderPlaced increments the placed order counter.
func (m *InMemoryRecorder) IncOrderPlaced() {
	atomic.AddUint64(&m.ordersPlaced, 1)
}

// IncOrderFailed counts a failed order by error kind.
func (m *InMemoryRecorder) IncOrderFailed(kind string) {
	m.inc(m.orderFailures, kind)
}

// ObserveOrderDuration records one workflow run.
func (m *InMemoryRecorder) ObserveOrderDuration(time.Duration) {
	atomic.AddUint64(&m.orderDurationCount, 1)
}

// IncGatewayOrder counts gateway order attempts by status.
func (m *InMemoryRecorder) IncGatewayOrder(status string) {
	m.inc(m.gatewayOrders, status)
}

// IncCacheRefresh counts cache mirror refreshes by status.
func (m *InMemoryRecorder) IncCacheRefresh(status string) {
	m.inc(m.cacheRefreshes, status)
}

// IncProfileCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncProfileCacheHit() {
	atomic.AddUint64(&m.profileCacheHits, 1)
}

// IncProfileCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncProfileCacheMiss() {
	atomic.AddUint64(&m.profileCacheMisses, 1)
}

// IncMailSent counts confirmation mails by status.
func (m *InMemoryRecorder) IncMailSent(status string) {
	m.inc(m.mailsSent, status)
}

// ObserveMailDuration records mail send duration.
func (m *InMemoryRecorder) ObserveMailDuration(duration time.Duration) {
	atomic.AddUint64(&m.mailDurationCount, 1)
	atomic.AddInt64(&m.mailDurationTotalNs, duration.Nanoseconds())
}

// IncRateLimited counts requests rejected by the order rate limiter.
func (m *InMemoryRecorder) IncRateLimited() {
	atomic.AddUint64(&m.rateLimited, 1)
}

// IncOrderEventPublished counts order events handed to the stream.
func (m *InMemoryRecorder) IncOrderEventPublished(status string) {
	m.inc(m.eventsPublished, status)
}

// IncOrderEventDelivered counts order events processed by the worker.
func (m *InMemoryRecorder) IncOrderEventDelivered(status string) {
	m.inc(m.eventsDelivered, status)
}

func (m *InMemoryRecorder) ObserveWebhookDuration(time.Duration) {
	atomic.AddUint64(&m.webhookCount, 1)
}

func (m *InMemoryRecorder) SetOrderEventQueueDepth(depth int64) {
	atomic.StoreInt64(&m.eventQueueDepth, depth)
}
