package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fulfillment"

// PrometheusRecorder exports metrics through its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	ordersPlaced   prometheus.Counter
	orderFailures  *prometheus.CounterVec
	orderDuration  prometheus.Histogram
	gatewayOrders  *prometheus.CounterVec
	cacheRefreshes *prometheus.CounterVec
	profileCache   *prometheus.CounterVec
	mailsSent      *prometheus.CounterVec
	mailDuration   prometheus.Histogram
	rateLimited    prometheus.Counter
	eventsPublish  *prometheus.CounterVec
	eventsDeliver  *prometheus.CounterVec
	webhookLatency prometheus.Histogram
	eventQueue     prometheus.Gauge
}

// NewPrometheus creates a recorder with Go runtime and process collectors
// registered alongside the application metrics.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &PrometheusRecorder{
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders fulfilled successfully",
		}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_failures_total",
			Help:      "Failed order attempts by error kind",
		}, []string{"kind"}),
		orderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_duration_seconds",
			Help:      "Duration of the order workflow",
			Buckets:   prometheus.DefBuckets,
		}),
		gatewayOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_orders_total",
			Help:      "Payment gateway order attempts by status",
		}, []string{"status"}),
		cacheRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_refreshes_total",
			Help:      "User cache mirror refreshes by status",
		}, []string{"status"}),
		profileCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_cache_lookups_total",
			Help:      "Profile reads served from the cache mirror",
		}, []string{"result"}),
		mailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mails_sent_total",
			Help:      "Confirmation mails by status",
		}, []string{"status"}),
		mailDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mail_duration_seconds",
			Help:      "Duration of confirmation mail delivery",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the order rate limiter",
		}),
		eventsPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_events_published_total",
			Help:      "Order events appended to the event stream by status",
		}, []string{"status"}),
		eventsDeliver: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_events_delivered_total",
			Help:      "Order events processed by the webhook worker by status",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Duration of outbound webhook requests",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		eventQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "order_event_queue_depth",
			Help:      "Pending plus undelivered entries in the order event stream",
		}),
	}

	p.registry = reg
	reg.MustRegister(
		p.ordersPlaced,
		p.orderFailures,
		p.orderDuration,
		p.gatewayOrders,
		p.cacheRefreshes,
		p.profileCache,
		p.mailsSent,
		p.mailDuration,
		p.rateLimited,
		p.eventsPublish,
		p.eventsDeliver,
		p.webhookLatency,
		p.eventQueue,
	)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusRecorder) IncOrderPlaced() { p.ordersPlaced.Inc() }

func (p *PrometheusRecorder) IncOrderFailed(kind string) {
	p.orderFailures.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) ObserveOrderDuration(duration time.Duration) {
	p.orderDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncGatewayOrder(status string) {
	p.gatewayOrders.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncCacheRefresh(status string) {
	p.cacheRefreshes.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncProfileCacheHit() {
	p.profileCache.WithLabelValues("hit").Inc()
}

func (p *PrometheusRecorder) IncProfileCacheMiss() {
	p.profileCache.WithLabelValues("miss").Inc()
}

func (p *PrometheusRecorder) IncMailSent(status string) {
	p.mailsSent.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) ObserveMailDuration(duration time.Duration) {
	p.mailDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncRateLimited() { p.rateLimited.Inc() }

func (p *PrometheusRecorder) IncOrderEventPublished(status string) {
	p.eventsPublish.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncOrderEventDelivered(status string) {
	p.eventsDeliver.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) ObserveWebhookDuration(duration time.Duration) {
	p.webhookLatency.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) SetOrderEventQueueDepth(depth int64) {
	p.eventQueue.Set(float64(depth))
}
