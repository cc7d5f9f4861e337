package handler

import (
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/coursecart/fulfillment/internal/metrics"
)

// MetricsHandler renders an in-memory snapshot in Prometheus text format.
// Used when the Prometheus registry is disabled.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics handles GET /metrics.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "fulfillment_orders_placed_total %d\n", snap.OrdersPlaced)
	writeLabelled(w, "fulfillment_order_failures_total", "kind", snap.OrderFailures)
	fmt.Fprintf(w, "fulfillment_order_duration_seconds_count %d\n", snap.OrderDurationCount)
	writeLabelled(w, "fulfillment_gateway_orders_total", "status", snap.GatewayOrders)
	writeLabelled(w, "fulfillment_cache_refreshes_total", "status", snap.CacheRefreshes)
	fmt.Fprintf(w, "fulfillment_profile_cache_hits_total %d\n", snap.ProfileCacheHits)
	fmt.Fprintf(w, "fulfillment_profile_cache_misses_total %d\n", snap.ProfileCacheMisses)
	writeLabelled(w, "fulfillment_mails_sent_total", "status", snap.MailsSent)
	fmt.Fprintf(w, "fulfillment_mail_duration_seconds_count %d\n", snap.MailDurationCount)
	fmt.Fprintf(w, "fulfillment_mail_duration_seconds_sum %.6f\n", float64(snap.MailDurationTotalNs)/1e9)
	fmt.Fprintf(w, "fulfillment_rate_limited_requests_total %d\n", snap.RateLimitedRequests)
	writeLabelled(w, "fulfillment_order_events_published_total", "status", snap.EventsPublished)
	writeLabelled(w, "fulfillment_order_events_delivered_total", "status", snap.EventsDelivered)
	fmt.Fprintf(w, "fulfillment_webhook_duration_seconds_count %d\n", snap.WebhookCount)
	fmt.Fprintf(w, "fulfillment_order_event_queue_depth %d\n", snap.EventQueueDepth)
}

// writeLabelled writes one line per label value, sorted for stable output.
func writeLabelled(w io.Writer, name, label string, values map[string]uint64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}
