package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WriteOffRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "write_off_requests_created_total",
		Help: "Total number of write-off requests created (stock reserved)",
	})

	WriteOffRequestsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "write_off_requests_failed_total",
		Help: "Total number of write-off requests refused before persisting",
	}, []string{"reason"})

	RequestDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "write_off_decisions_total",
		Help: "Approval workflow decisions by resulting status",
	}, []string{"status", "actor"})

	StockUnitsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_units_received_total",
		Help: "Total units added through inbound shipments",
	})

	StockUnitsRestored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_units_restored_total",
		Help: "Total units given back to resources by rejected requests",
	})

	ImageCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "image_search_cache_lookups_total",
		Help: "Image suggestion cache lookups by result",
	}, []string{"result"})

	ImageUpstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "image_search_upstream_latency_seconds",
		Help:    "Latency of calls to the image search API",
		Buckets: prometheus.DefBuckets,
	})

	EventsPublishFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_publish_failed_total",
		Help: "Events that could not be delivered, by sink",
	}, []string{"sink"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
