// Package metrics exposes EventCraft's Prometheus collectors: HTTP
// traffic, provider attempts, generations, credits and storage savings.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventcraft"

// Collector owns a registry and every application metric. It satisfies
// providers.Observer.
type Collector struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	providerAttempts *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec

	generations  *prometheus.CounterVec
	creditsSpent prometheus.Counter
	rejections   prometheus.Counter

	uploads    *prometheus.CounterVec
	bytesSaved prometheus.Counter
}

// NewCollector creates a collector with its own registry, including the
// Go runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})
	c.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "route", "status"})
	c.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
	}, []string{"method", "route"})

	c.providerAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "attempts_total",
		Help:      "Provider attempts by outcome (success, failure, rejected, skipped).",
	}, []string{"provider", "outcome"})
	c.providerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "attempt_duration_seconds",
		Help:      "Duration of provider calls, skipped attempts excluded.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
	}, []string{"provider"})

	c.generations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generation",
		Name:      "total",
		Help:      "Generations by kind (image, carousel) and status.",
	}, []string{"kind", "status"})
	c.creditsSpent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "credits",
		Name:      "spent_total",
		Help:      "Credits debited for completed generations.",
	})
	c.rejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "moderation",
		Name:      "rejections_total",
		Help:      "Prompts rejected by moderation.",
	})

	c.uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "uploads_total",
		Help:      "Image uploads by whether they were converted to WebP.",
	}, []string{"converted"})
	c.bytesSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "bytes_saved_total",
		Help:      "Bytes saved by WebP conversion.",
	})

	c.registry.MustRegister(
		c.httpInFlight, c.httpRequests, c.httpDuration,
		c.providerAttempts, c.providerDuration,
		c.generations, c.creditsSpent, c.rejections,
		c.uploads, c.bytesSaved,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveProviderAttempt records one provider attempt.
func (c *Collector) ObserveProviderAttempt(provider, outcome string, d time.Duration) {
	c.providerAttempts.WithLabelValues(provider, outcome).Inc()
	if outcome != "skipped" {
		c.providerDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// RecordGeneration counts a finished generation request.
func (c *Collector) RecordGeneration(kind, status string, cost int) {
	c.generations.WithLabelValues(kind, status).Inc()
	if cost > 0 {
		c.creditsSpent.Add(float64(cost))
	}
}

// RecordRejection counts a prompt rejected by moderation.
func (c *Collector) RecordRejection() {
	c.rejections.Inc()
}

// RecordUpload counts a stored image and the bytes conversion saved.
func (c *Collector) RecordUpload(original, stored int64, converted bool) {
	c.uploads.WithLabelValues(strconv.FormatBool(converted)).Inc()
	if saved := original - stored; saved > 0 {
		c.bytesSaved.Add(float64(saved))
	}
}

// Middleware records request counts and latency labelled by the chi
// route pattern, so path parameters do not explode cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		c.httpInFlight.Inc()
		defer c.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := routePattern(r)
		method := strings.ToUpper(r.Method)
		c.httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		c.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
