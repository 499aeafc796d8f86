package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"invoicedash/internal/apperr"
)

const (
	OutcomeSuccess = "success"
	// unmatched routes share one label so paths cannot blow up cardinality
	unmatchedRoute = "unmatched"
)

// Metrics holds the collectors for the HTTP API and extraction.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	extractions     *prometheus.CounterVec
	extractDuration *prometheus.HistogramVec
	uploadBytes     prometheus.Histogram
}

// New registers all collectors on a fresh registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicedash_http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invoicedash_http_request_duration_seconds",
		Help:    "HTTP request latency by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
	extractions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicedash_extractions_total",
		Help: "Extraction attempts by provider and outcome.",
	}, []string{"provider", "outcome"})
	extractDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invoicedash_extraction_duration_seconds",
		Help:    "Extraction round-trip latency by provider.",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
	}, []string{"provider"})
	uploadBytes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "invoicedash_upload_size_bytes",
		Help:    "Size of accepted PDF uploads.",
		Buckets: prometheus.ExponentialBuckets(16<<10, 4, 7),
	})

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requests,
		requestDuration,
		extractions,
		extractDuration,
		uploadBytes,
	)
	return &Metrics{
		registry:        reg,
		requests:        requests,
		requestDuration: requestDuration,
		extractions:     extractions,
		extractDuration: extractDuration,
		uploadBytes:     uploadBytes,
	}
}

// Registry is the gatherer behind Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// GinMiddleware records count and latency of every request, labelled by the
// matched route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method
		m.requests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// ObserveExtraction records one extraction attempt. Failures are labelled by
// error kind.
func (m *Metrics) ObserveExtraction(provider string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = apperr.KindOf(err).String()
	}
	m.extractions.WithLabelValues(provider, outcome).Inc()
	m.extractDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveUpload records the size of an accepted upload.
func (m *Metrics) ObserveUpload(size int64) {
	if m == nil {
		return
	}
	m.uploadBytes.Observe(float64(size))
}
