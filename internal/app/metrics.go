package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"launchpad/internal/store"
)

// Metrics owns a private registry so several services can coexist in tests.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	requests   *prometheus.CounterVec
	categories prometheus.Gauge
	items      prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "launchpad_operations_total",
			Help: "Document operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "launchpad_operation_duration_seconds",
			Help:    "Time spent in a load-modify-save cycle.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "launchpad_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		categories: factory.NewGauge(prometheus.GaugeOpts{
			Name: "launchpad_document_categories",
			Help: "Categories in the last loaded or saved document.",
		}),
		items: factory.NewGauge(prometheus.GaugeOpts{
			Name: "launchpad_document_items",
			Help: "Items in the last loaded or saved document.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if d, ok := err.(*DomainError); ok {
			outcome = d.Code
		}
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeDocument(doc store.AppDocument) {
	if m == nil {
		return
	}
	total := 0
	for _, items := range doc.Commands {
		total += len(items)
	}
	m.categories.Set(float64(len(doc.Categories)))
	m.items.Set(float64(total))
}

func (m *Metrics) observeRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
