// Package metrics exposes Prometheus metrics for the embedding server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lexembed"

// Metrics holds a dedicated registry and the collectors recorded by the HTTP layer.
// A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	textsEmbedded   *prometheus.CounterVec
}

// New creates a registry whose metrics all carry a constant service label, with the Go
// and process collectors registered. ready is sampled for the model_ready gauge.
func New(service string, ready func() bool) *Metrics {
	registry := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, registry)

	m := &Metrics{
		Registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"route"}),
		textsEmbedded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "texts_embedded_total",
			Help:      "Total number of texts embedded, by pooling method.",
		}, []string{"method"}),
	}
	readyGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "model_ready",
		Help:      "1 when the model is loaded and serving, 0 otherwise.",
	}, func() float64 {
		if ready != nil && ready() {
			return 1
		}
		return 0
	})

	wrapped.MustRegister(m.requestsTotal, m.requestDuration, m.textsEmbedded, readyGauge)
	wrapped.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// AddEmbedded counts n texts embedded with the given pooling method.
func (m *Metrics) AddEmbedded(method string, n int) {
	if m == nil {
		return
	}
	m.textsEmbedded.WithLabelValues(method).Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
