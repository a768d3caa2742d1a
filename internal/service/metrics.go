package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the loader counters. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	pages    *prometheus.CounterVec
	features *prometheus.CounterVec
	loads    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the geoview collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoview_wfs_pages_total",
			Help: "WFS pages fetched.",
		}, []string{"layer"}),
		features: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoview_wfs_features_total",
			Help: "Features received from WFS pages.",
		}, []string{"layer"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoview_loads_total",
			Help: "Finished fetch sessions by outcome.",
		}, []string{"layer", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geoview_load_duration_seconds",
			Help:    "Time from session start to completion.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"layer"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.pages, m.features, m.loads, m.duration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) page(layer string, features int) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(layer).Inc()
	m.features.WithLabelValues(layer).Add(float64(features))
}

func (m *Metrics) finished(layer string, status SessionStatus, took time.Duration) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(layer, string(status)).Inc()
	m.duration.WithLabelValues(layer).Observe(took.Seconds())
}
