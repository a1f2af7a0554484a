package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the service's Prometheus surface. Each instance carries its
// own registry so the handler only ever exposes this service's series.
type Metrics struct {
	registry *prometheus.Registry

	MessagesTotal   *prometheus.CounterVec
	AddsTotal       *prometheus.CounterVec
	ResolvesTotal   prometheus.Counter
	DuplicatesTotal prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	ProcessingTime  *prometheus.HistogramVec
	DedupSize       prometheus.Gauge
	PlaylistSize    prometheus.Gauge
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jamcraft_messages_total",
				Help: "Total number of messages processed, by outcome",
			},
			[]string{"source", "status"},
		),
		AddsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jamcraft_tracks_added_total",
				Help: "Total number of tracks appended to the playlist",
			},
			[]string{"source"},
		),
		ResolvesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jamcraft_resolves_total",
				Help: "Total number of messages with at least one resolved track",
			},
		),
		DuplicatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jamcraft_duplicates_total",
				Help: "Total number of tracks skipped as recent duplicates",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jamcraft_errors_total",
				Help: "Total number of errors, by component and type",
			},
			[]string{"component", "type"},
		),
		ProcessingTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jamcraft_processing_duration_seconds",
				Help:    "Time spent processing messages",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		DedupSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jamcraft_dedup_entries",
				Help: "Current number of entries in the dedup cache",
			},
		),
		PlaylistSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jamcraft_playlist_tracks",
				Help: "Current number of tracks in the target playlist",
			},
		),
	}

	m.registry.MustRegister(
		m.MessagesTotal,
		m.AddsTotal,
		m.ResolvesTotal,
		m.DuplicatesTotal,
		m.ErrorsTotal,
		m.ProcessingTime,
		m.DedupSize,
		m.PlaylistSize,
	)

	return m
}

func (m *Metrics) RecordMessage(source, status string) {
	m.MessagesTotal.WithLabelValues(source, status).Inc()
}

func (m *Metrics) RecordAdds(source string, n int) {
	m.AddsTotal.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) RecordResolved() {
	m.ResolvesTotal.Inc()
}

func (m *Metrics) RecordDuplicate() {
	m.DuplicatesTotal.Inc()
}

func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func (m *Metrics) RecordProcessingTime(source string, d time.Duration) {
	m.ProcessingTime.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) SetDedupSize(size int) {
	m.DedupSize.Set(float64(size))
}

func (m *Metrics) SetPlaylistSize(size int) {
	m.PlaylistSize.Set(float64(size))
}
