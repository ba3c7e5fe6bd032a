package telemetry

import (
	"net/http"

	"github.com/go-go-golems/ragchat/pkg/chat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a chat observer exporting turn outcomes and latencies.
type Metrics struct {
	registry *prometheus.Registry

	turnsTotal      *prometheus.CounterVec
	turnDuration    *prometheus.HistogramVec
	firstToken      prometheus.Histogram
	envelopes       prometheus.Histogram
	ratingsTotal    *prometheus.CounterVec
	turnsInProgress prometheus.Gauge
}

var _ chat.Observer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		turnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Name:      "turns_total",
			Help:      "Finished turns by outcome.",
		}, []string{"state"}),
		turnDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragchat",
			Name:      "turn_duration_seconds",
			Help:      "Time from submission to the end of a turn.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"state"}),
		firstToken: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragchat",
			Name:      "first_envelope_seconds",
			Help:      "Time from submission to the first decoded envelope.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		envelopes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragchat",
			Name:      "envelopes_per_turn",
			Help:      "Envelopes decoded per completed turn.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ratingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Name:      "ratings_total",
			Help:      "Likes and dislikes.",
		}, []string{"rating"}),
		turnsInProgress: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragchat",
			Name:      "turns_in_progress",
			Help:      "Turns that are sending or streaming.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OnUpdate(u chat.Update) {
	switch u.Kind {
	case chat.UpdateState:
		switch {
		case u.State == chat.StateSending:
			m.turnsInProgress.Inc()
		case u.State.IsTerminal():
			m.turnsInProgress.Dec()
			m.turnsTotal.WithLabelValues(u.State.String()).Inc()
			m.turnDuration.WithLabelValues(u.State.String()).Observe(u.Elapsed().Seconds())
			if u.State == chat.StateCompleted {
				m.envelopes.Observe(float64(u.Envelopes))
			}
		}
	case chat.UpdateFirstToken:
		m.firstToken.Observe(u.Elapsed().Seconds())
	case chat.UpdateRating:
		m.ratingsTotal.WithLabelValues(string(u.Rating)).Inc()
	case chat.UpdateLog, chat.UpdateClear:
	}
}
