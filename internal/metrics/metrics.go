// Package metrics holds the Prometheus instruments for the scheduler, the
// sync engine and the inbox.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskrelay"

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Counters
	ticks         *prometheus.CounterVec
	notifications *prometheus.CounterVec
	syncs         *prometheus.CounterVec
	commands      *prometheus.CounterVec

	// Gauges
	urgent *prometheus.GaugeVec

	// Histograms
	tickDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg. Use
// prometheus.NewRegistry() in tests to keep registrations isolated.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_total",
				Help:      "Total number of scheduler ticks",
			},
			[]string{"kind"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification delivery attempts by kind and result",
			},
			[]string{"kind", "result"},
		),
		syncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_total",
				Help:      "Snapshot applications by direction and result",
			},
			[]string{"direction", "result"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inbox_commands_total",
				Help:      "Inbox commands dispatched by command and result",
			},
			[]string{"command", "result"},
		),
		urgent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:      "tasks_urgent",
				Namespace: namespace,
				Help:      "Open tasks per urgency tier at the last alert tick",
			},
			[]string{"tier"},
		),
		tickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Scheduler tick duration in seconds",
				Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(
		m.ticks,
		m.notifications,
		m.syncs,
		m.commands,
		m.urgent,
		m.tickDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Tick records one scheduler tick of the given kind.
func (m *Metrics) Tick(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(kind).Inc()
	m.tickDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Urgent sets the number of tasks currently in tier.
func (m *Metrics) Urgent(tier string, n int) {
	if m == nil {
		return
	}
	m.urgent.WithLabelValues(tier).Set(float64(n))
}

// Notification records a delivery attempt.
func (m *Metrics) Notification(kind string, err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result(err)).Inc()
}

// Sync records a snapshot application. direction is push, pull or receive.
func (m *Metrics) Sync(direction string, err error) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(direction, result(err)).Inc()
}

// Command records one dispatched inbox command.
func (m *Metrics) Command(command string, err error) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
