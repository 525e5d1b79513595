// Package metrics exposes Prometheus instrumentation for the award pipeline,
// the event bus and the ledger backend.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ShenPrime/Levelington/internal/application/command"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

const namespace = "levelington"

// Metrics holds every collector on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	awards        *prometheus.CounterVec
	xpAwarded     prometheus.Counter
	events        *prometheus.CounterVec
	handlerRuns   *prometheus.CounterVec
	handlerTiming *prometheus.HistogramVec
	dropped       prometheus.Counter
	commands      *prometheus.CounterVec
	ledgerUp      prometheus.GaugeFunc
}

var (
	_ command.AwardRecorder = (*Metrics)(nil)
)

// New creates and registers all collectors. ping, when non-nil, backs the
// ledger_up gauge.
func New(ping func(ctx context.Context) error) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		awards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages processed by the award pipeline, by outcome.",
		}, []string{"outcome"}),
		xpAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_awarded_total",
			Help:      "Total XP awarded across all communities.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published on the event bus.",
		}, []string{"type"}),
		handlerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_runs_total",
			Help:      "Event handler executions, by event type and result.",
		}, []string{"type", "result"}),
		handlerTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handler_duration_seconds",
			Help:      "Event handler latency.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"type"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_messages_dropped_total",
			Help:      "Messages dropped because the dispatch semaphore was full.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Slash commands handled, by name and result.",
		}, []string{"command", "result"}),
	}

	reg.MustRegister(m.awards, m.xpAwarded, m.events, m.handlerRuns, m.handlerTiming, m.dropped, m.commands)

	if ping != nil {
		m.ledgerUp = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_up",
			Help:      "1 when the ledger backend answers a ping.",
		}, func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				return 0
			}
			return 1
		})
		reg.MustRegister(m.ledgerUp)
	}

	return m
}

// AwardOutcome implements command.AwardRecorder.
func (m *Metrics) AwardOutcome(outcome command.Outcome, delta int64) {
	m.awards.WithLabelValues(string(outcome)).Inc()
	if delta > 0 {
		m.xpAwarded.Add(float64(delta))
	}
}

// EventPublished implements messaging.Recorder.
func (m *Metrics) EventPublished(eventType shared.EventType) {
	m.events.WithLabelValues(string(eventType)).Inc()
}

// HandlerExecuted implements messaging.Recorder.
func (m *Metrics) HandlerExecuted(eventType shared.EventType, duration time.Duration, success bool) {
	result := "ok"
	if !success {
		result = "error"
	}
	m.handlerRuns.WithLabelValues(string(eventType), result).Inc()
	m.handlerTiming.WithLabelValues(string(eventType)).Observe(duration.Seconds())
}

// MessageDropped counts a gateway message that could not be dispatched.
func (m *Metrics) MessageDropped() {
	m.dropped.Inc()
}

// CommandHandled counts a slash command invocation.
func (m *Metrics) CommandHandled(name string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.commands.WithLabelValues(name, result).Inc()
}
