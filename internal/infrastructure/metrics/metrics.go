// Package metrics holds the Prometheus collectors of the bot.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cogbot"

// Metrics groups the collectors registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	envelopes       *prometheus.CounterVec
	dropped         prometheus.Counter
	cogs            *prometheus.GaugeVec
	state           prometheus.Gauge
	events          *prometheus.CounterVec
}

// New registers every collector, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "commands",
				Name:      "invocations_total",
				Help:      "Total number of command invocations.",
			},
			[]string{"command", "status"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "commands",
				Name:      "duration_seconds",
				Help:      "Duration of command invocations.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"command"},
		),
		envelopes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "errors",
				Name:      "envelopes_total",
				Help:      "Total number of error envelopes written, by origin.",
			},
			[]string{"origin"},
		),
		dropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "errors",
				Name:      "dropped_total",
				Help:      "Error envelopes dropped because the pipeline was full or closed.",
			},
		),
		cogs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cogs",
				Name:      "loaded",
				Help:      "Number of cogs by load result.",
			},
			[]string{"result"},
		),
		state: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "app",
				Name:      "state",
				Help:      "Current application lifecycle state.",
			},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "received_total",
				Help:      "Platform events received, by type.",
			},
			[]string{"type"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.commands,
		m.commandDuration,
		m.envelopes,
		m.dropped,
		m.cogs,
		m.state,
		m.events,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveCommand records one invocation. status is "ok" or "error".
func (m *Metrics) ObserveCommand(command, status string, d time.Duration) {
	m.commands.WithLabelValues(command, status).Inc()
	m.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

func (m *Metrics) ObserveEnvelope(origin string) {
	m.envelopes.WithLabelValues(origin).Inc()
}

func (m *Metrics) ObserveDropped() {
	m.dropped.Inc()
}

func (m *Metrics) ObserveEvent(eventType string) {
	m.events.WithLabelValues(eventType).Inc()
}

// SetCogs publishes the result of the last cog load.
func (m *Metrics) SetCogs(loaded, failed int) {
	m.cogs.WithLabelValues("loaded").Set(float64(loaded))
	m.cogs.WithLabelValues("failed").Set(float64(failed))
}

func (m *Metrics) SetState(state int) {
	m.state.Set(float64(state))
}

// CacheStatsFunc reports the running hit and miss counts of a cache and
// its current size.
type CacheStatsFunc func() (hits, misses uint64, size int)

// ObserveCache exports a cache's counters, read at scrape time, under the
// cache label name.
func (m *Metrics) ObserveCache(name string, stats CacheStatsFunc) error {
	labels := prometheus.Labels{"cache": name}
	return errors.Join(
		m.Registry.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "hits_total",
			Help:        "Cache lookups served from memory.",
			ConstLabels: labels,
		}, func() float64 {
			hits, _, _ := stats()
			return float64(hits)
		})),
		m.Registry.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "misses_total",
			Help:        "Cache lookups that went to the repository.",
			ConstLabels: labels,
		}, func() float64 {
			_, misses, _ := stats()
			return float64(misses)
		})),
		m.Registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "entries",
			Help:        "Entries currently cached.",
			ConstLabels: labels,
		}, func() float64 {
			_, _, size := stats()
			return float64(size)
		})),
	)
}
