package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/botcharts/internal/transport"
)

const namespace = "botcharts"

// Metrics holds every collector of the gateway on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	quoteRequests *prometheus.CounterVec
	streamClients prometheus.Gauge
	sessions      prometheus.Gauge
	whoamiChecks  *prometheus.CounterVec
	transactions  *prometheus.CounterVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Service cache lookups by cache and result (hit|miss)",
			},
			[]string{"cache", "result"},
		),
		quoteRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_requests_total",
				Help:      "Quote history requests by style (ticks|candles) and result (ok|empty)",
			},
			[]string{"style", "result"},
		),
		streamClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_clients",
				Help:      "Connected quote stream websocket clients",
			},
		),
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions",
				Help:      "Live OAuth sessions",
			},
		),
		whoamiChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "whoami_checks_total",
				Help:      "Session whoami checks by result (ok|expired|error)",
			},
			[]string{"result"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_upserted_total",
				Help:      "Contract transactions written by result (ok|error)",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.cacheLookups,
		m.quoteRequests,
		m.streamClients,
		m.sessions,
		m.whoamiChecks,
		m.transactions,
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterTransport exports transport counters, read at scrape time.
func (m *Metrics) RegisterTransport(stats func() transport.Stats) {
	if m == nil || stats == nil {
		return
	}

	gauge := func(name, help string, f func(transport.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "transport", Name: name, Help: help},
			func() float64 { return f(stats()) },
		)
	}
	counter := func(name, help string, f func(transport.Stats) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "transport", Name: name, Help: help},
			func() float64 { return f(stats()) },
		)
	}

	m.registry.MustRegister(
		gauge("connected", "1 if the API connection is up", func(s transport.Stats) float64 {
			if s.Connected {
				return 1
			}
			return 0
		}),
		gauge("subscriptions", "Live subscriptions", func(s transport.Stats) float64 {
			return float64(s.ActiveSubscriptions)
		}),
		gauge("pending_requests", "Requests awaiting a response", func(s transport.Stats) float64 {
			return float64(s.PendingRequests)
		}),
		counter("requests_total", "Requests sent", func(s transport.Stats) float64 {
			return float64(s.RequestsSent)
		}),
		counter("messages_total", "Messages received", func(s transport.Stats) float64 {
			return float64(s.MessagesReceived)
		}),
		counter("pushes_delivered_total", "Stream messages queued for a subscriber", func(s transport.Stats) float64 {
			return float64(s.PushesDelivered)
		}),
		counter("pushes_dropped_total", "Stream messages with no live subscriber", func(s transport.Stats) float64 {
			return float64(s.PushesDropped)
		}),
		counter("reconnects_total", "Successful reconnections", func(s transport.Stats) float64 {
			return float64(s.Reconnects)
		}),
	)
}

// ObserveHTTP records one handled request.
func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// ObserveQuotes records a quote history request. Empty covers both empty
// history and transport failures.
func (m *Metrics) ObserveQuotes(style string, empty bool) {
	if m == nil {
		return
	}
	result := "ok"
	if empty {
		result = "empty"
	}
	m.quoteRequests.WithLabelValues(style, result).Inc()
}

// StreamClientConnected adjusts the stream client gauge by delta.
func (m *Metrics) StreamClientConnected(delta int) {
	if m == nil {
		return
	}
	m.streamClients.Add(float64(delta))
}

// SetSessions sets the live session gauge.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// ObserveWhoami records a session check result.
func (m *Metrics) ObserveWhoami(result string) {
	if m == nil {
		return
	}
	m.whoamiChecks.WithLabelValues(result).Inc()
}

// ObserveTransactions records n written transactions.
func (m *Metrics) ObserveTransactions(n int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.transactions.WithLabelValues("error").Inc()
		return
	}
	m.transactions.WithLabelValues("ok").Add(float64(n))
}
