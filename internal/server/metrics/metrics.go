// Package metrics owns the server's Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/peny/internal/server/supervisor"
)

const namespace = "peny"

type Registry struct {
	reg *prometheus.Registry

	DBState           *prometheus.GaugeVec
	DBConnectAttempts *prometheus.CounterVec
	DBHeartbeatFails  prometheus.Counter
	DBReconnects      *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewRegistry builds a private registry with Go runtime and process
// collectors plus the application metrics.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		DBState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connection_state",
			Help:      "1 for the connection supervisor's current state, 0 otherwise.",
		}, []string{"state"}),
		DBConnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_connect_attempts_total",
			Help:      "Database connection attempts by result.",
		}, []string{"result"}),
		DBHeartbeatFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_heartbeat_failures_total",
			Help:      "Failed database liveness probes.",
		}),
		DBReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_reconnects_total",
			Help:      "Completed reconnection sequences by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.DBState,
		r.DBConnectAttempts,
		r.DBHeartbeatFails,
		r.DBReconnects,
		r.HTTPRequests,
		r.HTTPDuration,
	)

	for _, st := range supervisor.States {
		r.DBState.WithLabelValues(st.String()).Set(0)
	}
	r.DBState.WithLabelValues(supervisor.Disconnected.String()).Set(1)

	return r
}

// Handler serves the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// SupervisorHooks feeds connection supervisor events into the registry.
func (r *Registry) SupervisorHooks() supervisor.Hooks {
	return supervisor.Hooks{
		StateChanged: func(from, to supervisor.State) {
			r.DBState.WithLabelValues(from.String()).Set(0)
			r.DBState.WithLabelValues(to.String()).Set(1)
		},
		ConnectAttempt: func(err error) {
			r.DBConnectAttempts.WithLabelValues(result(err)).Inc()
		},
		HeartbeatFailed: func(error) {
			r.DBHeartbeatFails.Inc()
		},
		Reconnected: func(err error) {
			r.DBReconnects.WithLabelValues(result(err)).Inc()
		},
	}
}

// ObserveHTTP records one finished request.
func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
