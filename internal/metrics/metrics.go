// Package metrics exposes dispatch counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds the bot's collectors on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	dispatchResults *prometheus.CounterVec
	functionErrors  *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	reloads         prometheus.Counter
}

// New registers the collectors under namespace (default "togglebot").
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "togglebot"
	}
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.dispatchResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_results_total",
			Help:      "Dispatched messages by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)
	m.functionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "function_errors_total",
			Help:      "Failed executions by platform",
		},
		[]string{"platform"},
	)
	m.dispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_duration_seconds",
			Help:      "Time from message to reply",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"platform"},
	)
	m.reloads = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "config_reloads_total",
		Help:      "Successful configuration reloads",
	})

	m.registry.MustRegister(
		m.dispatchResults,
		m.functionErrors,
		m.dispatchLatency,
		m.reloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Dispatch counts one dispatch outcome.
func (m *Metrics) Dispatch(platform, outcome string) {
	m.dispatchResults.WithLabelValues(platform, outcome).Inc()
}

// FunctionError counts one failed execution.
func (m *Metrics) FunctionError(platform string) {
	m.functionErrors.WithLabelValues(platform).Inc()
}

// Observe records how long handling a message took.
func (m *Metrics) Observe(platform string, d time.Duration) {
	m.dispatchLatency.WithLabelValues(platform).Observe(d.Seconds())
}

// Reloaded counts a configuration reload.
func (m *Metrics) Reloaded() {
	m.reloads.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Info().Str("component", "metrics").Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
