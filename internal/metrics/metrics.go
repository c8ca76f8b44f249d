// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "analyticaos",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyticaos",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "analyticaos",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
	}, []string{"method", "route"})

	jobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyticaos",
		Subsystem: "jobs",
		Name:      "runs_total",
		Help:      "Background and admin job runs.",
	}, []string{"job", "success"})

	monitorRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "analyticaos",
		Subsystem: "monitor",
		Name:      "running",
		Help:      "1 while the price monitor is polling.",
	})

	moneyMoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyticaos",
		Subsystem: "wallet",
		Name:      "kobo_total",
		Help:      "Kobo moved through wallets by transaction type.",
	}, []string{"type"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight, httpRequests, httpDuration, jobRuns, monitorRunning, moneyMoved,
	)
}

// Handler serves the registry
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RequestStarted tracks an in-flight request and returns its completion func
func RequestStarted() func(method, route string, status int) {
	start := time.Now()
	httpInFlight.Inc()
	return func(method, route string, status int) {
		httpInFlight.Dec()
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// JobRun records the outcome of a job
func JobRun(job string, err error) {
	jobRuns.WithLabelValues(job, strconv.FormatBool(err == nil)).Inc()
}

// MonitorRunning flips the monitor gauge
func MonitorRunning(running bool) {
	if running {
		monitorRunning.Set(1)
		return
	}
	monitorRunning.Set(0)
}

// MoneyMoved adds kobo to the per-type wallet flow counter
func MoneyMoved(txType string, kobo int64) {
	moneyMoved.WithLabelValues(txType).Add(float64(kobo))
}
