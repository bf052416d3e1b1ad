// Package metrics provides Prometheus instrumentation for the backtester.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts terminal runs, partitioned by final status.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtester_runs_total",
		Help: "Total number of backtest runs by terminal status",
	}, []string{"status"})

	// ActiveRuns tracks runs currently executing.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backtester_active_runs",
		Help: "Number of backtest runs currently executing",
	})

	// TicksProcessed counts simulated ticks across all runs.
	TicksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backtester_ticks_processed_total",
		Help: "Total simulated ticks processed",
	})

	// RunDuration tracks wall-clock run duration.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backtester_run_duration_seconds",
		Help:    "Backtest run duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
