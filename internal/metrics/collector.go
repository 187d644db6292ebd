// Package metrics exposes Prometheus metrics about command runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/npratt/shellrun/internal/runner"
)

// Collector records run outcomes. It implements runner.Recorder.
type Collector struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	outputBytes prometheus.Counter
}

var _ runner.Recorder = (*Collector)(nil)

// NewCollector creates a Collector registered on its own registry.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.NewRegistry())
}

// NewCollectorWithRegistry creates a Collector on the given registry.
// Useful for testing.
func NewCollectorWithRegistry(registry *prometheus.Registry) *Collector {
	c := &Collector{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellrun_runs_total",
				Help: "Commands resolved, by outcome",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shellrun_run_duration_seconds",
				Help:    "Time from start to resolution, by outcome",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"status"},
		),
		outputBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shellrun_output_bytes_total",
				Help: "Bytes of combined output captured",
			},
		),
	}

	registry.MustRegister(c.runsTotal, c.runDuration, c.outputBytes)

	// Export every status from the start, at zero.
	for _, s := range []runner.Status{
		runner.StatusSucceeded,
		runner.StatusFailed,
		runner.StatusCanceled,
		runner.StatusSpawnFailed,
	} {
		c.runsTotal.WithLabelValues(s.String())
	}

	return c
}

// ObserveRun records one resolved run.
func (c *Collector) ObserveRun(status runner.Status, elapsed time.Duration, outputBytes int) {
	label := status.String()
	c.runsTotal.WithLabelValues(label).Inc()
	c.runDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	if outputBytes > 0 {
		c.outputBytes.Add(float64(outputBytes))
	}
}

// Registry returns the registry the collector's metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
