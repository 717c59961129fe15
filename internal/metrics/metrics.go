// Package metrics exposes per-run counters for a wrangler run.
//
// Each Collector owns a private registry so that runs in the same process
// (tests, embedding tools) never collide on the default registry. A nil
// *Collector is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shaderwrangler"

// Collector holds the counters of a run.
type Collector struct {
	registry *prometheus.Registry

	discovered *prometheus.CounterVec
	stale      *prometheus.CounterVec
	compiled   *prometheus.CounterVec
	failed     *prometheus.CounterVec
	written    *prometheus.CounterVec
	duration   prometheus.Gauge
	lastRun    *prometheus.GaugeVec
}

// NewCollector builds a Collector with all metrics registered.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.discovered = counterVec("candidates_discovered_total", "Candidates found by discovery.")
	c.stale = counterVec("candidates_stale_total", "Candidates selected for compilation.")
	c.compiled = counterVec("candidates_compiled_total", "Candidates compiled successfully.")
	c.failed = counterVec("candidates_failed_total", "Candidates whose read or compile failed.")
	c.written = counterVec("outputs_written_total", "Binaries written to the output tree.")
	c.duration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run.",
	})
	c.lastRun = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_success",
		Help:      "1 if the last run finished in the given state.",
	}, []string{"state"})

	c.registry.MustRegister(c.discovered, c.stale, c.compiled, c.failed, c.written, c.duration, c.lastRun)
	return c
}

func counterVec(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, []string{"kind"})
}

// Registry returns the private registry, e.g. for promhttp.HandlerFor.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) Discovered(kind string) {
	if c != nil {
		c.discovered.WithLabelValues(kind).Inc()
	}
}

func (c *Collector) Stale(kind string) {
	if c != nil {
		c.stale.WithLabelValues(kind).Inc()
	}
}

func (c *Collector) Compiled(kind string) {
	if c != nil {
		c.compiled.WithLabelValues(kind).Inc()
	}
}

func (c *Collector) Failed(kind string) {
	if c != nil {
		c.failed.WithLabelValues(kind).Inc()
	}
}

func (c *Collector) Written(kind string) {
	if c != nil {
		c.written.WithLabelValues(kind).Inc()
	}
}

// Finish records the run duration and the final pipeline state.
func (c *Collector) Finish(state string, d time.Duration) {
	if c == nil {
		return
	}
	c.duration.Set(d.Seconds())
	c.lastRun.Reset()
	c.lastRun.WithLabelValues(state).Set(1)
}

// WriteTextfile exports the registry in the node-exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
