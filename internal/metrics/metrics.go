// Package metrics exposes render and batch metrics in Prometheus format.
// The CLI writes them to a textfile for node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/linuxmatters/livetake/internal/humanize"
)

// Collector owns a private registry so tests and multiple batches in one
// process never collide with the global default registry.
type Collector struct {
	registry *prometheus.Registry

	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	renderAttempts *prometheus.CounterVec
	batchFiles     *prometheus.GaugeVec
	batchSuccess   *prometheus.GaugeVec
	batchDuration  *prometheus.GaugeVec
}

// New registers all metrics on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		renders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livetake_renders_total",
			Help: "Rendered clips by scenario profile and outcome",
		}, []string{"profile", "outcome"}),
		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "livetake_render_duration_seconds",
			Help:    "Wall-clock time per clip, including retries",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300, 600},
		}, []string{"profile"}),
		renderAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livetake_render_attempts_total",
			Help: "Engine invocations, retries included",
		}, []string{"profile"}),
		batchFiles: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "livetake_batch_files",
			Help: "Files in the most recent batch by state",
		}, []string{"batch", "state"}),
		batchSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "livetake_batch_success_ratio",
			Help: "Success ratio (0-1) of the most recent batch",
		}, []string{"batch"}),
		batchDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "livetake_batch_duration_seconds",
			Help: "Wall-clock duration of the most recent batch",
		}, []string{"batch"}),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Outcome label for a result.
func Outcome(r humanize.RenderResult) string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Success:
		return "success"
	case r.ErrorKind != "":
		return string(r.ErrorKind)
	default:
		return "failed"
	}
}

// ObserveResult records one finished task. Safe on a nil Collector.
func (c *Collector) ObserveResult(profile string, r humanize.RenderResult) {
	if c == nil {
		return
	}
	c.renders.WithLabelValues(profile, Outcome(r)).Inc()
	if !r.Skipped {
		c.renderDuration.WithLabelValues(profile).Observe(float64(r.DurationMS) / 1000)
	}
	if r.Attempts > 0 {
		c.renderAttempts.WithLabelValues(profile).Add(float64(r.Attempts))
	}
}

// ObserveBatch records the final counters of a batch. Safe on a nil Collector.
func (c *Collector) ObserveBatch(name string, total, succeeded, failed int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.batchFiles.WithLabelValues(name, "total").Set(float64(total))
	c.batchFiles.WithLabelValues(name, "succeeded").Set(float64(succeeded))
	c.batchFiles.WithLabelValues(name, "failed").Set(float64(failed))
	ratio := 0.0
	if total > 0 {
		ratio = float64(succeeded) / float64(total)
	}
	c.batchSuccess.WithLabelValues(name).Set(ratio)
	c.batchDuration.WithLabelValues(name).Set(elapsed.Seconds())
}

// WriteTextfile writes all metrics atomically in the text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}
