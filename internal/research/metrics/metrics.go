// Package metrics exposes Prometheus instrumentation for the research
// orchestration core, grounded on the collector shape in the retrieved
// corpus's pkg/monitoring/metrics.go (a struct of pre-registered
// CounterVec/HistogramVec/Gauge fields built around a service name, plus a
// Handler() exposing /metrics).
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the metrics defined for the Orchestrator, Search
// Dispatcher, Judge, and Synthesizer. None of those components calls the
// Observe methods below.
type Collector struct {
	serviceName string
	registry    *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	iterationsPerRun prometheus.Histogram
	providerCalls    *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	judgeVerdicts    *prometheus.CounterVec
	synthesisMode    *prometheus.CounterVec
	evidenceRetained prometheus.Histogram
}

// New builds and registers a Collector scoped to serviceName. If registry
// is nil, the default Prometheus registry is used; tests pass a fresh
// prometheus.NewRegistry() to avoid cross-test collisions on the global one.
func New(serviceName string, registry *prometheus.Registry) *Collector {
	name := strings.ReplaceAll(serviceName, "-", "_")

	c := &Collector{
		serviceName: name,
		registry:    registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name + "_research_runs_total",
			Help: "Total number of research runs, labeled by terminal outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name + "_research_run_duration_seconds",
			Help:    "Wall-clock duration of a full research run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"outcome"}),
		iterationsPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name + "_research_iterations",
			Help:    "Number of search/judge iterations a run took before synthesis.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name + "_provider_calls_total",
			Help: "Total Search Provider invocations, labeled by provider and outcome.",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name + "_provider_call_duration_seconds",
			Help:    "Search Provider call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		judgeVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name + "_judge_verdicts_total",
			Help: "Judge assessments, labeled by recommendation and whether forced.",
		}, []string{"recommendation", "forced"}),
		synthesisMode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name + "_synthesis_total",
			Help: "Completed syntheses, labeled by mode (normal vs fallback).",
		}, []string{"mode"}),
		evidenceRetained: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name + "_evidence_store_size",
			Help:    "Number of distinct Evidence records retained at synthesis time.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}

	collectors := []prometheus.Collector{
		c.runsTotal,
		c.runDuration,
		c.iterationsPerRun,
		c.providerCalls,
		c.providerLatency,
		c.judgeVerdicts,
		c.synthesisMode,
		c.evidenceRetained,
	}
	if registry != nil {
		registry.MustRegister(collectors...)
	} else {
		prometheus.MustRegister(collectors...)
	}

	return c
}

// Handler exposes the standard Prometheus scrape endpoint handler, backed
// by this Collector's registry (or the default one, if none was given).
func (c *Collector) Handler() http.Handler {
	if c.registry != nil {
		return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// ObserveRun records a completed run's outcome, duration, and iteration count.
func (c *Collector) ObserveRun(outcome string, durationSeconds float64, iterations int) {
	c.runsTotal.WithLabelValues(outcome).Inc()
	c.runDuration.WithLabelValues(outcome).Observe(durationSeconds)
	c.iterationsPerRun.Observe(float64(iterations))
}

// ObserveProviderCall records one Search Provider invocation.
func (c *Collector) ObserveProviderCall(provider, outcome string, durationSeconds float64) {
	c.providerCalls.WithLabelValues(provider, outcome).Inc()
	c.providerLatency.WithLabelValues(provider).Observe(durationSeconds)
}

// ObserveJudgeVerdict records one Judge assessment.
func (c *Collector) ObserveJudgeVerdict(recommendation string, forced bool) {
	c.judgeVerdicts.WithLabelValues(recommendation, boolLabel(forced)).Inc()
}

// ObserveSynthesis records one completed synthesis.
func (c *Collector) ObserveSynthesis(mode string) {
	c.synthesisMode.WithLabelValues(mode).Inc()
}

// ObserveEvidenceRetained records the Evidence Store's final size for a run.
func (c *Collector) ObserveEvidenceRetained(n int) {
	c.evidenceRetained.Observe(float64(n))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
