// Package metrics exposes Prometheus metrics for scoring runs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metrics for the scorer.
type Registry struct {
	registry *prometheus.Registry

	// Pipeline metrics
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	StageDuration  *prometheus.HistogramVec
	BorderValue    prometheus.Gauge
	NodesRanked    prometheus.Gauge
	GroupsRanked   prometheus.Gauge
	EdgesLoaded    prometheus.Gauge
	OracleRounds   prometheus.Gauge
	PersistFailed  prometheus.Counter
	PersistWritten prometheus.Counter
}

// NewRegistry creates a registry with all scorer metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.RunsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sybilrank_runs_total",
			Help: "Total number of scoring runs",
		},
		[]string{"status"},
	)
	r.RunDuration = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sybilrank_run_duration_seconds",
			Help:    "Scoring run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)
	r.StageDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sybilrank_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60},
		},
		[]string{"stage"},
	)
	r.BorderValue = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "sybilrank_border_value",
			Help: "Calibrated sybil rejection border of the last run",
		},
	)
	r.NodesRanked = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "sybilrank_nodes_ranked",
			Help: "Number of identity nodes ranked in the last run",
		},
	)
	r.GroupsRanked = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "sybilrank_groups_ranked",
			Help: "Number of groups ranked in the last run",
		},
	)
	r.EdgesLoaded = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "sybilrank_edges_loaded",
			Help: "Number of verification edges loaded in the last run",
		},
	)
	r.OracleRounds = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "sybilrank_oracle_rounds",
			Help: "Propagation rounds performed by the final ranking pass",
		},
	)
	r.PersistFailed = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "sybilrank_persist_failures_total",
			Help: "Total number of entity score writes that failed",
		},
	)
	r.PersistWritten = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "sybilrank_persist_writes_total",
			Help: "Total number of entity score writes that succeeded",
		},
	)
	return r
}

// RecordRun records one completed run with its status and duration.
func (r *Registry) RecordRun(status string, duration time.Duration) {
	r.RunsTotal.WithLabelValues(status).Inc()
	r.RunDuration.Observe(duration.Seconds())
}

// RecordStage records one pipeline stage duration.
func (r *Registry) RecordStage(stage string, duration time.Duration) {
	r.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}
