package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics
	SchedulingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drex_scheduling_latency_seconds",
			Help:    "Time taken to reach a placement decision in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	PlacementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drex_placements_total",
			Help: "Total number of placement decisions by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	CandidatesEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drex_candidates_evaluated_total",
			Help: "Total number of (scheme, node subset) candidates evaluated",
		},
		[]string{"strategy"},
	)

	PredictorFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drex_predictor_fallbacks_total",
			Help: "Total number of performance-aware decisions that fell back to overhead ranking",
		},
	)

	// Capacity metrics
	ReservedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drex_reserved_bytes_total",
			Help: "Total number of bytes committed by placements",
		},
	)

	NodeFreeBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "drex_node_free_bytes",
			Help: "Free capacity per node as seen by the tracker",
		},
		[]string{"node"},
	)

	PlacementReliability = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drex_placement_reliability",
			Help:    "Achieved reliability of committed placements",
			Buckets: []float64{0.9, 0.99, 0.999, 0.9999, 0.99999, 1},
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(PlacementsTotal)
	prometheus.MustRegister(CandidatesEvaluated)
	prometheus.MustRegister(PredictorFallbacks)
	prometheus.MustRegister(ReservedBytes)
	prometheus.MustRegister(NodeFreeBytes)
	prometheus.MustRegister(PlacementReliability)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
