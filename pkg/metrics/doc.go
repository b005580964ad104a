/*
Package metrics provides Prometheus metrics for drex placement decisions.

All collectors are package-level variables registered with the default
registry at init time. Handler exposes them for scraping:

	http.Handle("/metrics", metrics.Handler())

# Metric Catalog

Scheduler:
  - drex_scheduling_latency_seconds{strategy}: decision latency
  - drex_placements_total{strategy,outcome}: outcome is found,
    no_feasible, exhausted or error
  - drex_candidates_evaluated_total{strategy}: scheme/subset candidates
    checked during search
  - drex_predictor_fallbacks_total: performance-aware decisions ranked
    without the predictor
  - drex_placement_reliability: achieved reliability of each placement

Capacity:
  - drex_reserved_bytes_total: bytes committed by placements
  - drex_node_free_bytes{node}: tracker view of each node's free space

# Timing

Timer wraps time.Now for histogram observations:

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.SchedulingLatency, "exhaustive")
*/
package metrics
