/*
Package scheduler chooses where the fragments of a file are stored.

Given a node set and a file, a strategy picks a K-of-N scheme and N distinct
nodes such that the probability that at least K of them survive meets the
caller's threshold, and every chosen node has room for one fragment of
ceil(size/K) bytes. The chosen capacity is reserved in the same call, so a
returned placement is already committed.

# Architecture

	┌──────────────────────────────────────────────────────────┐
	│                  Scheduler.Schedule                      │
	│   validate request → Strategy.Select → record → publish  │
	└────────────────┬─────────────────────────────────────────┘
	                 │
	    ┌────────────┼─────────────────────┐
	    ▼            ▼                     ▼
	┌────────┐  ┌────────────┐  ┌──────────────────┐
	│ Random │  │ Exhaustive │  │ PerformanceAware │
	└───┬────┘  └─────┬──────┘  └────────┬─────────┘
	    │             │   search + rank  │ + Predictor
	    └─────────────┴────────┬─────────┘
	                           ▼
	              capacity.Tracker.TryReserve

# Strategies

Random draws n in [2, m], k in [1, n-1] and a random subset, and keeps the
first draw that meets the threshold and reserves cleanly. The number of
draws is bounded; running out returns ErrExhausted.

Exhaustive evaluates every scheme over every subset when the node set has
at most limit nodes (DefaultExhaustiveLimit). Larger sets are searched per
k over the most reliable nodes that can hold the fragment, growing the
subset one node at a time so each n costs a single recurrence step.
Feasible candidates are ranked by storage overhead:

 1. total stored bytes, n*ceil(size/k), ascending
 2. fewer fragments
 3. higher k/n
 4. higher reliability
 5. rendezvous weight of the subset for the file ID, then node IDs

PerformanceAware searches the same space and ranks by the duration a
predictor.Predictor estimates for each scheme. If the predictor fails for
any scheme the whole decision falls back to overhead ranking.

# Committing

Search reads free capacity without holding the tracker lock. Candidates are
then reserved in rank order; a capacity shortfall, typically a concurrent
session winning the same bytes, moves on to the next candidate. If no
candidate commits the error wraps ErrNoFeasiblePlacement and the last
*capacity.InsufficientError seen.

# Usage

	tracker := capacity.NewTracker(nodes)
	sched, err := scheduler.NewScheduler(nodes,
		scheduler.WithTracker(tracker),
		scheduler.WithRecorder(store),
	)
	if err != nil {
		return err
	}

	placement, err := sched.Schedule("file-1", 300, 0.97, scheduler.NewExhaustive(0))
	switch {
	case errors.Is(err, scheduler.ErrNoFeasiblePlacement):
		// threshold unreachable or nodes full
	case err != nil:
		return err
	}
	fmt.Println(placement.Scheme, placement.Nodes)

Schedule is safe for concurrent use. Strategies hold no per-request state;
Random serializes access to its random source.
*/
package scheduler
