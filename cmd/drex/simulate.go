package main

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/cuemby/drex/pkg/log"
	"github.com/cuemby/drex/pkg/metrics"
	"github.com/cuemby/drex/pkg/scheduler"
	"github.com/cuemby/drex/pkg/types"
	"github.com/olekukonko/tablewriter"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Schedule a synthetic workload against one shared tracker",
	Long: `Schedule many files of random size concurrently and report the outcome.

Nodes come from the session file when it lists any, otherwise from the
inventory. Nothing is written back.

Examples:
  drex simulate -c cluster.yaml --files 1000 --threshold 0.999
  drex simulate --strategy random --workers 16 --metrics-addr :9090`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().Int("files", 100, "Number of files to schedule")
	simulateCmd.Flags().String("min-size", "1MB", "Minimum file size")
	simulateCmd.Flags().String("max-size", "100MB", "Maximum file size")
	simulateCmd.Flags().Float64("threshold", 0.99, "Required survival probability in (0,1)")
	simulateCmd.Flags().String("strategy", "", "Placement strategy (default from config)")
	simulateCmd.Flags().Int("workers", 8, "Concurrent scheduling sessions")
	simulateCmd.Flags().Int64("seed", 0, "Seed for file sizes (0 = time-based)")
	simulateCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address and wait for Ctrl+C")
}

type simulationStats struct {
	mu          sync.Mutex
	placed      int
	infeasible  int
	exhausted   int
	failed      int
	logical     uint64
	stored      uint64
	reliability float64
	schemes     map[types.Scheme]int
}

func (s *simulationStats) add(size uint64, p *types.Placement, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil:
		s.placed++
		s.logical += size
		s.stored += p.Scheme.StoredBytes(size)
		s.reliability += p.Reliability
		s.schemes[p.Scheme]++
	case errors.Is(err, scheduler.ErrNoFeasiblePlacement):
		s.infeasible++
	case errors.Is(err, scheduler.ErrExhausted):
		s.exhausted++
	default:
		s.failed++
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	files, _ := cmd.Flags().GetInt("files")
	minFlag, _ := cmd.Flags().GetString("min-size")
	maxFlag, _ := cmd.Flags().GetString("max-size")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	strategyName, _ := cmd.Flags().GetString("strategy")
	workers, _ := cmd.Flags().GetInt("workers")
	seed, _ := cmd.Flags().GetInt64("seed")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	minSize, err := datasize.ParseString(minFlag)
	if err != nil {
		return fmt.Errorf("invalid --min-size %q: %w", minFlag, err)
	}
	maxSize, err := datasize.ParseString(maxFlag)
	if err != nil {
		return fmt.Errorf("invalid --max-size %q: %w", maxFlag, err)
	}
	if maxSize < minSize {
		return fmt.Errorf("--max-size %s is below --min-size %s", maxSize.HR(), minSize.HR())
	}
	if files <= 0 || workers <= 0 {
		return fmt.Errorf("--files and --workers must be positive")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	strategy, err := buildStrategy(cfg, strategyName)
	if err != nil {
		return err
	}

	nodes, err := cfg.NodeSet()
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		nodes, err = store.NodeSet()
		store.Close()
		if err != nil {
			return err
		}
	}
	if len(nodes) == 0 {
		return fmt.Errorf("no nodes: list them in the session file or run 'drex node import'")
	}

	var srv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Logger.Error().Err(err).Str("addr", metricsAddr).Msg("metrics server failed")
			}
		}()
	}

	broker, stop := startEventLog()
	defer stop()

	sched, err := scheduler.NewScheduler(nodes, scheduler.WithBroker(broker))
	if err != nil {
		return err
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	span := uint64(maxSize - minSize)

	stats := &simulationStats{schemes: make(map[types.Scheme]int)}
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < files; i++ {
		size := minSize.Bytes()
		if span > 0 {
			size += uint64(rng.Int63n(int64(span) + 1))
		}
		fileID := fmt.Sprintf("sim-%06d", i)

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			p, err := sched.Schedule(fileID, size, threshold, strategy)
			stats.add(size, p, err)
		}); err != nil {
			wg.Done()
			return fmt.Errorf("failed to submit file %s: %w", fileID, err)
		}
	}
	wg.Wait()
	elapsed := time.Since(start)

	printSummary(cmd, strategy.Name(), files, elapsed, stats)
	printCapacity(cmd, nodes, sched.Tracker().Snapshot())

	if srv == nil {
		return nil
	}

	fmt.Printf("\nServing metrics on %s/metrics. Press Ctrl+C to stop.\n", metricsAddr)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	return srv.Close()
}

func printSummary(cmd *cobra.Command, strategy string, files int, elapsed time.Duration, s *simulationStats) {
	overhead := "-"
	meanRel := "-"
	if s.placed > 0 {
		overhead = strconv.FormatFloat(float64(s.stored)/float64(s.logical), 'f', 3, 64)
		meanRel = strconv.FormatFloat(s.reliability/float64(s.placed), 'f', 6, 64)
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Strategy", "Files", "Placed", "No feasible", "Exhausted", "Errors", "Stored", "Overhead", "Mean reliability", "Elapsed"})
	table.Append([]string{
		strategy,
		strconv.Itoa(files),
		strconv.Itoa(s.placed),
		strconv.Itoa(s.infeasible),
		strconv.Itoa(s.exhausted),
		strconv.Itoa(s.failed),
		datasize.ByteSize(s.stored).HR(),
		overhead,
		meanRel,
		elapsed.Round(time.Millisecond).String(),
	})
	table.Render()

	if len(s.schemes) == 0 {
		return
	}
	schemes := tablewriter.NewWriter(cmd.OutOrStdout())
	schemes.SetHeader([]string{"Scheme", "Files"})
	order := make([]types.Scheme, 0, len(s.schemes))
	for scheme := range s.schemes {
		order = append(order, scheme)
	}
	sort.Slice(order, func(i, j int) bool {
		if s.schemes[order[i]] != s.schemes[order[j]] {
			return s.schemes[order[i]] > s.schemes[order[j]]
		}
		return order[i].String() < order[j].String()
	})
	for _, scheme := range order {
		schemes.Append([]string{scheme.String(), strconv.Itoa(s.schemes[scheme])})
	}
	schemes.Render()
}

func printCapacity(cmd *cobra.Command, nodes types.NodeSet, free map[types.NodeID]uint64) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Node", "Reliability", "Capacity", "Free", "Used"})
	for _, n := range nodes {
		left := free[n.ID]
		used := "0%"
		if n.FreeCapacity > 0 {
			used = strconv.FormatFloat(100*float64(n.FreeCapacity-left)/float64(n.FreeCapacity), 'f', 1, 64) + "%"
		}
		table.Append([]string{
			string(n.ID),
			formatProb(n.Reliability),
			datasize.ByteSize(n.FreeCapacity).HR(),
			datasize.ByteSize(left).HR(),
			used,
		})
	}
	table.Render()
}
