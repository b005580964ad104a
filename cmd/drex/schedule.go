package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/cuemby/drex/pkg/capacity"
	"github.com/cuemby/drex/pkg/config"
	"github.com/cuemby/drex/pkg/scheduler"
	"github.com/cuemby/drex/pkg/storage"
	"github.com/cuemby/drex/pkg/types"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule --size SIZE --threshold P",
	Short: "Place one file on the inventory",
	Long: `Choose a K-of-N scheme and nodes for one file and commit it.

The placement is recorded and the chosen nodes' free capacity is reduced
in the inventory.

Examples:
  drex schedule --size 300MB --threshold 0.97
  drex schedule --size 1GB --threshold 0.999 --strategy performance -c session.yaml`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().String("size", "", "File size, e.g. 300MB (required)")
	scheduleCmd.Flags().Float64("threshold", 0, "Required survival probability in (0,1) (required)")
	scheduleCmd.Flags().String("strategy", "", "Placement strategy: random, exhaustive or performance (default from config)")
	scheduleCmd.Flags().String("file-id", "", "File identifier (default: random UUID)")
	_ = scheduleCmd.MarkFlagRequired("size")
	_ = scheduleCmd.MarkFlagRequired("threshold")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	sizeFlag, _ := cmd.Flags().GetString("size")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	strategyName, _ := cmd.Flags().GetString("strategy")
	fileID, _ := cmd.Flags().GetString("file-id")

	size, err := datasize.ParseString(sizeFlag)
	if err != nil {
		return fmt.Errorf("invalid --size %q: %w", sizeFlag, err)
	}
	if fileID == "" {
		fileID = uuid.New().String()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	strategy, err := buildStrategy(cfg, strategyName)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	nodes, err := store.NodeSet()
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("inventory is empty, run 'drex node import' first")
	}

	broker, stop := startEventLog()
	defer stop()

	sched, err := scheduler.NewScheduler(nodes,
		scheduler.WithRecorder(store),
		scheduler.WithBroker(broker),
	)
	if err != nil {
		return err
	}

	placement, err := sched.Schedule(fileID, size.Bytes(), threshold, strategy)
	if err != nil {
		return err
	}

	if err := writeBack(store, sched.Tracker()); err != nil {
		return err
	}

	fmt.Println("✓ Placement committed")
	fmt.Printf("  Placement ID: %s\n", placement.ID)
	fmt.Printf("  File: %s (%s)\n", placement.FileID, size.HR())
	fmt.Printf("  Scheme: %s\n", placement.Scheme)
	fmt.Printf("  Fragment size: %s\n", datasize.ByteSize(placement.FragmentSize).HR())
	fmt.Printf("  Nodes: %s\n", joinIDs(placement.Nodes))
	fmt.Printf("  Reliability: %s (threshold %s)\n", formatProb(placement.Reliability), formatProb(threshold))
	if placement.PredictedDuration > 0 {
		fmt.Printf("  Predicted transfer: %s\n", placement.PredictedDuration)
	}
	return nil
}

// buildStrategy fits the predictor only when the performance strategy needs it
func buildStrategy(cfg *config.Config, name string) (scheduler.Strategy, error) {
	if name == "" {
		name = cfg.Scheduler.Strategy
	}
	if name != scheduler.StrategyPerformance {
		return cfg.NewStrategy(name, nil)
	}
	pred, err := cfg.NewPredictor()
	if err != nil {
		return nil, err
	}
	return cfg.NewStrategy(name, pred)
}

// writeBack persists the session's remaining capacities to the inventory
func writeBack(store storage.Store, tracker *capacity.Tracker) error {
	if err := store.UpdateCapacities(tracker.Snapshot()); err != nil {
		return fmt.Errorf("failed to update node capacities: %w", err)
	}
	return nil
}

// Placement commands
var placementCmd = &cobra.Command{
	Use:   "placement",
	Short: "Inspect committed placements",
}

var placementListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List committed placements",
	RunE: func(cmd *cobra.Command, args []string) error {
		fileID, _ := cmd.Flags().GetString("file-id")

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		var placements []*types.Placement
		if fileID != "" {
			placements, err = store.ListPlacementsByFile(fileID)
		} else {
			placements, err = store.ListPlacements()
		}
		if err != nil {
			return err
		}
		if len(placements) == 0 {
			fmt.Println("No placements found")
			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"ID", "File", "Size", "Scheme", "Nodes", "Reliability", "Strategy", "Created"})
		table.SetAutoWrapText(false)
		for _, p := range placements {
			table.Append([]string{
				shortID(p.ID),
				p.FileID,
				datasize.ByteSize(p.FileSize).HR(),
				p.Scheme.String(),
				joinIDs(p.Nodes),
				formatProb(p.Reliability),
				p.Strategy,
				p.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	placementCmd.AddCommand(placementListCmd)
	placementListCmd.Flags().String("file-id", "", "Only show placements of this file")
}

func joinIDs(ids []types.NodeID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, ",")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatProb(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
