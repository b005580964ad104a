package main

import (
	"fmt"
	"strconv"

	"github.com/c2h5oh/datasize"
	"github.com/cuemby/drex/pkg/config"
	"github.com/cuemby/drex/pkg/events"
	"github.com/cuemby/drex/pkg/log"
	"github.com/cuemby/drex/pkg/types"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// Node commands
var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage the node inventory",
}

var nodeImportCmd = &cobra.Command{
	Use:   "import -f FILE",
	Short: "Import nodes from a session file",
	Long: `Import the nodes section of a session file into the inventory.

Existing nodes with the same ID are replaced.

Examples:
  drex node import -f cluster.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filename, _ := cmd.Flags().GetString("file")

		cfg, err := config.Load(filename)
		if err != nil {
			return err
		}
		nodes, err := cfg.NodeSet()
		if err != nil {
			return err
		}

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		broker, stop := startEventLog()
		defer stop()

		for i := range nodes {
			node := &nodes[i]
			if err := store.UpdateNode(node); err != nil {
				return fmt.Errorf("failed to import node %s: %w", node.ID, err)
			}
			logger := log.WithNodeID(string(node.ID))
			logger.Info().
				Float64("reliability", node.Reliability).
				Uint64("free_capacity", node.FreeCapacity).
				Msg("node imported")
			broker.Publish(events.NewNodeEvent(events.EventNodeImported, node))
		}

		fmt.Printf("✓ Imported %d nodes\n", len(nodes))
		return nil
	},
}

var nodeListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List nodes in the inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		nodes, err := store.ListNodes()
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			fmt.Println("No nodes found")
			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"ID", "Reliability", "Free", "Bandwidth", "Updated"})
		for _, n := range nodes {
			table.Append([]string{
				string(n.ID),
				strconv.FormatFloat(n.Reliability, 'f', -1, 64),
				datasize.ByteSize(n.FreeCapacity).HR(),
				bandwidth(n.Bandwidth),
				n.UpdatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		return nil
	},
}

var nodeRemoveCmd = &cobra.Command{
	Use:     "rm ID",
	Aliases: []string{"remove"},
	Short:   "Remove a node from the inventory",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		id := types.NodeID(args[0])
		node, err := store.GetNode(id)
		if err != nil {
			return err
		}
		if err := store.DeleteNode(id); err != nil {
			return err
		}

		broker, stop := startEventLog()
		defer stop()
		logger := log.WithNodeID(args[0])
		logger.Info().Msg("node removed")
		broker.Publish(events.NewNodeEvent(events.EventNodeRemoved, node))

		fmt.Printf("✓ Removed node %s\n", args[0])
		return nil
	},
}

func bandwidth(b uint64) string {
	if b == 0 {
		return "-"
	}
	return datasize.ByteSize(b).HR() + "/s"
}

func init() {
	nodeCmd.AddCommand(nodeImportCmd)
	nodeCmd.AddCommand(nodeListCmd)
	nodeCmd.AddCommand(nodeRemoveCmd)

	nodeImportCmd.Flags().StringP("file", "f", "", "Session file to import nodes from (required)")
	_ = nodeImportCmd.MarkFlagRequired("file")
}
