package main

import (
	"fmt"
	"os"

	"github.com/cuemby/drex/pkg/config"
	"github.com/cuemby/drex/pkg/events"
	"github.com/cuemby/drex/pkg/log"
	"github.com/cuemby/drex/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "drex",
	Short: "drex - reliability-aware placement for redundant storage",
	Long: `drex decides how a file is split and where its fragments go.

For every file it picks a K-of-N scheme and N storage nodes so that the
file survives with at least the requested probability, while keeping the
bytes stored across the cluster low.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logCfg := cfg.LogConfig()
		if cmd.Flags().Changed("log-level") {
			level, _ := cmd.Flags().GetString("log-level")
			logCfg.Level = log.ParseLevel(level)
		}
		if cmd.Flags().Changed("log-json") {
			logCfg.JSONOutput, _ = cmd.Flags().GetBool("log-json")
		}
		logCfg.Output = os.Stderr
		log.Init(logCfg)
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"drex version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("data-dir", "./drex-data", "Data directory for the node inventory and placements")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Session file with scheduler and predictor settings")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log in JSON format")

	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(placementCmd)
	rootCmd.AddCommand(reliabilityCmd)
	rootCmd.AddCommand(simulateCmd)
}

// loadConfig reads --config, or returns defaults when it is unset
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func openStore(cmd *cobra.Command) (*storage.BoltStore, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return storage.NewBoltStore(dataDir)
}

// startEventLog runs a broker whose events are written to the debug log.
// The returned stop func delivers queued events before returning.
func startEventLog() (*events.Broker, func()) {
	broker := events.NewBroker()
	sub := broker.Subscribe()
	broker.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger := log.WithComponent("events")
		for ev := range sub {
			fields := make(map[string]interface{}, len(ev.Metadata))
			for k, v := range ev.Metadata {
				fields[k] = v
			}
			logger.Debug().
				Str("event", string(ev.Type)).
				Str("event_id", ev.ID).
				Fields(fields).
				Msg(ev.Message)
		}
	}()

	return broker, func() {
		broker.Stop()
		broker.Unsubscribe(sub)
		<-done
	}
}
