// Command clusterd wires the Lock Manager, Action Store, Scheduler,
// Node/Cluster Action Runtimes, and Policy Engine into a single
// operator binary, adapted from the teacher's cmd/warren/main.go
// cobra composition root. Unlike Warren, clusterd exposes no
// HTTP/REST or gRPC surface (out of scope per spec §1): every
// subcommand below either runs the long-lived dispatch loop (serve)
// or opens the same bbolt store directly to submit one action and
// wait for its terminal state, which is the thin "operator CLI" the
// spec calls for rather than a client of a running daemon.
package main

import (
	"fmt"
	"os"

	"github.com/cuemby/clusterd/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build).
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	flagDataDir   string
	flagBindAddr  string
	flagNodeID    string
	flagConfig    string
	flagLogLevel  string
	flagLogJSON   bool
	flagUseDriver string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "clusterd",
	Short: "clusterd - a clustering-as-a-service control plane core",
	Long: `clusterd runs the Lock Manager, Action Store, Scheduler, and
Node/Cluster Action Runtimes behind a single embedded bbolt store,
evaluating attached policies at each cluster action's BEFORE/AFTER
checkpoints.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("clusterd version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))

	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "./data", "Path to the bbolt data directory")
	rootCmd.PersistentFlags().StringVar(&flagBindAddr, "bind-addr", "127.0.0.1:7946", "Raft bind address for leader election")
	rootCmd.PersistentFlags().StringVar(&flagNodeID, "node-id", "node-1", "This process instance's raft node id")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Optional YAML config file overriding defaults")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&flagUseDriver, "driver", "fake", "Infrastructure Driver backend: fake or containerd")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(actionCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(receiverCmd)
}

func initLogging() {
	log.Init(log.Config{
		Level:      log.Level(flagLogLevel),
		JSONOutput: flagLogJSON,
	})
}
