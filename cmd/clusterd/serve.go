package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/clusterd/pkg/config"
	"github.com/cuemby/clusterd/pkg/election"
	"github.com/cuemby/clusterd/pkg/log"
	"github.com/cuemby/clusterd/pkg/metrics"
	"github.com/spf13/cobra"
)

var (
	flagMetricsAddr string
	flagBootstrap   bool
	flagElection    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler dispatch loop, serving READY actions until stopped",
	Long: `serve opens the bbolt store, wires the Lock Manager, Action
Store, Scheduler, and Node/Cluster Action Runtimes, and runs the
dispatch loop (C3/C8) until interrupted. If --election is set, dispatch
only runs while this process holds raft leadership (mirroring the
teacher's single-active-manager raft gating).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "127.0.0.1:9090", "Address to serve /metrics, /health, /ready, /live on")
	serveCmd.Flags().BoolVar(&flagBootstrap, "bootstrap", true, "Bootstrap a new single-node raft group if none exists (only with --election)")
	serveCmd.Flags().BoolVar(&flagElection, "election", false, "Gate dispatch behind raft leader election")
}

func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.LoadFile(flagConfig)
	}
	cfg := config.Default()
	cfg.DataDir = flagDataDir
	cfg.BindAddr = flagBindAddr
	cfg.NodeID = flagNodeID
	cfg.LogLevel = log.Level(flagLogLevel)
	cfg.LogJSON = flagLogJSON
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	e, err := buildEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	logger := log.WithComponent("serve")

	var elector *election.Elector
	if flagElection {
		elector, err = election.New(election.Config{
			NodeID:   cfg.NodeID,
			BindAddr: cfg.BindAddr,
			DataDir:  cfg.DataDir + "/raft",
		})
		if err != nil {
			return err
		}
		defer elector.Shutdown()
		if flagBootstrap {
			if err := elector.Bootstrap(); err != nil {
				logger.Warn().Err(err).Msg("bootstrap raft group failed (may already exist)")
			}
		}
	}

	// elector is a *election.Elector that may be nil; boxing a nil
	// pointer into the LeaderChecker interface directly would leave a
	// non-nil interface wrapping a nil receiver, so only assign it when
	// election is actually enabled.
	var leaderChecker metrics.LeaderChecker
	if flagElection {
		leaderChecker = elector
	}
	collector := metrics.NewCollector(e.store, leaderChecker)
	collector.Start()
	defer collector.Stop()

	metrics.RegisterComponent("store", true, "")
	metrics.RegisterComponent("scheduler", true, "")
	if flagElection {
		metrics.RegisterComponent("raft", false, "waiting for leadership")
	} else {
		metrics.RegisterComponent("raft", true, "election disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	metricsSrv := &http.Server{Addr: flagMetricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagElection {
		go func() {
			for leader := range elector.LeaderCh() {
				metrics.UpdateComponent("raft", leader, "")
				logger.Info().Bool("leader", leader).Msg("leadership changed")
			}
		}()
	}

	logger.Info().Str("data_dir", cfg.DataDir).Msg("clusterd serving")
	var runErr error
	if elector == nil {
		runErr = e.scheduler.Run(ctx)
	} else {
		runErr = runGatedByLeadership(ctx, elector, e.scheduler)
	}
	_ = metricsSrv.Shutdown(context.Background())
	return runErr
}

// runGatedByLeadership runs the Scheduler's dispatch loop only while
// this process holds raft leadership, starting and stopping it as
// LeaderCh toggles, until ctx is cancelled (§8's single-active-
// dispatcher requirement, mirroring the teacher's IsLeader-gated
// manager loop).
func runGatedByLeadership(ctx context.Context, elector *election.Elector, sched interface {
	Run(context.Context) error
}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case leader, ok := <-elector.LeaderCh():
			if !ok {
				return nil
			}
			if !leader {
				continue
			}
			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- sched.Run(runCtx) }()
			for leader {
				select {
				case <-ctx.Done():
					cancel()
					<-done
					return nil
				case l, ok := <-elector.LeaderCh():
					if !ok || !l {
						leader = false
					}
				}
			}
			cancel()
			<-done
		}
	}
}
