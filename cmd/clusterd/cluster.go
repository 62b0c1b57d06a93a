package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/clusterd/pkg/authctx"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage clusters",
}

var (
	flagProfileID   string
	flagDesired     int
	flagMinSize     int
	flagMaxSize     int
	flagUser        string
	flagProject     string
	flagCount       int
	flagPolicyID    string
	flagPriority    int
	flagLevel       int
	flagCooldownSec int
)

func withIdentity(ctx context.Context) context.Context {
	return authctx.With(ctx, authctx.Context{User: flagUser, Project: flagProject})
}

func init() {
	clusterCmd.PersistentFlags().StringVar(&flagUser, "user", "operator", "Caller identity threaded through authctx")
	clusterCmd.PersistentFlags().StringVar(&flagProject, "project", "default", "Caller project threaded through authctx")

	clusterCreateCmd.Flags().StringVar(&flagProfileID, "profile-id", "", "Profile to instantiate nodes from (required)")
	clusterCreateCmd.Flags().IntVar(&flagDesired, "desired-capacity", 1, "Initial desired capacity")
	clusterCreateCmd.Flags().IntVar(&flagMinSize, "min-size", 0, "Minimum cluster size")
	clusterCreateCmd.Flags().IntVar(&flagMaxSize, "max-size", domain.Unbounded, "Maximum cluster size (-1 = unbounded)")
	_ = clusterCreateCmd.MarkFlagRequired("profile-id")

	clusterScaleOutCmd.Flags().IntVar(&flagCount, "count", 1, "Number of nodes to add")
	clusterScaleInCmd.Flags().IntVar(&flagCount, "count", 1, "Number of nodes to remove")
	clusterResizeCmd.Flags().IntVar(&flagDesired, "desired-capacity", 0, "New desired capacity")

	clusterAttachPolicyCmd.Flags().StringVar(&flagPolicyID, "policy-id", "", "Policy to attach (required)")
	clusterAttachPolicyCmd.Flags().IntVar(&flagPriority, "priority", 0, "Evaluation priority, higher runs first")
	clusterAttachPolicyCmd.Flags().IntVar(&flagLevel, "level", 0, "Policy level")
	clusterAttachPolicyCmd.Flags().IntVar(&flagCooldownSec, "cooldown", 0, "Cooldown in seconds between firings")
	_ = clusterAttachPolicyCmd.MarkFlagRequired("policy-id")

	clusterDetachPolicyCmd.Flags().StringVar(&flagPolicyID, "policy-id", "", "Policy to detach (required)")
	_ = clusterDetachPolicyCmd.MarkFlagRequired("policy-id")

	clusterCmd.AddCommand(
		clusterCreateCmd, clusterDeleteCmd, clusterListCmd, clusterGetCmd,
		clusterResizeCmd, clusterScaleOutCmd, clusterScaleInCmd,
		clusterAttachPolicyCmd, clusterDetachPolicyCmd,
	)
}

var clusterCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Submit CLUSTER_CREATE and wait for it to reach a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		e, err := buildEnv(cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		name := args[0]
		c := &domain.Cluster{
			ID:              name,
			Name:            name,
			ProfileID:       flagProfileID,
			DesiredCapacity: flagDesired,
			MinSize:         flagMinSize,
			MaxSize:         flagMaxSize,
			Owner:           domain.Owner{User: flagUser, Project: flagProject},
		}
		if err := domain.ValidateCapacity(c.MinSize, c.DesiredCapacity, c.MaxSize); err != nil {
			return err
		}
		if err := e.store.CreateCluster(c); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(withIdentity(context.Background()), 2*time.Minute)
		defer cancel()
		a, err := submitAndWait(ctx, e, func(ctx context.Context) (*domain.Action, error) {
			return e.clusterRT.Submit(ctx, c.ID, domain.ClusterCreate, nil)
		})
		if err != nil {
			return err
		}
		printActionResult(a)
		return nil
	},
}

var clusterDeleteCmd = &cobra.Command{
	Use:   "delete CLUSTER_ID",
	Short: "Submit CLUSTER_DELETE and wait for it to reach a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimpleClusterAction(args[0], domain.ClusterDelete, nil)
	},
}

var clusterResizeCmd = &cobra.Command{
	Use:   "resize CLUSTER_ID",
	Short: "Submit CLUSTER_RESIZE and wait for it to reach a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimpleClusterAction(args[0], domain.ClusterResize, map[string]any{"desired_capacity": flagDesired})
	},
}

var clusterScaleOutCmd = &cobra.Command{
	Use:   "scale-out CLUSTER_ID",
	Short: "Submit CLUSTER_SCALE_OUT and wait for it to reach a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimpleClusterAction(args[0], domain.ClusterScaleOut, map[string]any{"count": flagCount})
	},
}

var clusterScaleInCmd = &cobra.Command{
	Use:   "scale-in CLUSTER_ID",
	Short: "Submit CLUSTER_SCALE_IN and wait for it to reach a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimpleClusterAction(args[0], domain.ClusterScaleIn, map[string]any{"count": flagCount})
	},
}

var clusterAttachPolicyCmd = &cobra.Command{
	Use:   "attach-policy CLUSTER_ID",
	Short: "Submit CLUSTER_ATTACH_POLICY and wait for it to reach a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimpleClusterAction(args[0], domain.ClusterAttachPolicy, map[string]any{
			"policy_id": flagPolicyID,
			"priority":  flagPriority,
			"level":     flagLevel,
			"cooldown":  flagCooldownSec,
		})
	},
}

var clusterDetachPolicyCmd = &cobra.Command{
	Use:   "detach-policy CLUSTER_ID",
	Short: "Submit CLUSTER_DETACH_POLICY and wait for it to reach a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimpleClusterAction(args[0], domain.ClusterDetachPolicy, map[string]any{"policy_id": flagPolicyID})
	},
}

func runSimpleClusterAction(clusterID, actionName string, inputs map[string]any) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	e, err := buildEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(withIdentity(context.Background()), 2*time.Minute)
	defer cancel()
	a, err := submitAndWait(ctx, e, func(ctx context.Context) (*domain.Action, error) {
		return e.clusterRT.Submit(ctx, clusterID, actionName, inputs)
	})
	if err != nil {
		return err
	}
	printActionResult(a)
	return nil
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clusters",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		e, err := buildEnv(cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		clusters, err := e.store.ListClusters()
		if err != nil {
			return err
		}
		for _, c := range clusters {
			fmt.Printf("%-20s %-20s status=%-10s desired=%d min=%d max=%d\n", c.ID, c.Name, c.Status, c.DesiredCapacity, c.MinSize, c.MaxSize)
		}
		return nil
	},
}

var clusterGetCmd = &cobra.Command{
	Use:   "get CLUSTER_ID",
	Short: "Show one cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		e, err := buildEnv(cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		c, err := e.store.GetCluster(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%+v\n", *c)
		return nil
	},
}
