package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/spf13/cobra"
)

var receiverCmd = &cobra.Command{
	Use:   "receiver",
	Short: "Manage webhook receivers",
	Long: `receiver registers external triggers pre-bound to a cluster, an
action, and a caller's identity; "notify" fires the bound action the
same way any other caller would submit it, under the receiver owner's
identity rather than the webhook caller's.`,
}

func init() {
	receiverCmd.AddCommand(receiverCreateCmd, receiverNotifyCmd, receiverListCmd, receiverDeleteCmd)
}

var receiverCreateCmd = &cobra.Command{
	Use:   "create NAME CLUSTER_ID ACTION_NAME",
	Short: "Register a receiver bound to a cluster and action",
	Args:  cobra.ExactArgs(3),
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

		ctx := withIdentity(context.Background())
		rec, err := e.receivers.Create(ctx, args[0], args[1], args[2], nil)
		if err != nil {
			return err
		}
		fmt.Printf("created receiver %s (%s) -> %s on %s\n", rec.ID, rec.Name, rec.ActionName, rec.ClusterID)
		fmt.Printf("  channel: %v\n", rec.Channel)
		return nil
	},
}

var receiverNotifyCmd = &cobra.Command{
	Use:   "notify RECEIVER_ID",
	Short: "Fire a receiver's bound action and wait for it to reach a terminal state",
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

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		a, err := submitAndWait(ctx, e, func(ctx context.Context) (*domain.Action, error) {
			return e.receivers.Notify(ctx, args[0], nil)
		})
		if err != nil {
			return err
		}
		printActionResult(a)
		return nil
	},
}

var receiverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered receivers",
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

		recs, err := e.receivers.List()
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Printf("%-36s %-20s cluster=%-20s action=%s\n", r.ID, r.Name, r.ClusterID, r.ActionName)
		}
		return nil
	},
}

var receiverDeleteCmd = &cobra.Command{
	Use:   "delete RECEIVER_ID",
	Short: "Remove a receiver",
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

		return e.receivers.Delete(args[0])
	},
}
