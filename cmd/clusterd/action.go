package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Inspect actions",
}

func init() {
	actionCmd.AddCommand(actionGetCmd, actionListCmd)
}

var actionGetCmd = &cobra.Command{
	Use:   "get ACTION_ID",
	Short: "Show one action",
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

		a, err := e.actions.Get(args[0])
		if err != nil {
			return err
		}
		printActionResult(a)
		fmt.Printf("  target=%s cause=%s started_at=%s inputs=%v outputs=%v\n", a.TargetID, a.Cause, a.StartedAt, a.Inputs, a.Outputs)
		return nil
	},
}

var actionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every action",
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

		actions, err := e.store.ListActions()
		if err != nil {
			return err
		}
		for _, a := range actions {
			fmt.Printf("%-36s %-24s target=%-20s status=%-10s result=%-8s\n", a.ID, a.ActionName, a.TargetID, a.Status, a.ResultCode)
		}
		return nil
	},
}
