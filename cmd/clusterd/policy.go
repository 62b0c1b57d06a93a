package main

import (
	"fmt"
	"time"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/policy/deletion"
	"github.com/cuemby/clusterd/pkg/policy/lbmember"
	"github.com/cuemby/clusterd/pkg/policy/scaling"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagPolicyType    string
	flagPolicyVersion string
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage policy definitions",
	Long: `policy registers and lists Policy definitions (domain.Policy),
independent of binding a policy to a cluster — that happens through
"clusterd cluster attach-policy", which submits CLUSTER_ATTACH_POLICY.`,
}

func init() {
	policyCreateCmd.Flags().StringVar(&flagPolicyType, "type", deletion.Key.Type,
		fmt.Sprintf("Policy kind: %s, %s, or %s", deletion.Key.Type, scaling.Key.Type, lbmember.Key.Type))
	policyCreateCmd.Flags().StringVar(&flagPolicyVersion, "version", deletion.Key.Version, "Policy kind version")

	policyCmd.AddCommand(policyCreateCmd, policyListCmd, policyGetCmd)
}

var policyCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Register a policy definition",
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

		p := &domain.Policy{
			ID:        uuid.New().String(),
			Name:      args[0],
			Type:      flagPolicyType,
			Version:   flagPolicyVersion,
			Spec:      map[string]any{},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := e.store.CreatePolicy(p); err != nil {
			return err
		}
		fmt.Printf("created policy %s (%s)\n", p.ID, p.Name)
		return nil
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policy definitions",
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

		policies, err := e.store.ListPolicies()
		if err != nil {
			return err
		}
		for _, p := range policies {
			fmt.Printf("%-36s %-20s type=%s version=%s\n", p.ID, p.Name, p.Type, p.Version)
		}
		return nil
	},
}

var policyGetCmd = &cobra.Command{
	Use:   "get POLICY_ID",
	Short: "Show one policy definition",
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

		p, err := e.store.GetPolicy(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%+v\n", *p)
		return nil
	},
}
