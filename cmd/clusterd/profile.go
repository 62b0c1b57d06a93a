package main

import (
	"fmt"
	"time"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var flagProfileType string

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage node profiles",
	Long: `profile registers and lists Profile definitions (domain.Profile),
the template a cluster's nodes are instantiated from via its ProfileKind
(pkg/profile/compute.go, lbmember.go).`,
}

func init() {
	profileCreateCmd.Flags().StringVar(&flagProfileType, "type", "compute", "Profile kind: compute or loadbalancer-member")
	profileCmd.AddCommand(profileCreateCmd, profileListCmd, profileGetCmd)
}

var profileCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Register a profile definition",
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

		p := &domain.Profile{
			ID:        uuid.New().String(),
			Name:      args[0],
			Type:      flagProfileType,
			Version:   "1.0",
			Spec:      map[string]any{},
			Context:   map[string]any{},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := e.store.CreateProfile(p); err != nil {
			return err
		}
		fmt.Printf("created profile %s (%s)\n", p.ID, p.Name)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profile definitions",
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

		profiles, err := e.store.ListProfiles()
		if err != nil {
			return err
		}
		for _, p := range profiles {
			fmt.Printf("%-36s %-20s type=%s version=%s\n", p.ID, p.Name, p.Type, p.Version)
		}
		return nil
	},
}

var profileGetCmd = &cobra.Command{
	Use:   "get PROFILE_ID",
	Short: "Show one profile definition",
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

		p, err := e.store.GetProfile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%+v\n", *p)
		return nil
	},
}
