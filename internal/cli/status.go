package cli

import (
	"fmt"

	"github.com/soyeahso/perch/internal/config"
	"github.com/soyeahso/perch/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Perch status and configuration summary",
		RunE: func(*cobra.Command, []string) error {
			fmt.Printf("Perch %s (commit %s)\n\n", version.Version, version.ShortCommit())
			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n\n", paths.Logs)

			// A missing file loads as defaults, so errors here are real.
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:  error loading: %v\n", err)
				return nil
			}

			printConfigSummary(cfg)
			printSelectionSummary()

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}
			return nil
		},
	}
}

func printConfigSummary(cfg config.Config) {
	fmt.Printf("Gateway: port=%d bind=%s auth=%s\n",
		cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode)

	if cfg.History.Enabled {
		fmt.Printf("History: enabled keep=%d\n", cfg.History.Keep)
	} else {
		fmt.Println("History: disabled")
	}

	if len(cfg.Providers) == 0 {
		fmt.Println("Provider: (none configured)")
		return
	}
	for _, p := range cfg.Providers {
		agents := len(p.Agents) + len(p.ChatAgents) + len(p.CommandAgents)
		if p.Discover {
			fmt.Printf("Provider: id=%s api=%s discover=true agents=%d\n", p.ID, p.API, agents)
		} else {
			fmt.Printf("Provider: id=%s agents=%d\n", p.ID, agents)
		}
	}
}

func printSelectionSummary() {
	mgr, err := openManager()
	if err != nil {
		fmt.Printf("\nSelection: error loading: %v\n", err)
		return
	}
	fmt.Println()
	printSnapshot(mgr.Persisted())
}
