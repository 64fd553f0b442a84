package cli

import (
	"context"
	"fmt"

	"github.com/soyeahso/perch/internal/config"
	"github.com/soyeahso/perch/internal/history"
	"github.com/soyeahso/perch/internal/hooks"
	"github.com/soyeahso/perch/internal/selection"
	"github.com/spf13/cobra"
)

func newModelCmd() *cobra.Command {
	var (
		provider string
		roleFlag string
	)

	cmd := &cobra.Command{
		Use:   "model <agent>",
		Short: "Select the agent for a role on a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent := args[0]

			role, ok := selection.ParseRole(roleFlag)
			if !ok {
				return fmt.Errorf("role must be chat or command, got %q", roleFlag)
			}

			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			mgr, err := openManager()
			if err != nil {
				return err
			}
			seedLive(mgr)

			if provider == "" {
				provider = mgr.Provider()
			}
			if provider == "" {
				return fmt.Errorf("no provider selected; run 'perch use <provider>' or pass --provider")
			}

			previous := mgr.Agent(provider, role)
			mgr.SetAgent(provider, agent, role)
			if err := mgr.Save(); err != nil {
				return err
			}

			db, events, err := openHistory(cfg)
			if err != nil {
				log.Warn().Err(err).Msg("history unavailable")
			}
			if db != nil {
				defer db.Close()
			}
			recordEvent(events, history.Event{
				Kind:     history.KindAgentChanged,
				Provider: provider,
				Role:     string(role),
				Agent:    agent,
				Previous: previous,
				Origin:   "cli",
			})

			ctx := context.Background()
			runHooks(ctx, cfg, hooks.EventAgentChanged, map[string]any{
				"provider": provider,
				"role":     string(role),
				"agent":    agent,
				"previous": previous,
			})
			runHooks(ctx, cfg, hooks.EventStateSaved, map[string]any{
				"path": mgr.Path(),
			})

			fmt.Printf("Selected %s agent %s on %s\n", role, agent, provider)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "provider to set the agent for (default: active provider)")
	cmd.Flags().StringVar(&roleFlag, "role", "chat", "agent role (chat, command)")

	return cmd
}
