package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/soyeahso/perch/internal/config"
	"github.com/soyeahso/perch/internal/history"
	"github.com/soyeahso/perch/internal/hooks"
	"github.com/soyeahso/perch/internal/selection"
	"github.com/soyeahso/perch/internal/tui"
	"github.com/spf13/cobra"
)

func newPickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pick",
		Short: "Pick the provider and agents interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mgr, err := openManager()
			if err != nil {
				return err
			}

			avail := buildAvailability(ctx, cfg)
			mgr.Reconcile(avail.Providers, avail.Agents)

			res, err := tui.Run(avail, mgr.Live())
			if err != nil {
				return err
			}
			if res.Cancelled {
				fmt.Println("Cancelled.")
				return nil
			}

			db, events, err := openHistory(cfg)
			if err != nil {
				log.Warn().Err(err).Msg("history unavailable")
			}
			if db != nil {
				defer db.Close()
			}

			if res.Provider != "" && res.Provider != mgr.Provider() {
				previous := mgr.Provider()
				mgr.SetProvider(res.Provider)
				recordEvent(events, history.Event{
					Kind:     history.KindProviderChanged,
					Provider: res.Provider,
					Previous: previous,
					Origin:   "tui",
				})
				runHooks(ctx, cfg, hooks.EventProviderChanged, map[string]any{
					"provider": res.Provider,
					"previous": previous,
				})
			}
			applyAgentPick(ctx, cfg, mgr, events, res.Provider, res.ChatAgent, selection.RoleChat)
			applyAgentPick(ctx, cfg, mgr, events, res.Provider, res.CommandAgent, selection.RoleCommand)

			if err := mgr.Save(); err != nil {
				return err
			}
			runHooks(ctx, cfg, hooks.EventStateSaved, map[string]any{
				"path": mgr.Path(),
			})

			printSnapshot(mgr.Live())
			return nil
		},
	}
}

// applyAgentPick records one role's choice from the picker, skipping empty
// results (a stage the picker never reached) and unchanged agents.
func applyAgentPick(ctx context.Context, cfg config.Config, mgr *selection.Manager, events *history.Store, provider, agent string, role selection.Role) {
	if provider == "" || agent == "" || mgr.Agent(provider, role) == agent {
		return
	}
	previous := mgr.Agent(provider, role)
	mgr.SetAgent(provider, agent, role)
	recordEvent(events, history.Event{
		Kind:     history.KindAgentChanged,
		Provider: provider,
		Role:     string(role),
		Agent:    agent,
		Previous: previous,
		Origin:   "tui",
	})
	runHooks(ctx, cfg, hooks.EventAgentChanged, map[string]any{
		"provider": provider,
		"role":     string(role),
		"agent":    agent,
		"previous": previous,
	})
}
