package cli

import (
	"context"
	"fmt"

	"github.com/soyeahso/perch/internal/config"
	"github.com/soyeahso/perch/internal/history"
	"github.com/soyeahso/perch/internal/hooks"
	"github.com/spf13/cobra"
)

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <provider>",
		Short: "Select the active provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]

			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			mgr, err := openManager()
			if err != nil {
				return err
			}
			seedLive(mgr)

			// The setter is permissive; only warn when the provider is not
			// in the config so typos are visible.
			if cfg.Provider(provider) == nil {
				log.Warn().Str("provider", provider).Msg("provider is not configured")
			}

			previous := mgr.Provider()
			mgr.SetProvider(provider)
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
				Kind:     history.KindProviderChanged,
				Provider: provider,
				Previous: previous,
				Origin:   "cli",
			})

			ctx := context.Background()
			runHooks(ctx, cfg, hooks.EventProviderChanged, map[string]any{
				"provider": provider,
				"previous": previous,
			})
			runHooks(ctx, cfg, hooks.EventStateSaved, map[string]any{
				"path": mgr.Path(),
			})

			if previous != "" && previous != provider {
				fmt.Printf("Selected provider %s (was %s)\n", provider, previous)
			} else {
				fmt.Printf("Selected provider %s\n", provider)
			}
			return nil
		},
	}
}
