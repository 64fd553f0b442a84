package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/soyeahso/perch/internal/config"
	"github.com/soyeahso/perch/internal/history"
	"github.com/soyeahso/perch/internal/hooks"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh provider availability and reconcile the selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if len(cfg.Providers) == 0 {
				log.Warn().Msg("no providers configured — selection will be emptied")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mgr, err := openManager()
			if err != nil {
				return err
			}

			avail := buildAvailability(ctx, cfg)
			mgr.Reconcile(avail.Providers, avail.Agents)
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
				Kind:     history.KindSyncCompleted,
				Provider: mgr.Provider(),
				Origin:   "cli",
			})

			runHooks(ctx, cfg, hooks.EventSyncCompleted, map[string]any{
				"provider":  mgr.Provider(),
				"providers": avail.Providers,
			})
			runHooks(ctx, cfg, hooks.EventStateSaved, map[string]any{
				"path": mgr.Path(),
			})

			fmt.Printf("Synced %d provider(s): %s\n\n", len(avail.Providers), strings.Join(avail.Providers, ", "))
			printSnapshot(mgr.Live())
			return nil
		},
	}
}
