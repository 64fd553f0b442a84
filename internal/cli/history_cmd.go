package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/perch/internal/config"
	"github.com/soyeahso/perch/internal/history"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit int
		prune bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent selection changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("history is disabled; enable it with 'perch config set history.enabled true'")
			}

			db, events, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if prune {
				removed, err := events.Prune(cfg.History.Keep)
				if err != nil {
					return err
				}
				fmt.Printf("Pruned %d event(s), keeping the latest %d\n", removed, cfg.History.Keep)
				return nil
			}

			list, err := events.Recent(limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No events recorded yet.")
				return nil
			}

			for _, ev := range list {
				fmt.Printf("%s  %-17s %s\n",
					ev.CreatedAt.Format(time.DateTime), ev.Kind, describeEvent(ev))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of events to show")
	cmd.Flags().BoolVar(&prune, "prune", false, "trim stored events to the configured keep count")

	return cmd
}

// describeEvent renders the per-kind detail column of a history row.
func describeEvent(ev history.Event) string {
	parts := make([]string, 0, 4)
	switch ev.Kind {
	case history.KindProviderChanged:
		parts = append(parts, ev.Provider)
		if ev.Previous != "" {
			parts = append(parts, fmt.Sprintf("(was %s)", ev.Previous))
		}
	case history.KindAgentChanged:
		parts = append(parts, fmt.Sprintf("%s %s=%s", ev.Provider, ev.Role, ev.Agent))
		if ev.Previous != "" {
			parts = append(parts, fmt.Sprintf("(was %s)", ev.Previous))
		}
	default:
		if ev.Provider != "" {
			parts = append(parts, "provider="+ev.Provider)
		}
	}
	if ev.Origin != "" {
		parts = append(parts, "["+ev.Origin+"]")
	}
	return strings.Join(parts, " ")
}
