package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/soyeahso/perch/internal/catalog"
	"github.com/soyeahso/perch/internal/config"
	"github.com/soyeahso/perch/internal/history"
	"github.com/soyeahso/perch/internal/hooks"
	"github.com/soyeahso/perch/internal/selection"
	"github.com/soyeahso/perch/internal/statefile"
)

// openManager loads the persisted selection state from the data directory.
func openManager() (*selection.Manager, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating data directories: %w", err)
	}
	store := statefile.New(log)
	return selection.NewManager(paths.Data, store, log)
}

// seedLive copies the persisted snapshot into the live state. One-shot
// commands mutate and save without reconciling against availability, and
// Save writes the live state; without seeding they would drop every entry
// the mutation did not touch.
func seedLive(mgr *selection.Manager) {
	snap := mgr.Persisted()
	mgr.SetProvider(snap.Provider)
	for id, rec := range snap.Entries {
		mgr.SetAgent(id, rec.ChatAgent, selection.RoleChat)
		mgr.SetAgent(id, rec.CommandAgent, selection.RoleCommand)
	}
}

// buildAvailability assembles the ordered provider availability from config,
// running discovery where configured.
func buildAvailability(ctx context.Context, cfg config.Config) catalog.Availability {
	return catalog.Build(ctx, cfg.Providers, log)
}

// openHistory opens the audit log when enabled. Callers close the returned DB.
func openHistory(cfg config.Config) (*history.DB, *history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil, nil
	}
	db, err := history.Open(filepath.Join(paths.Data, "history.db"), log)
	if err != nil {
		return nil, nil, err
	}
	return db, history.NewStore(db), nil
}

// recordEvent writes an audit event. A nil store means history is disabled.
func recordEvent(events *history.Store, ev history.Event) {
	if events == nil {
		return
	}
	if _, err := events.Record(ev); err != nil {
		log.Warn().Err(err).Str("kind", ev.Kind).Msg("failed to record history event")
	}
}

// runHooks fires the configured shell hooks for an event and waits for them.
func runHooks(ctx context.Context, cfg config.Config, event string, data map[string]any) {
	hm := hooks.NewManager(log)
	hooks.RegisterConfigured(hm, cfg.Hooks)
	if hm.Count(event) == 0 {
		return
	}
	hm.Emit(ctx, event, data)
}

// printSnapshot writes a selection snapshot as aligned rows.
func printSnapshot(snap selection.Snapshot) {
	if snap.Provider != "" {
		fmt.Printf("Provider: %s\n", snap.Provider)
	} else {
		fmt.Println("Provider: (none)")
	}

	ids := make([]string, 0, len(snap.Entries))
	for id := range snap.Entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rec := snap.Entries[id]
		marker := " "
		if id == snap.Provider {
			marker = "*"
		}
		fmt.Printf("  %s %-16s chat=%s command=%s\n",
			marker, id, orNone(rec.ChatAgent), orNone(rec.CommandAgent))
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
