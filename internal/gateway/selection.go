package gateway

import (
	"context"
	"errors"

	"github.com/soyeahso/perch/internal/catalog"
	"github.com/soyeahso/perch/internal/history"
	"github.com/soyeahso/perch/internal/hooks"
	"github.com/soyeahso/perch/internal/selection"
)

var (
	// ErrNoSelection is returned by selection operations when the server was
	// built without WithSelection.
	ErrNoSelection = errors.New("selection state not attached")

	// ErrNoHistory is returned by history operations when the server was
	// built without WithHistory.
	ErrNoHistory = errors.New("history not attached")
)

// RefreshFunc rebuilds provider availability, typically by querying discovery
// endpoints. Sync calls it outside the server's state lock.
type RefreshFunc func(ctx context.Context) catalog.Availability

// EntryView is one provider's selected agents as serialized in responses.
type EntryView struct {
	ChatAgent    string `json:"chatAgent,omitempty"`
	CommandAgent string `json:"commandAgent,omitempty"`
}

// SelectionView is the live selection state as serialized in responses.
type SelectionView struct {
	Provider string               `json:"provider,omitempty"`
	Entries  map[string]EntryView `json:"entries"`
}

// AgentListsView lists the agents one provider offers per role.
type AgentListsView struct {
	Chat    []string `json:"chat"`
	Command []string `json:"command"`
}

// ProvidersView is the availability the server last synced against.
type ProvidersView struct {
	Providers []string                  `json:"providers"`
	Agents    map[string]AgentListsView `json:"agents"`
}

// selectionChangedEvent is the payload of "selection.changed" broadcasts.
type selectionChangedEvent struct {
	Kind     string `json:"kind"` // "provider" | "agent"
	Provider string `json:"provider"`
	Role     string `json:"role,omitempty"`
	Agent    string `json:"agent,omitempty"`
	Previous string `json:"previous,omitempty"`
	Origin   string `json:"origin,omitempty"`
}

// syncCompletedEvent is the payload of "sync.completed" broadcasts.
type syncCompletedEvent struct {
	Selection SelectionView `json:"selection"`
	Providers []string      `json:"providers"`
	Origin    string        `json:"origin,omitempty"`
}

func selectionViewOf(snap selection.Snapshot) SelectionView {
	view := SelectionView{Provider: snap.Provider, Entries: make(map[string]EntryView, len(snap.Entries))}
	for id, rec := range snap.Entries {
		view.Entries[id] = EntryView{ChatAgent: rec.ChatAgent, CommandAgent: rec.CommandAgent}
	}
	return view
}

func providersViewOf(avail catalog.Availability) ProvidersView {
	view := ProvidersView{Providers: avail.Providers, Agents: make(map[string]AgentListsView, len(avail.Agents))}
	if view.Providers == nil {
		view.Providers = []string{}
	}
	for id, set := range avail.Agents {
		view.Agents[id] = AgentListsView{Chat: set.Chat, Command: set.Command}
	}
	return view
}

// SelectionState returns the live selection state.
func (s *Server) SelectionState() (SelectionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection == nil {
		return SelectionView{}, ErrNoSelection
	}
	return selectionViewOf(s.selection.Live()), nil
}

// AvailableProviders returns the availability from the most recent sync.
func (s *Server) AvailableProviders() (ProvidersView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection == nil {
		return ProvidersView{}, ErrNoSelection
	}
	return providersViewOf(s.avail), nil
}

// currentProvider is "" when no selection is attached or nothing is selected.
func (s *Server) currentProvider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection == nil {
		return ""
	}
	return s.selection.Provider()
}

// SetProvider switches the current provider, persists the state, and
// notifies hooks, history, and connected clients. The provider is not
// validated against availability.
func (s *Server) SetProvider(ctx context.Context, provider, origin string) (SelectionView, error) {
	s.mu.Lock()
	if s.selection == nil {
		s.mu.Unlock()
		return SelectionView{}, ErrNoSelection
	}
	previous := s.selection.Provider()
	s.selection.SetProvider(provider)
	if err := s.selection.Save(); err != nil {
		s.mu.Unlock()
		return SelectionView{}, err
	}
	view := selectionViewOf(s.selection.Live())
	path := s.selection.Path()
	s.mu.Unlock()

	s.recordEvent(history.Event{Kind: history.KindProviderChanged, Provider: provider, Previous: previous, Origin: origin})
	s.emitHook(ctx, hooks.EventProviderChanged, map[string]any{"provider": provider, "previous": previous})
	s.emitHook(ctx, hooks.EventStateSaved, map[string]any{"path": path})
	s.broadcast(EventSelectionChanged, selectionChangedEvent{
		Kind:     "provider",
		Provider: provider,
		Previous: previous,
		Origin:   origin,
	})
	return view, nil
}

// SetAgent overwrites one role's agent for a provider, persists the state,
// and notifies hooks, history, and connected clients. Neither the provider
// nor the agent is validated against availability.
func (s *Server) SetAgent(ctx context.Context, provider string, role selection.Role, agent, origin string) (SelectionView, error) {
	s.mu.Lock()
	if s.selection == nil {
		s.mu.Unlock()
		return SelectionView{}, ErrNoSelection
	}
	previous := s.selection.Agent(provider, role)
	s.selection.SetAgent(provider, agent, role)
	if err := s.selection.Save(); err != nil {
		s.mu.Unlock()
		return SelectionView{}, err
	}
	view := selectionViewOf(s.selection.Live())
	path := s.selection.Path()
	s.mu.Unlock()

	s.recordEvent(history.Event{
		Kind:     history.KindAgentChanged,
		Provider: provider,
		Role:     string(role),
		Agent:    agent,
		Previous: previous,
		Origin:   origin,
	})
	s.emitHook(ctx, hooks.EventAgentChanged, map[string]any{
		"provider": provider,
		"role":     string(role),
		"agent":    agent,
		"previous": previous,
	})
	s.emitHook(ctx, hooks.EventStateSaved, map[string]any{"path": path})
	s.broadcast(EventSelectionChanged, selectionChangedEvent{
		Kind:     "agent",
		Provider: provider,
		Role:     string(role),
		Agent:    agent,
		Previous: previous,
		Origin:   origin,
	})
	return view, nil
}

// Sync refreshes availability and rebuilds the live selection. The persisted
// snapshot is reloaded from disk first, so a state file written by another
// process is reconciled rather than overwritten blind.
func (s *Server) Sync(ctx context.Context, origin string) (SelectionView, error) {
	s.mu.RLock()
	store, dir, refresh := s.selStore, s.stateDir, s.refresh
	avail := s.avail
	attached := s.selection != nil
	s.mu.RUnlock()
	if !attached {
		return SelectionView{}, ErrNoSelection
	}

	if refresh != nil {
		avail = refresh(ctx)
	}

	mgr, err := selection.NewManager(dir, store, s.log)
	if err != nil {
		return SelectionView{}, err
	}
	mgr.Reconcile(avail.Providers, avail.Agents)
	if err := mgr.Save(); err != nil {
		return SelectionView{}, err
	}

	s.mu.Lock()
	s.selection = mgr
	s.avail = avail
	s.mu.Unlock()

	view := selectionViewOf(mgr.Live())
	s.recordEvent(history.Event{Kind: history.KindSyncCompleted, Provider: view.Provider, Origin: origin})
	s.emitHook(ctx, hooks.EventSyncCompleted, map[string]any{
		"provider":  view.Provider,
		"providers": avail.Providers,
	})
	s.emitHook(ctx, hooks.EventStateSaved, map[string]any{"path": mgr.Path()})
	s.broadcast(EventSyncCompleted, syncCompletedEvent{
		Selection: view,
		Providers: avail.Providers,
		Origin:    origin,
	})
	return view, nil
}

// RecentEvents returns the newest history entries, most recent first.
func (s *Server) RecentEvents(limit int) ([]history.Event, error) {
	if s.events == nil {
		return nil, ErrNoHistory
	}
	return s.events.Recent(limit)
}

func (s *Server) recordEvent(ev history.Event) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Record(ev); err != nil {
		s.log.Warn().Err(err).Str("kind", ev.Kind).Msg("failed to record history event")
	}
}

func (s *Server) emitHook(ctx context.Context, event string, data map[string]any) {
	if s.hooks != nil {
		s.hooks.EmitAsync(ctx, event, data)
	}
}

// broadcast fans an event frame out to every connected client.
func (s *Server) broadcast(event string, payload any) {
	s.clients.Broadcast(event, payload, s.eventSeq.Add(1))
}
