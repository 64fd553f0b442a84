package selection

import (
	"slices"

	"github.com/soyeahso/perch/internal/logging"
)

// TableStore reads and writes snapshots as structured documents on disk.
// The manager never touches file bytes itself; existence checks, parsing,
// and serialization all go through this interface.
type TableStore interface {
	Exists(path string) bool
	ReadTable(path string) (Snapshot, error)
	WriteTable(snap Snapshot, path string) error
}

// Manager owns the selection state for one session. It keeps two snapshots:
// the persisted one loaded at construction (read-only afterward, possibly
// referencing providers or agents that no longer exist) and the live one the
// running process reads and mutates. Reconcile derives the live state from
// the persisted snapshot and the availability supplied by the caller.
//
// A Manager belongs to a single goroutine; mutators are unguarded
// read-modify-write and need external serialization if shared.
type Manager struct {
	path      string
	store     TableStore
	persisted Snapshot
	live      Snapshot
	log       *logging.Logger
}

// NewManager loads the persisted snapshot from dir's state file and starts
// with an empty live state. A missing file is not an error and yields an
// empty persisted snapshot; a read failure on an existing file propagates
// from the store. Nothing is validated here — Reconcile does that.
func NewManager(dir string, store TableStore, log *logging.Logger) (*Manager, error) {
	m := &Manager{
		path:      StatePath(dir),
		store:     store,
		persisted: NewSnapshot(),
		live:      NewSnapshot(),
		log:       log.Sub("selection"),
	}

	if store.Exists(m.path) {
		snap, err := store.ReadTable(m.path)
		if err != nil {
			return nil, err
		}
		if snap.Entries == nil {
			snap.Entries = make(map[string]Record)
		}
		m.persisted = snap
		m.log.Debug().
			Str("path", m.path).
			Str("provider", snap.Provider).
			Int("entries", len(snap.Entries)).
			Msg("loaded persisted selection")
	}

	return m, nil
}

// Path returns the state file path this manager reads and writes.
func (m *Manager) Path() string {
	return m.path
}

// InitPersistedEntry ensures the persisted snapshot has a record for id,
// creating one with both roles unset when absent. An existing record is
// left untouched.
func (m *Manager) InitPersistedEntry(id string) {
	if _, ok := m.persisted.Entries[id]; !ok {
		m.persisted.Entries[id] = Record{}
	}
}

// InitLiveEntry ensures the live state has a record for id, creating one
// with both roles unset when absent. An existing record is left untouched.
func (m *Manager) InitLiveEntry(id string) {
	if _, ok := m.live.Entries[id]; !ok {
		m.live.Entries[id] = Record{}
	}
}

// ResolveAgent fills the live entry's slot for one role: the persisted
// choice when it is still among the candidates, otherwise the first
// candidate, otherwise unset. Candidates come from the caller's availability
// map in the caller's order; nothing is sorted here, and the available
// provider set is never consulted.
func (m *Manager) ResolveAgent(id string, role Role, avail map[string]AgentSet) {
	candidates := avail[id].ForRole(role)
	persisted := m.persisted.Entries[id].Agent(role)

	choice := ""
	switch {
	case persisted != "" && slices.Contains(candidates, persisted):
		choice = persisted
	case len(candidates) > 0:
		choice = candidates[0]
	}

	entry := m.live.Entries[id]
	entry.SetAgent(role, choice)
	m.live.Entries[id] = entry
}

// Reconcile rebuilds the live state against current availability: exactly
// one entry per provider in providers (stale entries are dropped), each role
// resolved via ResolveAgent, and the current provider carried over from the
// persisted snapshot when still available or defaulted to the first provider
// otherwise. Idempotent for fixed inputs; safe to call again whenever the
// catalog refreshes.
func (m *Manager) Reconcile(providers []string, agents map[string]AgentSet) {
	m.live.Entries = make(map[string]Record, len(providers))
	for _, id := range providers {
		m.live.Entries[id] = Record{}
		m.ResolveAgent(id, RoleChat, agents)
		m.ResolveAgent(id, RoleCommand, agents)
	}

	switch {
	case m.persisted.Provider != "" && slices.Contains(providers, m.persisted.Provider):
		m.live.Provider = m.persisted.Provider
	case len(providers) > 0:
		m.live.Provider = providers[0]
	default:
		m.live.Provider = ""
	}

	m.log.Debug().
		Str("provider", m.live.Provider).
		Int("providers", len(providers)).
		Msg("selection reconciled")
}

// SetProvider overwrites the live current provider. Availability is not
// checked; callers are expected to offer only providers they know are valid.
func (m *Manager) SetProvider(id string) {
	m.live.Provider = id
}

// SetAgent overwrites one role's agent in the live entry for id. The entry
// is created implicitly when absent; no membership validation is performed.
func (m *Manager) SetAgent(id, agent string, role Role) {
	entry := m.live.Entries[id]
	entry.SetAgent(role, agent)
	m.live.Entries[id] = entry
}

// Provider returns the live current provider, or "" when unset.
func (m *Manager) Provider() string {
	return m.live.Provider
}

// Agent returns the live agent for id and role, or "" when the entry or the
// slot is absent.
func (m *Manager) Agent(id string, role Role) string {
	return m.live.Entries[id].Agent(role)
}

// Live returns a copy of the live state, for display and serialization by
// callers outside this package.
func (m *Manager) Live() Snapshot {
	return m.live.Clone()
}

// Persisted returns a copy of the snapshot loaded at construction.
func (m *Manager) Persisted() Snapshot {
	return m.persisted.Clone()
}

// Save writes the entire live state to the state file through the store.
// Always a full overwrite; a failed write leaves the previous file and the
// live state untouched.
func (m *Manager) Save() error {
	if err := m.store.WriteTable(m.live, m.path); err != nil {
		return err
	}
	m.log.Debug().Str("path", m.path).Msg("selection saved")
	return nil
}
