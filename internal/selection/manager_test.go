package selection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/perch/internal/logging"
)

// fakeStore is an in-memory TableStore for manager tests.
type fakeStore struct {
	files    map[string]Snapshot
	readErr  error
	writeErr error
	writes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string]Snapshot)}
}

func (f *fakeStore) Exists(path string) bool {
	_, ok := f.files[path]
	return ok
}

func (f *fakeStore) ReadTable(path string) (Snapshot, error) {
	if f.readErr != nil {
		return NewSnapshot(), f.readErr
	}
	return f.files[path].Clone(), nil
}

func (f *fakeStore) WriteTable(snap Snapshot, path string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.files[path] = snap.Clone()
	f.writes++
	return nil
}

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func newTestManager(t *testing.T, store *fakeStore) *Manager {
	t.Helper()
	m, err := NewManager("/data", store, silentLog())
	require.NoError(t, err)
	return m
}

// seedState installs a persisted snapshot at the manager's path.
func seedState(store *fakeStore, snap Snapshot) {
	store.files[StatePath("/data")] = snap
}

// --- Construction tests ---

func TestNewManager_MissingFile(t *testing.T) {
	m := newTestManager(t, newFakeStore())

	assert.Equal(t, "", m.Provider())
	assert.Empty(t, m.Persisted().Entries)
	assert.Empty(t, m.Live().Entries)
}

func TestNewManager_LoadsPersisted(t *testing.T) {
	store := newFakeStore()
	seedState(store, Snapshot{
		Provider: "anthropic",
		Entries: map[string]Record{
			"anthropic": {ChatAgent: "Claude-3-Haiku-Chat"},
		},
	})

	m := newTestManager(t, store)

	persisted := m.Persisted()
	assert.Equal(t, "anthropic", persisted.Provider)
	assert.Equal(t, "Claude-3-Haiku-Chat", persisted.Entries["anthropic"].ChatAgent)

	// Live state stays empty until Reconcile
	assert.Equal(t, "", m.Provider())
	assert.Empty(t, m.Live().Entries)
}

func TestNewManager_ReadErrorPropagates(t *testing.T) {
	store := newFakeStore()
	seedState(store, NewSnapshot())
	store.readErr = errors.New("disk on fire")

	_, err := NewManager("/data", store, silentLog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestStatePath(t *testing.T) {
	assert.Equal(t, "/data/state.yaml", StatePath("/data"))
}

// --- Entry initialization tests ---

func TestInitLiveEntry_CreatesEmptyRecord(t *testing.T) {
	m := newTestManager(t, newFakeStore())

	m.InitLiveEntry("openai")

	live := m.Live()
	rec, ok := live.Entries["openai"]
	require.True(t, ok)
	assert.Equal(t, "", rec.ChatAgent)
	assert.Equal(t, "", rec.CommandAgent)
}

func TestInitLiveEntry_Idempotent(t *testing.T) {
	m := newTestManager(t, newFakeStore())

	m.SetAgent("openai", "ChatGPT4", RoleChat)
	m.InitLiveEntry("openai")

	assert.Equal(t, "ChatGPT4", m.Agent("openai", RoleChat))
}

func TestInitPersistedEntry_CreatesEmptyRecord(t *testing.T) {
	m := newTestManager(t, newFakeStore())

	m.InitPersistedEntry("ollama")

	rec, ok := m.Persisted().Entries["ollama"]
	require.True(t, ok)
	assert.Equal(t, Record{}, rec)
}

func TestInitPersistedEntry_KeepsExistingValues(t *testing.T) {
	store := newFakeStore()
	seedState(store, Snapshot{
		Entries: map[string]Record{
			"anthropic": {ChatAgent: "Claude-3-Haiku-Chat", CommandAgent: "Claude-3.5-Sonnet"},
		},
	})
	m := newTestManager(t, store)

	m.InitPersistedEntry("anthropic")

	rec := m.Persisted().Entries["anthropic"]
	assert.Equal(t, "Claude-3-Haiku-Chat", rec.ChatAgent)
	assert.Equal(t, "Claude-3.5-Sonnet", rec.CommandAgent)
}

// --- ResolveAgent tests ---

func TestResolveAgent_CarriesOverValidChoice(t *testing.T) {
	store := newFakeStore()
	seedState(store, Snapshot{
		Entries: map[string]Record{"openai": {ChatAgent: "ChatGPT4"}},
	})
	m := newTestManager(t, store)
	m.InitLiveEntry("openai")

	m.ResolveAgent("openai", RoleChat, map[string]AgentSet{
		"openai": {Chat: []string{"ChatGPT3.5", "ChatGPT4"}},
	})

	assert.Equal(t, "ChatGPT4", m.Agent("openai", RoleChat))
}

func TestResolveAgent_FallsBackToFirstCandidate(t *testing.T) {
	store := newFakeStore()
	seedState(store, Snapshot{
		Entries: map[string]Record{"openai": {ChatAgent: "retired-model"}},
	})
	m := newTestManager(t, store)
	m.InitLiveEntry("openai")

	m.ResolveAgent("openai", RoleChat, map[string]AgentSet{
		"openai": {Chat: []string{"ChatGPT4", "CodeGPT4o"}},
	})

	assert.Equal(t, "ChatGPT4", m.Agent("openai", RoleChat))
}

func TestResolveAgent_NoPersistedChoice(t *testing.T) {
	m := newTestManager(t, newFakeStore())
	m.InitLiveEntry("ollama")

	m.ResolveAgent("ollama", RoleCommand, map[string]AgentSet{
		"ollama": {Command: []string{"Gemma-7B"}},
	})

	assert.Equal(t, "Gemma-7B", m.Agent("ollama", RoleCommand))
}

func TestResolveAgent_EmptyCandidatesLeavesUnset(t *testing.T) {
	store := newFakeStore()
	seedState(store, Snapshot{
		Entries: map[string]Record{"openai": {ChatAgent: "ChatGPT4"}},
	})
	m := newTestManager(t, store)
	m.InitLiveEntry("openai")

	m.ResolveAgent("openai", RoleChat, map[string]AgentSet{})

	assert.Equal(t, "", m.Agent("openai", RoleChat))
}

func TestResolveAgent_PreservesCallerOrder(t *testing.T) {
	m := newTestManager(t, newFakeStore())
	m.InitLiveEntry("ollama")

	// "zephyr" sorts after "gemma"; the caller's first entry must win anyway.
	m.ResolveAgent("ollama", RoleChat, map[string]AgentSet{
		"ollama": {Chat: []string{"zephyr", "gemma"}},
	})

	assert.Equal(t, "zephyr", m.Agent("ollama", RoleChat))
}

func TestResolveAgent_RolesAreIndependent(t *testing.T) {
	store := newFakeStore()
	seedState(store, Snapshot{
		Entries: map[string]Record{
			"openai": {ChatAgent: "ChatGPT4", CommandAgent: "gone"},
		},
	})
	m := newTestManager(t, store)
	m.InitLiveEntry("openai")

	avail := map[string]AgentSet{
		"openai": {Chat: []string{"ChatGPT4"}, Command: []string{"CodeGPT4o"}},
	}
	m.ResolveAgent("openai", RoleChat, avail)
	m.ResolveAgent("openai", RoleCommand, avail)

	assert.Equal(t, "ChatGPT4", m.Agent("openai", RoleChat))
	assert.Equal(t, "CodeGPT4o", m.Agent("openai", RoleCommand))
}

// --- Reconcile tests ---

func TestReconcile_DropsUnavailableProvider(t *testing.T) {
	store := newFakeStore()
	seedState(store, Snapshot{
		Provider: "anthropic",
		Entries: map[string]Record{
			"anthropic": {ChatAgent: "Claude-3-Haiku-Chat", CommandAgent: "Claude-3.5-Sonnet"},
			"openai":    {ChatAgent: "retired"},
			"ollama":    {},
		},
	})
	m := newTestManager(t, store)

	m.Reconcile([]string{"ollama", "openai"}, map[string]AgentSet{
		"ollama": {Chat: []string{"Gemma-7B"}, Command: []string{"Gemma-7B"}},
		"openai": {Chat: []string{"ChatGPT4"}, Command: []string{"CodeGPT4o"}},
	})

	live := m.Live()
	require.Len(t, live.Entries, 2)
	assert.NotContains(t, live.Entries, "anthropic")
	assert.Equal(t, "ollama", live.Provider)
	assert.Equal(t, Record{ChatAgent: "Gemma-7B", CommandAgent: "Gemma-7B"}, live.Entries["ollama"])
	assert.Equal(t, Record{ChatAgent: "ChatGPT4", CommandAgent: "CodeGPT4o"}, live.Entries["openai"])
}

func TestReconcile_KeepsAvailablePersistedProvider(t *testing.T) {
	store := newFakeStore()
	seedState(store, Snapshot{
		Provider: "openai",
		Entries:  map[string]Record{"openai": {ChatAgent: "ChatGPT4"}},
	})
	m := newTestManager(t, store)

	m.Reconcile([]string{"ollama", "openai"}, map[string]AgentSet{
		"ollama": {Chat: []string{"Gemma-7B"}},
		"openai": {Chat: []string{"ChatGPT4"}},
	})

	assert.Equal(t, "openai", m.Provider())
	assert.Equal(t, "ChatGPT4", m.Agent("openai", RoleChat))
}

func TestReconcile_NoProvidersAvailable(t *testing.T) {
	store := newFakeStore()
	seedState(store, Snapshot{
		Provider: "anthropic",
		Entries:  map[string]Record{"anthropic": {ChatAgent: "Claude-3-Haiku-Chat"}},
	})
	m := newTestManager(t, store)

	m.Reconcile(nil, nil)

	assert.Equal(t, "", m.Provider())
	assert.Empty(t, m.Live().Entries)
}

func TestReconcile_EntryKeysMatchAvailableProviders(t *testing.T) {
	m := newTestManager(t, newFakeStore())
	m.SetAgent("stale", "x", RoleChat)

	m.Reconcile([]string{"a", "b", "c"}, map[string]AgentSet{})

	live := m.Live()
	assert.Len(t, live.Entries, 3)
	for _, id := range []string{"a", "b", "c"} {
		assert.Contains(t, live.Entries, id)
	}
	assert.NotContains(t, live.Entries, "stale")
}

func TestReconcile_Idempotent(t *testing.T) {
	store := newFakeStore()
	seedState(store, Snapshot{
		Provider: "openai",
		Entries:  map[string]Record{"openai": {ChatAgent: "ChatGPT4"}},
	})
	m := newTestManager(t, store)

	providers := []string{"openai", "ollama"}
	agents := map[string]AgentSet{
		"openai": {Chat: []string{"ChatGPT4"}, Command: []string{"CodeGPT4o"}},
		"ollama": {Chat: []string{"Gemma-7B"}},
	}

	m.Reconcile(providers, agents)
	first := m.Live()
	m.Reconcile(providers, agents)

	assert.Equal(t, first, m.Live())
}

func TestReconcile_PersistedSnapshotUntouched(t *testing.T) {
	store := newFakeStore()
	seedState(store, Snapshot{
		Provider: "anthropic",
		Entries:  map[string]Record{"anthropic": {ChatAgent: "Claude-3-Haiku-Chat"}},
	})
	m := newTestManager(t, store)

	m.Reconcile([]string{"ollama"}, map[string]AgentSet{
		"ollama": {Chat: []string{"Gemma-7B"}},
	})

	persisted := m.Persisted()
	assert.Equal(t, "anthropic", persisted.Provider)
	assert.Equal(t, "Claude-3-Haiku-Chat", persisted.Entries["anthropic"].ChatAgent)
}

// --- Accessor and mutator tests ---

func TestSetAgent_LeavesOtherRoleUnset(t *testing.T) {
	m := newTestManager(t, newFakeStore())
	m.InitLiveEntry("anthropic")

	m.SetAgent("anthropic", "Claude-3-Haiku-Chat", RoleChat)

	assert.Equal(t, "Claude-3-Haiku-Chat", m.Agent("anthropic", RoleChat))
	assert.Equal(t, "", m.Agent("anthropic", RoleCommand))
}

func TestSetProvider_Unconditional(t *testing.T) {
	m := newTestManager(t, newFakeStore())

	// No availability check happens here; callers filter beforehand.
	m.SetProvider("whatever")

	assert.Equal(t, "whatever", m.Provider())
}

func TestAgent_AbsentEntry(t *testing.T) {
	m := newTestManager(t, newFakeStore())
	assert.Equal(t, "", m.Agent("nope", RoleChat))
}

// --- Save tests ---

func TestSave_WritesLiveState(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store)

	m.Reconcile([]string{"ollama"}, map[string]AgentSet{
		"ollama": {Chat: []string{"Gemma-7B"}, Command: []string{"Gemma-7B"}},
	})
	require.NoError(t, m.Save())

	written := store.files[StatePath("/data")]
	assert.Equal(t, "ollama", written.Provider)
	assert.Equal(t, "Gemma-7B", written.Entries["ollama"].ChatAgent)
	assert.Equal(t, 1, store.writes)
}

func TestSave_WriteErrorPropagates(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store)
	store.writeErr = errors.New("read-only filesystem")

	err := m.Save()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only filesystem")

	// Live state unaffected by the failed write
	m.SetProvider("openai")
	assert.Equal(t, "openai", m.Provider())
}

func TestSaveThenReload_RoundTrip(t *testing.T) {
	store := newFakeStore()
	providers := []string{"ollama", "openai"}
	agents := map[string]AgentSet{
		"ollama": {Chat: []string{"Gemma-7B"}, Command: []string{"Gemma-7B"}},
		"openai": {Chat: []string{"ChatGPT4"}, Command: []string{"CodeGPT4o"}},
	}

	m1 := newTestManager(t, store)
	m1.Reconcile(providers, agents)
	m1.SetProvider("openai")
	require.NoError(t, m1.Save())

	m2 := newTestManager(t, store)
	m2.Reconcile(providers, agents)

	assert.Equal(t, m1.Live(), m2.Live())
}

// --- Role helpers ---

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		want  Role
		ok    bool
	}{
		{"chat", RoleChat, true},
		{"command", RoleCommand, true},
		{"", "", false},
		{"Chat", "", false},
		{"editor", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseRole(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAgentSetForRole(t *testing.T) {
	set := AgentSet{Chat: []string{"a"}, Command: []string{"b"}}
	assert.Equal(t, []string{"a"}, set.ForRole(RoleChat))
	assert.Equal(t, []string{"b"}, set.ForRole(RoleCommand))
}
