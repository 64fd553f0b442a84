package statefile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/perch/internal/logging"
	"github.com/soyeahso/perch/internal/selection"
)

func testStore() *Store {
	return New(logging.New(nil, "silent"))
}

func writeState(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// --- Exists tests ---

func TestExists(t *testing.T) {
	s := testStore()
	path := writeState(t, "provider: openai\n")

	assert.True(t, s.Exists(path))
	assert.False(t, s.Exists(filepath.Join(t.TempDir(), "state.yaml")))
}

// --- ReadTable tests ---

func TestReadTable_FullDocument(t *testing.T) {
	s := testStore()
	path := writeState(t, `provider: anthropic
anthropic:
  chat_agent: Claude-3-Haiku-Chat
  command_agent: Claude-3.5-Sonnet
ollama:
  chat_agent: Gemma-7B
`)

	snap, err := s.ReadTable(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", snap.Provider)
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "Claude-3-Haiku-Chat", snap.Entries["anthropic"].ChatAgent)
	assert.Equal(t, "Claude-3.5-Sonnet", snap.Entries["anthropic"].CommandAgent)
	assert.Equal(t, "Gemma-7B", snap.Entries["ollama"].ChatAgent)
	assert.Equal(t, "", snap.Entries["ollama"].CommandAgent)
}

func TestReadTable_EmptyEntries(t *testing.T) {
	s := testStore()
	path := writeState(t, `provider: openai
openai: {}
`)

	snap, err := s.ReadTable(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", snap.Provider)
	rec, ok := snap.Entries["openai"]
	require.True(t, ok)
	assert.Equal(t, selection.Record{}, rec)
}

func TestReadTable_WrongShapeDegrades(t *testing.T) {
	s := testStore()
	path := writeState(t, `provider: [not, a, string]
openai: just-a-scalar
ollama:
  chat_agent: 42
  command_agent: Gemma-7B
`)

	snap, err := s.ReadTable(path)
	require.NoError(t, err)

	// Non-string provider is treated as unset
	assert.Equal(t, "", snap.Provider)
	// Scalar entry keeps key presence with both slots unset
	assert.Equal(t, selection.Record{}, snap.Entries["openai"])
	// Non-string agent fields are treated as unset, valid siblings survive
	assert.Equal(t, "", snap.Entries["ollama"].ChatAgent)
	assert.Equal(t, "Gemma-7B", snap.Entries["ollama"].CommandAgent)
}

func TestReadTable_InvalidYAML(t *testing.T) {
	s := testStore()
	path := writeState(t, "{{not yaml")

	_, err := s.ReadTable(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing state file")
}

func TestReadTable_MissingFile(t *testing.T) {
	s := testStore()
	_, err := s.ReadTable(filepath.Join(t.TempDir(), "state.yaml"))
	assert.Error(t, err)
}

// --- WriteTable tests ---

func TestWriteTable_RoundTrip(t *testing.T) {
	s := testStore()
	path := filepath.Join(t.TempDir(), "state.yaml")

	snap := selection.Snapshot{
		Provider: "ollama",
		Entries: map[string]selection.Record{
			"ollama": {ChatAgent: "Gemma-7B", CommandAgent: "Gemma-7B"},
			"openai": {ChatAgent: "ChatGPT4", CommandAgent: "CodeGPT4o"},
		},
	}
	require.NoError(t, s.WriteTable(snap, path))

	got, err := s.ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestWriteTable_Deterministic(t *testing.T) {
	s := testStore()
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.yaml")
	pathB := filepath.Join(dir, "b.yaml")

	snap := selection.Snapshot{
		Provider: "openai",
		Entries: map[string]selection.Record{
			"zeta":   {ChatAgent: "z"},
			"alpha":  {ChatAgent: "a"},
			"openai": {ChatAgent: "ChatGPT4"},
		},
	}
	require.NoError(t, s.WriteTable(snap, pathA))
	require.NoError(t, s.WriteTable(snap.Clone(), pathB))

	a, err := os.ReadFile(pathA)
	require.NoError(t, err)
	b, err := os.ReadFile(pathB)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriteTable_ProviderFirstThenSortedEntries(t *testing.T) {
	s := testStore()
	path := filepath.Join(t.TempDir(), "state.yaml")

	snap := selection.Snapshot{
		Provider: "zeta",
		Entries: map[string]selection.Record{
			"zeta":  {ChatAgent: "z1"},
			"alpha": {ChatAgent: "a1"},
		},
	}
	require.NoError(t, s.WriteTable(snap, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Less(t, strings.Index(content, "provider:"), strings.Index(content, "alpha:"))
	assert.Less(t, strings.Index(content, "alpha:"), strings.Index(content, "zeta:\n"))
}

func TestWriteTable_OmitsUnsetFields(t *testing.T) {
	s := testStore()
	path := filepath.Join(t.TempDir(), "state.yaml")

	snap := selection.Snapshot{
		Entries: map[string]selection.Record{
			"ollama": {ChatAgent: "Gemma-7B"},
		},
	}
	require.NoError(t, s.WriteTable(snap, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.NotContains(t, content, "provider:")
	assert.NotContains(t, content, "command_agent")
	assert.Contains(t, content, "chat_agent: Gemma-7B")
}

func TestWriteTable_FileMode(t *testing.T) {
	s := testStore()
	path := filepath.Join(t.TempDir(), "state.yaml")

	require.NoError(t, s.WriteTable(selection.NewSnapshot(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestWriteTable_CreatesParentDir(t *testing.T) {
	s := testStore()
	path := filepath.Join(t.TempDir(), "nested", "deep", "state.yaml")

	require.NoError(t, s.WriteTable(selection.NewSnapshot(), path))
	assert.True(t, s.Exists(path))
}
