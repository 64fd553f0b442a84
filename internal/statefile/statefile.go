// Package statefile persists selection snapshots as YAML documents.
//
// The document layout is fixed for compatibility with previously saved
// files: a top-level "provider" key plus one key per provider holding
// "chat_agent"/"command_agent" fields. Unset values are omitted.
package statefile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/soyeahso/perch/internal/logging"
	"github.com/soyeahso/perch/internal/selection"
)

const (
	providerKey     = "provider"
	chatAgentKey    = "chat_agent"
	commandAgentKey = "command_agent"
)

// Store implements selection.TableStore on top of YAML files.
type Store struct {
	log *logging.Logger
}

// New creates a YAML-backed table store.
func New(log *logging.Logger) *Store {
	return &Store{log: log.Sub("statefile")}
}

// Exists reports whether a state file is present at path.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadTable deserializes the state file at path into a snapshot. Only
// syntactically invalid YAML is an error; unexpected shapes degrade to
// partial or empty records so stale files keep loading.
func (s *Store) ReadTable(path string) (selection.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return selection.NewSnapshot(), err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return selection.NewSnapshot(), fmt.Errorf("parsing state file: %w", err)
	}

	snap := fromRaw(raw)
	s.log.Debug().Str("path", path).Int("entries", len(snap.Entries)).Msg("state file read")
	return snap, nil
}

// WriteTable serializes the snapshot to path, overwriting any existing
// content. Output is deterministic: the provider key first, then provider
// entries in sorted order, so repeated saves of the same state are
// byte-identical.
func (s *Store) WriteTable(snap selection.Snapshot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(toNode(snap))
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	s.log.Debug().Str("path", path).Msg("state file written")
	return nil
}

// fromRaw extracts a snapshot from a decoded YAML map. Every non-"provider"
// key becomes an entry; fields with the wrong type are treated as unset.
func fromRaw(raw map[string]any) selection.Snapshot {
	snap := selection.NewSnapshot()
	for key, val := range raw {
		if key == providerKey {
			if str, ok := val.(string); ok {
				snap.Provider = str
			}
			continue
		}

		entry := selection.Record{}
		if fields, ok := val.(map[string]any); ok {
			if str, ok := fields[chatAgentKey].(string); ok {
				entry.ChatAgent = str
			}
			if str, ok := fields[commandAgentKey].(string); ok {
				entry.CommandAgent = str
			}
		}
		snap.Entries[key] = entry
	}
	return snap
}

// toNode builds the YAML document for a snapshot with a stable key order.
func toNode(snap selection.Snapshot) *yaml.Node {
	doc := &yaml.Node{Kind: yaml.MappingNode}

	if snap.Provider != "" {
		doc.Content = append(doc.Content, strNode(providerKey), strNode(snap.Provider))
	}

	names := make([]string, 0, len(snap.Entries))
	for name := range snap.Entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry := snap.Entries[name]
		entryNode := &yaml.Node{Kind: yaml.MappingNode}
		if entry.ChatAgent != "" {
			entryNode.Content = append(entryNode.Content, strNode(chatAgentKey), strNode(entry.ChatAgent))
		}
		if entry.CommandAgent != "" {
			entryNode.Content = append(entryNode.Content, strNode(commandAgentKey), strNode(entry.CommandAgent))
		}
		doc.Content = append(doc.Content, strNode(name), entryNode)
	}

	return doc
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
