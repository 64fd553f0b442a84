// Package selection tracks which provider is current and which chat/command
// agents are selected per provider, reconciling the last-saved choice against
// the providers and agents actually available at process start.
package selection

import "path/filepath"

// stateFileName is fixed; previously saved files must keep loading.
const stateFileName = "state.yaml"

// StatePath returns the state file path inside the given storage directory.
func StatePath(dir string) string {
	return filepath.Join(dir, stateFileName)
}

// Role identifies one of a provider's two independent agent slots.
type Role string

const (
	RoleChat    Role = "chat"
	RoleCommand Role = "command"
)

// Roles lists both agent slots in resolution order.
var Roles = []Role{RoleChat, RoleCommand}

// ParseRole returns the Role for a user-supplied name.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleChat:
		return RoleChat, true
	case RoleCommand:
		return RoleCommand, true
	}
	return "", false
}

// AgentSet holds the ordered agent identifiers a provider offers per role.
// Order is significant: the first entry is the fallback default.
type AgentSet struct {
	Chat    []string
	Command []string
}

// ForRole returns the agent sequence for the given role.
func (s AgentSet) ForRole(role Role) []string {
	if role == RoleCommand {
		return s.Command
	}
	return s.Chat
}

// Record is one provider's selection: zero or one agent per role.
// An empty string means the slot is unset.
type Record struct {
	ChatAgent    string
	CommandAgent string
}

// Agent returns the record's agent for the given role, or "" when unset.
func (r Record) Agent(role Role) string {
	if role == RoleCommand {
		return r.CommandAgent
	}
	return r.ChatAgent
}

// SetAgent overwrites the record's agent for the given role.
func (r *Record) SetAgent(role Role, agent string) {
	if role == RoleCommand {
		r.CommandAgent = agent
		return
	}
	r.ChatAgent = agent
}

// Snapshot is the full selection state: the current provider (optional, ""
// when unset) plus one record per known provider.
type Snapshot struct {
	Provider string
	Entries  map[string]Record
}

// NewSnapshot returns an empty snapshot with an initialized entry map.
func NewSnapshot() Snapshot {
	return Snapshot{Entries: make(map[string]Record)}
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Provider: s.Provider, Entries: make(map[string]Record, len(s.Entries))}
	for id, rec := range s.Entries {
		out.Entries[id] = rec
	}
	return out
}
