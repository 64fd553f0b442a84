package history

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds recorded in the audit log.
const (
	KindProviderChanged = "provider_changed"
	KindAgentChanged    = "agent_changed"
	KindSyncCompleted   = "sync_completed"
)

// Event is a single entry in the selection audit log.
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Provider  string    `json:"provider,omitempty"`
	Role      string    `json:"role,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Previous  string    `json:"previous,omitempty"`
	Origin    string    `json:"origin,omitempty"` // "cli", "gateway", "tui", "config"
	CreatedAt time.Time `json:"createdAt"`
}

// Store records and queries selection events.
type Store struct {
	db *DB
}

// NewStore creates an event store using the given database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Record inserts an event, assigning an ID and timestamp when unset.
func (s *Store) Record(ev Event) (*Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO selection_events (id, kind, provider, role, agent, previous, origin, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Kind, ev.Provider, ev.Role, ev.Agent, ev.Previous, ev.Origin,
		ev.CreatedAt.Format(time.DateTime),
	)
	if err != nil {
		return nil, err
	}

	return &ev, nil
}

// Recent returns the newest events, most recent first. Limit of 0 defaults to 20.
func (s *Store) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.sql.Query(
		`SELECT id, kind, provider, role, agent, previous, origin, created_at
		 FROM selection_events ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var createdAt string
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Provider, &ev.Role, &ev.Agent,
			&ev.Previous, &ev.Origin, &createdAt); err != nil {
			return nil, err
		}
		ev.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Count returns the total number of recorded events.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.sql.QueryRow(`SELECT COUNT(*) FROM selection_events`).Scan(&count)
	return count, err
}

// Prune deletes all but the newest keep events and reports how many were removed.
func (s *Store) Prune(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	res, err := s.db.sql.Exec(
		`DELETE FROM selection_events WHERE rowid NOT IN (
			SELECT rowid FROM selection_events ORDER BY rowid DESC LIMIT ?
		)`, keep,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
