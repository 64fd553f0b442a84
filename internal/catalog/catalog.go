// Package catalog assembles the providers and agents currently available
// for selection. Static agent lists come from configuration; providers
// with discovery enabled are queried live over HTTP.
package catalog

import (
	"context"
	"fmt"

	"github.com/soyeahso/perch/internal/config"
	"github.com/soyeahso/perch/internal/logging"
	"github.com/soyeahso/perch/internal/selection"
)

// ProviderError is returned when a provider endpoint fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP-like status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Source lists the agents a provider currently serves.
type Source interface {
	// ListAgents returns agent names in the provider's own order.
	ListAgents(ctx context.Context) ([]string, error)

	// Name returns the provider id this source queries.
	Name() string
}

// Availability is the current world as reconciliation sees it: which
// providers exist, in configuration order, and which agents each serves.
type Availability struct {
	Providers []string
	Agents    map[string]selection.AgentSet
}

// Has reports whether the provider is available.
func (a Availability) Has(provider string) bool {
	for _, p := range a.Providers {
		if p == provider {
			return true
		}
	}
	return false
}

// Build assembles availability from configured providers. Entries with
// discovery enabled are queried live; when a query fails the static
// lists apply and the failure is logged, never fatal.
func Build(ctx context.Context, entries []config.ProviderEntry, log *logging.Logger) Availability {
	log = log.Sub("catalog")

	avail := Availability{
		Providers: make([]string, 0, len(entries)),
		Agents:    make(map[string]selection.AgentSet, len(entries)),
	}

	for _, p := range entries {
		if p.ID == "" {
			continue
		}

		set := staticAgents(p)
		if src := sourceFor(p); src != nil {
			names, err := src.ListAgents(ctx)
			if err != nil {
				log.Warn().Err(err).Str("provider", p.ID).Msg("agent discovery failed, using configured lists")
			} else {
				log.Debug().Str("provider", p.ID).Int("agents", len(names)).Msg("discovered agents")
				set = selection.AgentSet{Chat: names, Command: names}
			}
		}

		avail.Providers = append(avail.Providers, p.ID)
		avail.Agents[p.ID] = set
	}

	return avail
}

// staticAgents resolves the configured lists for an entry. The shared
// agents list covers any role without its own override.
func staticAgents(p config.ProviderEntry) selection.AgentSet {
	set := selection.AgentSet{Chat: p.ChatAgents, Command: p.CommandAgents}
	if len(set.Chat) == 0 {
		set.Chat = p.Agents
	}
	if len(set.Command) == 0 {
		set.Command = p.Agents
	}
	return set
}

// sourceFor picks the discovery client for an entry, or nil when the
// entry is static-only.
func sourceFor(p config.ProviderEntry) Source {
	if !p.Discover {
		return nil
	}
	switch p.API {
	case "ollama":
		return NewOllamaSource(p.ID, p.BaseURL)
	case "openai":
		return NewOpenAISource(p.ID, p.BaseURL, p.APIKey)
	}
	return nil
}
