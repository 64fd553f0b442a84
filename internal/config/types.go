package config

// Config is the root configuration for perch.
type Config struct {
	Providers []ProviderEntry `yaml:"providers,omitempty"`
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	History   HistoryConfig   `yaml:"history,omitempty"`
	Hooks     HooksConfig     `yaml:"hooks,omitempty"`
}

// ProviderEntry declares one model provider and the agents it offers.
// List order is significant: it is the order providers are offered in
// prompts and the order fallback defaults are taken from.
type ProviderEntry struct {
	ID       string `yaml:"id"`
	Label    string `yaml:"label,omitempty"`
	BaseURL  string `yaml:"baseUrl,omitempty"`
	APIKey   string `yaml:"apiKey,omitempty"`
	API      string `yaml:"api,omitempty"` // "openai" | "ollama" — endpoint style for live discovery
	Discover bool   `yaml:"discover,omitempty"`

	// Agents applies to both roles unless a per-role list overrides it.
	Agents        []string `yaml:"agents,omitempty"`
	ChatAgents    []string `yaml:"chatAgents,omitempty"`
	CommandAgents []string `yaml:"commandAgents,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "auto" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	TLS            TLSConfig   `yaml:"tls,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// TLSConfig enables TLS for non-loopback binds.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`         // empty = console only; relative paths resolve under the logs dir
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// HistoryConfig controls the selection audit log.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
	Keep    int  `yaml:"keep,omitempty"` // events retained when pruning
}

// HooksConfig maps selection lifecycle events to shell commands.
type HooksConfig struct {
	ProviderChanged []HookEntry `yaml:"providerChanged,omitempty"`
	AgentChanged    []HookEntry `yaml:"agentChanged,omitempty"`
	SyncCompleted   []HookEntry `yaml:"syncCompleted,omitempty"`
	StateSaved      []HookEntry `yaml:"stateSaved,omitempty"`
	GatewayStart    []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop     []HookEntry `yaml:"gatewayStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}

// Provider returns the entry with the given id, or nil.
func (c *Config) Provider(id string) *ProviderEntry {
	for i := range c.Providers {
		if c.Providers[i].ID == id {
			return &c.Providers[i]
		}
	}
	return nil
}
