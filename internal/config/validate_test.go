package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuePaths(issues []ValidationIssue) []string {
	if len(issues) == 0 {
		return nil
	}
	paths := make([]string, 0, len(issues))
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	return paths
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidateGateway(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantPaths []string
	}{
		{"negative_port", func(c *Config) { c.Gateway.Port = -1 }, []string{"gateway.port"}},
		{"port_too_large", func(c *Config) { c.Gateway.Port = 70000 }, []string{"gateway.port"}},
		{"port_zero_ok", func(c *Config) { c.Gateway.Port = 0 }, nil},
		{"port_max_ok", func(c *Config) { c.Gateway.Port = 65535 }, nil},
		{"unknown_bind", func(c *Config) { c.Gateway.Bind = "invalid" }, []string{"gateway.bind"}},
		{"custom_bind_needs_host", func(c *Config) { c.Gateway.Bind = "custom" }, []string{"gateway.customBindHost"}},
		{"custom_bind_with_host_ok", func(c *Config) {
			c.Gateway.Bind = "custom"
			c.Gateway.CustomBindHost = "192.168.1.10"
		}, nil},
		{"unknown_auth_mode", func(c *Config) { c.Gateway.Auth.Mode = "oauth" }, []string{"gateway.auth.mode"}},
		{"tls_needs_both_paths", func(c *Config) { c.Gateway.TLS.Enabled = true },
			[]string{"gateway.tls.certPath", "gateway.tls.keyPath"}},
		{"tls_disabled_ignores_paths", func(c *Config) { c.Gateway.TLS.CertPath = "/etc/perch/cert.pem" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Equal(t, tt.wantPaths, issuePaths(Validate(&cfg)))
		})
	}
}

func TestValidateAcceptedEnums(t *testing.T) {
	for _, bind := range []string{"auto", "lan", "loopback", ""} {
		cfg := Defaults()
		cfg.Gateway.Bind = bind
		assert.Empty(t, Validate(&cfg), "bind %q", bind)
	}
	for _, mode := range []string{"token", "password", ""} {
		cfg := Defaults()
		cfg.Gateway.Auth.Mode = mode
		assert.Empty(t, Validate(&cfg), "auth mode %q", mode)
	}
	for _, level := range []string{"silent", "fatal", "error", "warn", "info", "debug", "trace", ""} {
		cfg := Defaults()
		cfg.Logging.Level = level
		assert.Empty(t, Validate(&cfg), "log level %q", level)
	}
	for _, style := range []string{"pretty", "compact", "json", ""} {
		cfg := Defaults()
		cfg.Logging.ConsoleStyle = style
		assert.Empty(t, Validate(&cfg), "console style %q", style)
	}
}

func TestValidateLogging(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Level = "verbose"
	assert.Equal(t, []string{"logging.level"}, issuePaths(Validate(&cfg)))

	cfg = Defaults()
	cfg.Logging.ConsoleStyle = "fancy"
	assert.Equal(t, []string{"logging.consoleStyle"}, issuePaths(Validate(&cfg)))
}

func TestValidateProviders(t *testing.T) {
	tests := []struct {
		name      string
		providers []ProviderEntry
		wantPaths []string
	}{
		{"missing_id", []ProviderEntry{{Label: "broken"}}, []string{"providers[0].id"}},
		{"duplicate_id",
			[]ProviderEntry{{ID: "ollama"}, {ID: "openai"}, {ID: "ollama"}},
			[]string{"providers[2].id"}},
		{"unknown_api", []ProviderEntry{{ID: "x", API: "grpc"}}, []string{"providers[0].api"}},
		{"discover_needs_api",
			[]ProviderEntry{{ID: "x", Discover: true, BaseURL: "http://localhost:11434"}},
			[]string{"providers[0].discover"}},
		{"discover_needs_base_url",
			[]ProviderEntry{{ID: "x", Discover: true, API: "ollama"}},
			[]string{"providers[0].baseUrl"}},
		{"discover_complete",
			[]ProviderEntry{{ID: "ollama", BaseURL: "http://localhost:11434", API: "ollama", Discover: true}},
			nil},
		{"static_agents_only", []ProviderEntry{{ID: "openai", Agents: []string{"ChatGPT4"}}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Providers = tt.providers
			assert.Equal(t, tt.wantPaths, issuePaths(Validate(&cfg)))
		})
	}
}

func TestValidateHistory(t *testing.T) {
	cfg := Defaults()
	cfg.History.Keep = -5
	assert.Equal(t, []string{"history.keep"}, issuePaths(Validate(&cfg)))
}

func TestValidateHooks(t *testing.T) {
	cfg := Defaults()
	cfg.Hooks.SyncCompleted = []HookEntry{{}}
	assert.Equal(t, []string{"hooks.syncCompleted[0].command"}, issuePaths(Validate(&cfg)))

	cfg = Defaults()
	cfg.Hooks.AgentChanged = []HookEntry{{Command: "echo ok", Timeout: -1}}
	assert.Equal(t, []string{"hooks.agentChanged[0].timeout"}, issuePaths(Validate(&cfg)))

	cfg = Defaults()
	cfg.Hooks.ProviderChanged = []HookEntry{{Command: "notify-send perch", Timeout: 2000}}
	assert.Empty(t, Validate(&cfg))
}

func TestValidateCollectsEveryIssue(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Port = -1
	cfg.Gateway.Bind = "invalid"
	cfg.Logging.Level = "verbose"

	issues := Validate(&cfg)
	require.GreaterOrEqual(t, len(issues), 3)

	paths := issuePaths(issues)
	assert.Contains(t, paths, "gateway.port")
	assert.Contains(t, paths, "gateway.bind")
	assert.Contains(t, paths, "logging.level")
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{
		Path:    "gateway.port",
		Message: "port must be 0-65535, got -1",
	}
	assert.Equal(t, "gateway.port: port must be 0-65535, got -1", issue.String())
}
