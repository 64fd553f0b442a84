package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when gateway.bind is custom",
		})
	}

	validAuthModes := []string{"token", "password"}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.auth.mode",
			Message: fmt.Sprintf("must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode),
		})
	}

	if cfg.Gateway.TLS.Enabled {
		if cfg.Gateway.TLS.CertPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "gateway.tls.certPath",
				Message: "required when gateway.tls.enabled is true",
			})
		}
		if cfg.Gateway.TLS.KeyPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "gateway.tls.keyPath",
				Message: "required when gateway.tls.enabled is true",
			})
		}
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	// Provider validation
	validAPIs := []string{"openai", "ollama"}
	seen := map[string]bool{}
	for i, p := range cfg.Providers {
		path := fmt.Sprintf("providers[%d]", i)
		if p.ID == "" {
			issues = append(issues, ValidationIssue{
				Path:    path + ".id",
				Message: "id is required",
			})
			continue
		}
		if seen[p.ID] {
			issues = append(issues, ValidationIssue{
				Path:    path + ".id",
				Message: fmt.Sprintf("duplicate provider id %q", p.ID),
			})
		}
		seen[p.ID] = true

		if p.API != "" && !slices.Contains(validAPIs, p.API) {
			issues = append(issues, ValidationIssue{
				Path:    path + ".api",
				Message: fmt.Sprintf("must be one of %v, got %q", validAPIs, p.API),
			})
		}
		if p.Discover && p.API == "" {
			issues = append(issues, ValidationIssue{
				Path:    path + ".discover",
				Message: "discovery requires api to be set",
			})
		}
		if p.Discover && p.BaseURL == "" {
			issues = append(issues, ValidationIssue{
				Path:    path + ".baseUrl",
				Message: "discovery requires baseUrl to be set",
			})
		}
	}

	// History validation
	if cfg.History.Keep < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "history.keep",
			Message: fmt.Sprintf("keep must be >= 0, got %d", cfg.History.Keep),
		})
	}

	// Hook validation
	for event, entries := range map[string][]HookEntry{
		"providerChanged": cfg.Hooks.ProviderChanged,
		"agentChanged":    cfg.Hooks.AgentChanged,
		"syncCompleted":   cfg.Hooks.SyncCompleted,
		"stateSaved":      cfg.Hooks.StateSaved,
		"gatewayStart":    cfg.Hooks.GatewayStart,
		"gatewayStop":     cfg.Hooks.GatewayStop,
	} {
		for i, h := range entries {
			if h.Command == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("hooks.%s[%d].command", event, i),
					Message: "command is required",
				})
			}
			if h.Timeout < 0 {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("hooks.%s[%d].timeout", event, i),
					Message: fmt.Sprintf("timeout must be >= 0, got %d", h.Timeout),
				})
			}
		}
	}

	return issues
}
