package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern recognizes ${VAR_NAME} references inside credential strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars resolves ${VAR} references against the environment.
// Unset variables are left as written so the reference stays visible.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(ref string) string {
		val, ok := os.LookupEnv(ref[2 : len(ref)-1])
		if !ok {
			return ref
		}
		return val
	})
}

// expandSensitiveFields resolves environment references in credential
// fields so API keys and tokens can live in config.yaml as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	auth := &cfg.Gateway.Auth
	auth.Token = expandEnvVars(auth.Token)
	auth.Password = expandEnvVars(auth.Password)
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		p.APIKey = expandEnvVars(p.APIKey)
	}
}

// readConfigFile returns the file contents, with found=false when the
// file does not exist.
func readConfigFile(path string) (data []byte, found bool, err error) {
	data, err = os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return data, true, nil
}

// Load builds the effective configuration: defaults first, then the YAML
// file, then PERCH_* environment overrides, with credential references
// expanded last. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, found, err := readConfigFile(path)
	if err != nil {
		return cfg, err
	}
	if found {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
		applyDefaults(&cfg)
	}

	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file as an untyped map, the form the dotted
// path operations work on. A missing file yields an empty map.
func LoadRaw(path string) (map[string]any, error) {
	data, found, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	raw := map[string]any{}
	if !found {
		return raw, nil
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes the raw config map back to disk as YAML, keeping the
// file readable only by its owner.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults refills zero-valued fields after the YAML merge, so a
// file that explicitly zeroes a field gets the default back too.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = def.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = def.Gateway.Bind
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = def.Gateway.Auth.Mode
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = def.Logging.ConsoleStyle
	}
	if cfg.History.Keep == 0 {
		cfg.History.Keep = def.History.Keep
	}
}

// envOverrides maps PERCH_* variables to the fields they override.
var envOverrides = []struct {
	name  string
	apply func(*Config, string)
}{
	{"PERCH_GATEWAY_PORT", func(c *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			c.Gateway.Port = port
		}
	}},
	{"PERCH_GATEWAY_BIND", func(c *Config, v string) { c.Gateway.Bind = v }},
	{"PERCH_LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = strings.ToLower(v) }},
}

// applyEnvOverrides lets the environment win over file values.
func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(cfg, v)
		}
	}
}
