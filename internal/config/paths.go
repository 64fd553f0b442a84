package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultBaseDir = ".perch"

// Paths holds resolved filesystem paths for perch data.
type Paths struct {
	Base   string // ~/.perch
	Config string // ~/.perch/config.yaml
	Data   string // ~/.perch/data (selection state, history db)
	Logs   string // ~/.perch/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If PERCH_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("PERCH_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}
	return PathsFrom(base), nil
}

// PathsFrom lays out the standard paths under an explicit base directory.
func PathsFrom(base string) Paths {
	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   filepath.Join(base, "data"),
		Logs:   filepath.Join(base, "logs"),
	}
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Data, p.Logs}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// LogFile resolves the configured log file path. Relative paths land
// under the logs directory.
func (p Paths) LogFile(name string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.Logs, name)
}

// blockedKeys never appear as path segments. The raw config map is served
// to web clients over the gateway, where these keys enable prototype
// pollution.
var blockedKeys = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

// ParseConfigPath splits a dotted key like "gateway.port" into segments,
// rejecting empty and blocked segments.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	segments := strings.Split(raw, ".")
	for _, seg := range segments {
		switch {
		case seg == "":
			return nil, &ConfigError{Message: "config path contains empty segment"}
		case blockedKeys[seg]:
			return nil, &ConfigError{Message: "config path contains blocked key: " + seg}
		}
	}
	return segments, nil
}

// GetValueAtPath reads the value at path inside a nested map. The second
// return is false when the path dead-ends or crosses a non-map value.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	node := any(root)
	for _, key := range path {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = m[key]; !ok {
			return nil, false
		}
	}
	return node, true
}

// walkTo descends to the map that holds path's final segment. With create
// set, missing intermediates are built and non-map values in the way are
// replaced; without it, either condition stops the walk and returns nil.
func walkTo(root map[string]any, path []string, create bool) map[string]any {
	node := root
	for _, key := range path[:len(path)-1] {
		if m, ok := node[key].(map[string]any); ok {
			node = m
			continue
		}
		if !create {
			return nil
		}
		m := map[string]any{}
		node[key] = m
		node = m
	}
	return node
}

// SetValueAtPath writes value at path, building intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	walkTo(root, path, true)[path[len(path)-1]] = value
}

// UnsetValueAtPath deletes the value at path and reports whether anything
// was there to delete.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	node := walkTo(root, path, false)
	if node == nil {
		return false
	}
	last := path[len(path)-1]
	if _, ok := node[last]; !ok {
		return false
	}
	delete(node, last)
	return true
}
