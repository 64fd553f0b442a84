package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single segment", "logging", []string{"logging"}, false},
		{"two segments", "history.keep", []string{"history", "keep"}, false},
		{"three segments", "gateway.auth.mode", []string{"gateway", "auth", "mode"}, false},
		{"empty", "", nil, true},
		{"empty segment", "history..keep", nil, true},
		{"leading dot", ".history", nil, true},
		{"trailing dot", "history.", nil, true},
		{"blocked __proto__", "foo.__proto__.bar", nil, true},
		{"blocked prototype", "prototype.x", nil, true},
		{"blocked constructor", "constructor", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBlockedKeysCoverPrototypePollution(t *testing.T) {
	for _, key := range []string{"__proto__", "prototype", "constructor"} {
		assert.True(t, blockedKeys[key], key)
	}
	assert.False(t, blockedKeys["history"])
}

func TestGetValueAtPath(t *testing.T) {
	root := map[string]any{
		"history": map[string]any{
			"keep":    200,
			"enabled": true,
		},
		"gateway": map[string]any{
			"auth": map[string]any{"mode": "token"},
		},
		"simple": "value",
	}

	tests := []struct {
		name string
		path []string
		want any
		ok   bool
	}{
		{"nested value", []string{"history", "keep"}, 200, true},
		{"deeply nested", []string{"gateway", "auth", "mode"}, "token", true},
		{"top level", []string{"simple"}, "value", true},
		{"missing key", []string{"nonexistent"}, nil, false},
		{"missing nested", []string{"history", "nonexistent"}, nil, false},
		{"non-map intermediate", []string{"simple", "sub"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, ok := GetValueAtPath(root, tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, val)
			}
		})
	}
}

func TestSetValueAtPath(t *testing.T) {
	root := map[string]any{
		"history": map[string]any{"keep": 200},
	}

	// Update in place
	SetValueAtPath(root, []string{"history", "keep"}, 50)
	val, ok := GetValueAtPath(root, []string{"history", "keep"})
	require.True(t, ok)
	assert.Equal(t, 50, val)

	// Create intermediate maps
	SetValueAtPath(root, []string{"gateway", "auth", "mode"}, "password")
	val, ok = GetValueAtPath(root, []string{"gateway", "auth", "mode"})
	require.True(t, ok)
	assert.Equal(t, "password", val)

	// Replace a scalar that blocks the path
	root["logging"] = "scalar"
	SetValueAtPath(root, []string{"logging", "level"}, "debug")
	val, ok = GetValueAtPath(root, []string{"logging", "level"})
	require.True(t, ok)
	assert.Equal(t, "debug", val)

	// Single segment writes straight into the root
	SetValueAtPath(root, []string{"version"}, "1.0.0")
	assert.Equal(t, "1.0.0", root["version"])
}

func TestUnsetValueAtPath(t *testing.T) {
	root := map[string]any{
		"gateway": map[string]any{
			"port": 17871,
			"bind": "loopback",
		},
	}

	assert.True(t, UnsetValueAtPath(root, []string{"gateway", "port"}))

	_, found := GetValueAtPath(root, []string{"gateway", "port"})
	assert.False(t, found)

	// Siblings survive
	val, found := GetValueAtPath(root, []string{"gateway", "bind"})
	require.True(t, found)
	assert.Equal(t, "loopback", val)

	// Misses report false without modifying anything
	assert.False(t, UnsetValueAtPath(root, []string{"gateway", "nonexistent"}))
	assert.False(t, UnsetValueAtPath(root, []string{"a", "b", "c"}))

	root["scalar"] = "not-a-map"
	assert.False(t, UnsetValueAtPath(root, []string{"scalar", "sub"}))
}

func TestResolvePathsDefaultHome(t *testing.T) {
	t.Setenv("PERCH_HOME", "")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".perch"), paths.Base)
	assert.Equal(t, filepath.Join(home, ".perch", "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(home, ".perch", "data"), paths.Data)
	assert.Equal(t, filepath.Join(home, ".perch", "logs"), paths.Logs)
}

func TestResolvePathsHonorsEnv(t *testing.T) {
	t.Setenv("PERCH_HOME", "/tmp/testperch")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/testperch", paths.Base)
	assert.Equal(t, "/tmp/testperch/config.yaml", paths.Config)
	assert.Equal(t, "/tmp/testperch/data", paths.Data)
	assert.Equal(t, "/tmp/testperch/logs", paths.Logs)
}

func TestPathsFrom(t *testing.T) {
	paths := PathsFrom("/opt/perch")

	assert.Equal(t, "/opt/perch", paths.Base)
	assert.Equal(t, "/opt/perch/config.yaml", paths.Config)
	assert.Equal(t, "/opt/perch/data", paths.Data)
	assert.Equal(t, "/opt/perch/logs", paths.Logs)
}

func TestLogFile(t *testing.T) {
	paths := PathsFrom("/opt/perch")

	assert.Equal(t, "", paths.LogFile(""))
	assert.Equal(t, "/opt/perch/logs/perch.log", paths.LogFile("perch.log"))
	assert.Equal(t, "/var/log/perch.log", paths.LogFile("/var/log/perch.log"))
}

func TestEnsureDirs(t *testing.T) {
	tmpDir := t.TempDir()
	paths := Paths{
		Base: tmpDir,
		Data: filepath.Join(tmpDir, "data"),
		Logs: filepath.Join(tmpDir, "logs"),
	}

	require.NoError(t, paths.EnsureDirs())

	for _, dir := range []string{paths.Base, paths.Data, paths.Logs} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Second run is a no-op
	require.NoError(t, paths.EnsureDirs())
}
