package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServeConfigDefaults(t *testing.T) {
	cfg, err := loadServeConfig()
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, ".go", cfg.ScriptExtension)
}

func TestLoadServeConfigFlagOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixserve.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\nlogLevel: warn\n"), 0o644))

	serveConfigFile = path
	servePort = 9123
	t.Cleanup(func() {
		serveConfigFile = ""
		servePort = 0
	})

	cfg, err := loadServeConfig()
	require.NoError(t, err)
	assert.Equal(t, 9123, cfg.Port, "flag beats file")
	assert.Equal(t, "warn", cfg.LogLevel, "file beats default")
}

func TestLoadServeConfigMissingFile(t *testing.T) {
	serveConfigFile = filepath.Join(t.TempDir(), "absent.yaml")
	t.Cleanup(func() { serveConfigFile = "" })

	_, err := loadServeConfig()
	require.Error(t, err)
}
