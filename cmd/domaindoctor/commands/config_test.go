package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hllvc/domaindoctor/internal/app"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func noEnv() []string { return nil }

func TestLoadConfigDefaultsOnly(t *testing.T) {
	cfg, err := loadConfig("", nil, func() []string {
		return []string{"DOMAINDOCTOR_BACKEND__BASE_URL=https://diagnostics.example.com"}
	})
	require.NoError(t, err)

	assert.Equal(t, app.DefaultConfigServerHost, cfg.Server.Host)
	assert.Equal(t, uint16(app.DefaultConfigServerPort), cfg.Server.Port)
	assert.Equal(t, app.DefaultConfigFingerprintStorage, cfg.Fingerprint.Storage)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = 4999

[backend]
base_url = "https://diagnostics.example.com"
token_header = "X-Antiforgery"

[fingerprint]
storage = "memory"
`)

	cfg, err := loadConfig(path, nil, noEnv)
	require.NoError(t, err)

	assert.Equal(t, uint16(4999), cfg.Server.Port)
	assert.Equal(t, "https://diagnostics.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "X-Antiforgery", cfg.Backend.TokenHeader)
}

func TestLoadConfigEnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = 4999

[backend]
base_url = "https://from-file.example.com"
`)

	cfg, err := loadConfig(path, nil, func() []string {
		return []string{
			"DOMAINDOCTOR_BACKEND__BASE_URL=https://from-env.example.com",
			"DOMAINDOCTOR_SERVER__PORT=5001",
		}
	})
	require.NoError(t, err)

	assert.Equal(t, "https://from-env.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, uint16(5001), cfg.Server.Port)
}

func TestLoadConfigIgnoresForeignEnvironment(t *testing.T) {
	cfg, err := loadConfig("", nil, func() []string {
		return []string{
			"DOMAINDOCTOR_BACKEND__BASE_URL=https://diagnostics.example.com",
			"OTHERAPP_SERVER__PORT=9000",
			"PATH=/usr/bin",
		}
	})
	require.NoError(t, err)
	assert.Equal(t, uint16(app.DefaultConfigServerPort), cfg.Server.Port)
}

func TestLoadConfigRejectsInvalidConfig(t *testing.T) {
	_, err := loadConfig("", nil, noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml"), nil, noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config file")
}
