package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orderset.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen = "0.0.0.0:9000"
backend = "bbolt"
requests_per_minute = 60
collections = ["achievements", "core_strengths"]
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "bbolt", cfg.Backend)
	assert.Equal(t, 60, cfg.RequestsPerMinute)
	assert.Equal(t, []string{"achievements", "core_strengths"}, cfg.Collections)
	// Unset keys keep their defaults.
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, int64(1<<20), cfg.MaxRequestBody)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("listen = "), 0644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "orderset.toml")
	cfg := Default()
	cfg.AdminKey = "k"
	cfg.WebhookURLs = []string{"https://example.com/hook"}
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"ORDERSET_BACKEND":             "memory",
		"ORDERSET_ADMIN_KEY":           "from-env",
		"ORDERSET_WEBHOOK_URLS":        "http://a, ,http://b",
		"ORDERSET_REQUESTS_PER_MINUTE": "0",
		"ORDERSET_LOG_LEVEL":           "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, "from-env", cfg.AdminKey)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.WebhookURLs)
	assert.Equal(t, 0, cfg.RequestsPerMinute)
	assert.Equal(t, "info", cfg.LogLevel, "empty values do not override")
}

func TestApplyEnv_BadNumber(t *testing.T) {
	err := Default().ApplyEnv(env(map[string]string{"ORDERSET_MAX_REQUEST_BODY": "lots"}))
	assert.ErrorContains(t, err, "ORDERSET_MAX_REQUEST_BODY")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Backend = "postgres"
	cfg.LogFormat = "xml"
	cfg.MaxRequestBody = 0
	cfg.Collections = []string{"listings"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, `backend "postgres"`)
	assert.ErrorContains(t, err, `log_format "xml"`)
	assert.ErrorContains(t, err, "max_request_body")
	assert.ErrorContains(t, err, `unknown kind "listings"`)
}
