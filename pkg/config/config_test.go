package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks the override variables so a developer's shell does not
// leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENROUTER_API_KEY", "OPENROUTER_MODEL", "OPENROUTER_BASE_URL",
		"WEBPILOT_RUNS_DIR", "WEBPILOT_HEADLESS", "WEBPILOT_DEBUG",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 120*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 1000, cfg.MaxIterations)
	assert.Equal(t, 180*time.Second, cfg.ActionTimeout)
	assert.True(t, cfg.Headless)
	assert.Equal(t, "runs", cfg.RunsDir)
	assert.Empty(t, cfg.Model)
	assert.Empty(t, cfg.APIKey)
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `model: openai/gpt-4o
api_key: sk-test
max_iterations: 50
headless: false
custom_instructions: prefer mobile layouts
runs_dir: /tmp/webpilot-runs
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai/gpt-4o", cfg.Model)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, 50, cfg.MaxIterations)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "prefer mobile layouts", cfg.CustomInstructions)
	assert.Equal(t, "/tmp/webpilot-runs", cfg.RunsDir)

	// Values the file does not mention keep their defaults.
	assert.Equal(t, 120*time.Second, cfg.HTTPTimeout)
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: file/model\napi_key: file-key\n"), 0o600))

	t.Setenv("OPENROUTER_MODEL", "env/model")
	t.Setenv("OPENROUTER_API_KEY", "env-key")
	t.Setenv("WEBPILOT_HEADLESS", "false")
	t.Setenv("WEBPILOT_DEBUG", "1")
	t.Setenv("WEBPILOT_RUNS_DIR", "elsewhere")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env/model", cfg.Model)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.False(t, cfg.Headless)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "elsewhere", cfg.RunsDir)
}

func TestEnvInvalidBoolIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEBPILOT_HEADLESS", "definitely")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.Headless)
}

func TestLoadBackfillsZeroValues(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_iterations: -5\nruns_dir: \"\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.MaxIterations)
	assert.Equal(t, "runs", cfg.RunsDir)
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(".webpilot", "config.yaml"), filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path)))
}
