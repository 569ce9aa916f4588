package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(WithConfigDir(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, ModelQwen, cfg.Model.Kind)
	assert.Empty(t, cfg.Model.BaseURL)
	assert.Zero(t, cfg.Model.MaxTokens)

	assert.False(t, cfg.Agent.AutoApprove)
	assert.True(t, cfg.Agent.Subagents)
	assert.True(t, cfg.Agent.Memory)
	assert.Empty(t, cfg.Agent.AssistantID)

	assert.Equal(t, StoreMemory, cfg.Session.Store)
	assert.Equal(t, DefaultSQLitePath(), cfg.Session.SQLitePath)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, DefaultLogDir(), cfg.Log.Dir)

	assert.Equal(t, DefaultGAIADir(), cfg.GAIA.DataDir)
	assert.Empty(t, cfg.ConfigFileUsed)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
model:
  kind: gemini
  temperature: 0.2
  max_tokens: 2048
agent:
  auto_approve: true
  subagents: false
  assistant_id: reviewer
session:
  store: sqlite
  sqlite_path: /tmp/sessions.db
log:
  level: debug
  dir: ""
`)

	cfg, err := Load(WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, ModelGemini, cfg.Model.Kind)
	assert.InDelta(t, 0.2, cfg.Model.Temperature, 1e-9)
	assert.Equal(t, int64(2048), cfg.Model.MaxTokens)
	assert.True(t, cfg.Agent.AutoApprove)
	assert.False(t, cfg.Agent.Subagents)
	assert.True(t, cfg.Agent.Memory)
	assert.Equal(t, "reviewer", cfg.Agent.AssistantID)
	assert.Equal(t, StoreSQLite, cfg.Session.Store)
	assert.Equal(t, "/tmp/sessions.db", cfg.Session.SQLitePath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Empty(t, cfg.Log.Dir)
	assert.Equal(t, path, cfg.ConfigFileUsed)
}

func TestLoad_ConfigDirSearch(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "model:\n  kind: gemini\n")

	cfg, err := Load(WithConfigDir(dir))
	require.NoError(t, err)
	assert.Equal(t, ModelGemini, cfg.Model.Kind)
	assert.NotEmpty(t, cfg.ConfigFileUsed)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "model:\n  kind: qwen\nsession:\n  store: memory\n")

	t.Setenv("SUPERAGENT_MODEL_KIND", "gemini")
	t.Setenv("SUPERAGENT_SESSION_STORE", "sqlite")
	t.Setenv("SUPERAGENT_GAIA_HF_TOKEN", "hf_test")

	cfg, err := Load(WithConfigDir(dir))
	require.NoError(t, err)
	assert.Equal(t, ModelGemini, cfg.Model.Kind)
	assert.Equal(t, StoreSQLite, cfg.Session.Store)
	assert.Equal(t, "hf_test", cfg.GAIA.HFToken)
}

func TestLoad_DotEnv(t *testing.T) {
	// godotenv writes straight into the process environment; make sure the
	// variable does not leak into other tests.
	require.NoError(t, os.Unsetenv("SUPERAGENT_MODEL_KIND"))
	t.Cleanup(func() { _ = os.Unsetenv("SUPERAGENT_MODEL_KIND") })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("SUPERAGENT_MODEL_KIND=gemini\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load(WithConfigDir(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, ModelGemini, cfg.Model.Kind)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(WithConfigFile(filepath.Join(t.TempDir(), "nope.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unclosed\n"), 0o644))

	_, err := Load(WithConfigFile(path))
	require.Error(t, err)
}

func TestLoad_InvalidStore(t *testing.T) {
	t.Setenv("SUPERAGENT_SESSION_STORE", "redis")

	_, err := Load(WithConfigDir(t.TempDir()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown session store")
}

func TestLoad_InvalidModelKind(t *testing.T) {
	t.Setenv("SUPERAGENT_MODEL_KIND", "gpt4")

	_, err := Load(WithConfigDir(t.TempDir()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model kind")
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Model:   Model{Kind: ModelQwen},
		Session: Session{Store: StoreMemory},
	}
	require.NoError(t, cfg.Validate())

	cfg.Session.Store = "postgres"
	require.Error(t, cfg.Validate())
}
