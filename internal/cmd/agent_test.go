package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lihan0705/lead-agent/internal/config"
	"github.com/lihan0705/lead-agent/session"
	"github.com/lihan0705/lead-agent/session/sqlite"
)

func TestBuildModel_Qwen(t *testing.T) {
	cfg := &config.Config{Model: config.Model{Kind: config.ModelQwen}}

	m, err := buildModel(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, "qwen", m.Info().Provider)
}

func TestBuildModel_GeminiOverride(t *testing.T) {
	cfg := &config.Config{Model: config.Model{Kind: config.ModelQwen}}

	m, err := buildModel(cfg, config.ModelGemini)
	require.NoError(t, err)
	assert.Equal(t, "gemini", m.Info().Provider)
}

func TestBuildModel_UnknownKind(t *testing.T) {
	cfg := &config.Config{Model: config.Model{Kind: config.ModelQwen}}

	_, err := buildModel(cfg, "gpt4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model kind")
}

func TestNewSessionStore_Memory(t *testing.T) {
	cfg := &config.Config{Session: config.Session{Store: config.StoreMemory}}

	store, closeFn, err := newSessionStore(cfg)
	require.NoError(t, err)
	assert.Nil(t, closeFn)
	assert.IsType(t, &session.InMemoryStore{}, store)
}

func TestNewSessionStore_SQLiteCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")
	cfg := &config.Config{Session: config.Session{Store: config.StoreSQLite, SQLitePath: path}}

	store, closeFn, err := newSessionStore(cfg)
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	assert.IsType(t, &sqlite.Store{}, store)

	_, err = store.Create("sess-1")
	require.NoError(t, err)
	require.NoError(t, closeFn())

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestReadAgentFlags(t *testing.T) {
	cmd := &cobra.Command{}
	registerAgentFlags(cmd)
	require.NoError(t, cmd.Flags().Set("model", "gemini"))
	require.NoError(t, cmd.Flags().Set("auto-approve", "true"))
	require.NoError(t, cmd.Flags().Set("no-memory", "true"))
	require.NoError(t, cmd.Flags().Set("session", "sess-42"))

	f := readAgentFlags(cmd)
	assert.Equal(t, "gemini", f.model)
	assert.True(t, f.autoApprove)
	assert.False(t, f.noSubagents)
	assert.True(t, f.noMemory)
	assert.Equal(t, "sess-42", f.session)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", firstNonEmpty("", "a", "b"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
