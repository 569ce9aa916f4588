// Package config loads the CLI configuration from a YAML file, SUPERAGENT_*
// environment variables and an optional .env file, with XDG-based defaults
// for every path.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/lihan0705/lead-agent/internal/build"
)

// Session store kinds.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Model kinds.
const (
	ModelQwen   = "qwen"
	ModelGemini = "gemini"
)

// Config is the resolved CLI configuration.
type Config struct {
	Model   Model   `mapstructure:"model"`
	Agent   Agent   `mapstructure:"agent"`
	Session Session `mapstructure:"session"`
	Log     Log     `mapstructure:"log"`
	GAIA    GAIA    `mapstructure:"gaia"`

	// ConfigFileUsed is the YAML file that was read, empty when no file was
	// found and the defaults applied.
	ConfigFileUsed string `mapstructure:"-"`
}

// Model selects and tunes the LLM deployment. Zero values defer to the
// deployment defaults in the llm package.
type Model struct {
	Kind              string  `mapstructure:"kind"`
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	CACertFile        string  `mapstructure:"ca_cert_file"`
	MaxTokens         int64   `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
}

// Agent controls how the root agent is assembled.
type Agent struct {
	WorkingDir    string `mapstructure:"working_dir"`
	AutoApprove   bool   `mapstructure:"auto_approve"`
	Subagents     bool   `mapstructure:"subagents"`
	Memory        bool   `mapstructure:"memory"`
	AssistantID   string `mapstructure:"assistant_id"`
	MaxModelCalls int    `mapstructure:"max_model_calls"`
}

// Session selects the conversation store.
type Session struct {
	Store      string `mapstructure:"store"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Log configures the CLI logger. An empty Dir disables the log file and
// keeps console output only.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Dir    string `mapstructure:"dir"`
}

// GAIA configures benchmark dataset access.
type GAIA struct {
	DataDir string `mapstructure:"data_dir"`
	HFToken string `mapstructure:"hf_token"`
}

// Validate rejects values the commands cannot act on.
func (c *Config) Validate() error {
	switch c.Session.Store {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("unknown session store %q (want %q or %q)",
			c.Session.Store, StoreMemory, StoreSQLite)
	}

	switch c.Model.Kind {
	case ModelQwen, ModelGemini:
	default:
		return fmt.Errorf("unknown model kind %q (want %q or %q)",
			c.Model.Kind, ModelQwen, ModelGemini)
	}

	return nil
}

// DefaultConfigDir is the directory searched for config.yaml.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, build.Slug)
}

// DefaultSQLitePath locates the session database under the XDG data home.
func DefaultSQLitePath() string {
	return filepath.Join(xdg.DataHome, build.Slug, "sessions.db")
}

// DefaultLogDir locates log files under the XDG data home.
func DefaultLogDir() string {
	return filepath.Join(xdg.DataHome, build.Slug, "logs")
}

// DefaultGAIADir locates the GAIA dataset snapshot under the XDG data home.
func DefaultGAIADir() string {
	return filepath.Join(xdg.DataHome, build.Slug, "gaia")
}
