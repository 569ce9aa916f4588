package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lihan0705/lead-agent/internal/build"
)

// Loader reads and merges configuration from the YAML file, environment
// variables and built-in defaults.
type Loader struct {
	v          *viper.Viper
	configFile string
	configDir  string
	dotenv     string
}

// Option adjusts a Loader.
type Option func(*Loader)

// WithConfigFile makes the loader read exactly the given file instead of
// searching the config directory. The file must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.configFile = path }
}

// WithConfigDir overrides the directory searched for config.yaml. Tests use
// this to stay off the real XDG location.
func WithConfigDir(dir string) Option {
	return func(l *Loader) { l.configDir = dir }
}

// Load builds the effective configuration. Precedence, highest first:
// environment variables, the YAML file, built-in defaults. A .env file in
// the current directory is merged into the environment first without
// overriding variables that are already set.
func Load(opts ...Option) (*Config, error) {
	l := &Loader{v: viper.New(), configDir: DefaultConfigDir(), dotenv: ".env"}
	for _, opt := range opts {
		opt(l)
	}
	return l.load()
}

func (l *Loader) load() (*Config, error) {
	if err := l.loadDotEnv(); err != nil {
		return nil, err
	}

	l.configureViper()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing file in the search path is fine; an explicit --config
		// path that does not exist, or a malformed file, is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigFileUsed = l.v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) loadDotEnv() error {
	if _, err := os.Stat(l.dotenv); err != nil {
		return nil
	}
	if err := godotenv.Load(l.dotenv); err != nil {
		return fmt.Errorf("load %s: %w", l.dotenv, err)
	}
	return nil
}

func (l *Loader) configureViper() {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.AddConfigPath(l.configDir)
		l.v.SetConfigName("config")
	}
	l.v.SetConfigType("yaml")
	l.v.SetEnvPrefix(strings.ToUpper(build.Slug))
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
}

// setDefaults registers every key so AutomaticEnv resolves variables even
// when the config file omits the section.
func (l *Loader) setDefaults() {
	l.v.SetDefault("model.kind", ModelQwen)
	l.v.SetDefault("model.base_url", "")
	l.v.SetDefault("model.api_key", "")
	l.v.SetDefault("model.ca_cert_file", "")
	l.v.SetDefault("model.max_tokens", 0)
	l.v.SetDefault("model.temperature", 0.0)
	l.v.SetDefault("model.requests_per_minute", 0)

	l.v.SetDefault("agent.working_dir", "")
	l.v.SetDefault("agent.auto_approve", false)
	l.v.SetDefault("agent.subagents", true)
	l.v.SetDefault("agent.memory", true)
	l.v.SetDefault("agent.assistant_id", "")
	l.v.SetDefault("agent.max_model_calls", 0)

	l.v.SetDefault("session.store", StoreMemory)
	l.v.SetDefault("session.sqlite_path", DefaultSQLitePath())

	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "text")
	l.v.SetDefault("log.dir", DefaultLogDir())

	l.v.SetDefault("gaia.data_dir", DefaultGAIADir())
	l.v.SetDefault("gaia.hf_token", "")
}
