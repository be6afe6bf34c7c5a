package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/tatianab/storyloop/internal/logging"
)

// DefaultFile is read when no config file is given. It may be absent.
const DefaultFile = "storyloop.yaml"

// DefaultGeminiModel is used by the narrator unless configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Config holds the application configuration.
type Config struct {
	StoriesDirs []string `yaml:"stories_dirs" env:"STORYLOOP_STORIES_DIRS" envSeparator:","`
	SaveDir     string   `yaml:"save_dir"     env:"STORYLOOP_SAVE_DIR"`
	Journal     string   `yaml:"journal"      env:"STORYLOOP_JOURNAL"`
	Debug       bool     `yaml:"debug"        env:"STORYLOOP_DEBUG"`
	Seed        int64    `yaml:"seed"         env:"STORYLOOP_SEED"`
	Discard     uint64   `yaml:"discard"      env:"STORYLOOP_DISCARD"`
	LogLevel    string   `yaml:"log_level"    env:"STORYLOOP_LOG_LEVEL"`
	LogFile     string   `yaml:"log_file"     env:"STORYLOOP_LOG_FILE"`
	GeminiModel string   `yaml:"gemini_model" env:"STORYLOOP_GEMINI_MODEL"`

	// GeminiAPIKey is only read from the environment.
	GeminiAPIKey string `yaml:"-" env:"GEMINI_API_KEY"`
}

func Default() *Config {
	return &Config{
		StoriesDirs: []string{"data/stories"},
		SaveDir:     "data/save",
		LogLevel:    "info",
		GeminiModel: DefaultGeminiModel,
	}
}

// LoadConfig reads the YAML file at path over the defaults, then applies
// environment variables. An empty path means DefaultFile, which is skipped
// when missing; an explicit path must exist.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.Level(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Level is the parsed LogLevel.
func (c *Config) Level() (slog.Level, error) {
	return logging.ParseLevel(c.LogLevel)
}

// HasGemini reports whether the narrator can reach Gemini.
func (c *Config) HasGemini() bool {
	return c.GeminiAPIKey != ""
}
