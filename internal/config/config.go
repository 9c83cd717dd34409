// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/rigrun-setup/internal/logging"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the defaults file plus environment and flag overrides.
type Config struct {
	// Model is the model to pull; empty picks one from the detected VRAM.
	Model string `toml:"model" yaml:"model"`
	// ContextTokens is OLLAMA_CONTEXT_LENGTH; 0 derives it from VRAM.
	ContextTokens int    `toml:"context_tokens" yaml:"context_tokens"`
	InstallDir    string `toml:"install_dir" yaml:"install_dir"`
	OllamaHost    string `toml:"ollama_host" yaml:"ollama_host"`
	// SkipAssistant leaves the assistant CLI uninstalled.
	SkipAssistant bool   `toml:"skip_assistant" yaml:"skip_assistant"`
	LogLevel      string `toml:"log_level" yaml:"log_level"`

	Server ServerConfig `toml:"server" yaml:"server"`
}

// ServerConfig tunes the readiness check after `ollama serve` is started.
type ServerConfig struct {
	Attempts       int `toml:"attempts" yaml:"attempts"`
	BackoffSeconds int `toml:"backoff_seconds" yaml:"backoff_seconds"`
}

// Backoff returns the wait before each readiness check.
func (s ServerConfig) Backoff() time.Duration {
	return time.Duration(s.BackoffSeconds) * time.Second
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		OllamaHost: "127.0.0.1:11434",
		LogLevel:   "warn",
		Server: ServerConfig{
			Attempts:       2,
			BackoffSeconds: 3,
		},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Names of the defaults file inside the state dir.
var fileNames = []string{"setup.toml", "setup.yaml", "setup.yml"}

// StateDir returns ~/.rigrun.
func StateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigrun"), nil
}

// Load reads the defaults file. With an empty path the first existing file
// of ~/.rigrun/setup.{toml,yaml,yml} is used, and no file at all yields
// the defaults. It returns the path that was read, if any.
func Load(path string) (*Config, string, error) {
	cfg := Default()

	if path == "" {
		dir, err := StateDir()
		if err != nil {
			return cfg, "", nil
		}
		for _, name := range fileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return cfg, "", nil
		}
	}

	if err := LoadFile(cfg, path); err != nil {
		return Default(), path, err
	}
	return cfg, path, nil
}

// LoadFile decodes path into cfg by extension; unset keys keep their
// current values.
func LoadFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(cfg, path)
	default:
		return LoadTOML(cfg, path)
	}
}

// LoadTOML loads configuration from a TOML file. Unknown keys are logged.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	for _, key := range md.Undecoded() {
		logging.Log.WithField("key", key.String()).WithField("file", path).Warn("unknown config key ignored")
	}
	return nil
}

// LoadYAML loads configuration from a YAML file. Unknown keys are errors.
func LoadYAML(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

// Environment variables consulted.
const (
	EnvModel      = "RIGRUN_SETUP_MODEL"
	EnvContext    = "RIGRUN_SETUP_CONTEXT"
	EnvInstallDir = "RIGRUN_SETUP_INSTALL_DIR"
	EnvOllamaHost = "OLLAMA_HOST"
	EnvCI         = "CI"
)

// ApplyEnvOverrides overrides values from the environment:
//   - RIGRUN_SETUP_MODEL: overrides model
//   - RIGRUN_SETUP_CONTEXT: overrides context_tokens
//   - RIGRUN_SETUP_INSTALL_DIR: overrides install_dir
//   - OLLAMA_HOST: overrides ollama_host
func (c *Config) ApplyEnvOverrides() error {
	return c.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if model := getenv(EnvModel); model != "" {
		c.Model = model
	}
	if dir := getenv(EnvInstallDir); dir != "" {
		c.InstallDir = dir
	}
	if host := getenv(EnvOllamaHost); host != "" {
		c.OllamaHost = host
	}
	if raw := getenv(EnvContext); raw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return ValidationError{Field: EnvContext, Message: fmt.Sprintf("not an integer: %q", raw)}
		}
		c.ContextTokens = n
	}
	return nil
}

// CI reports whether the CI environment variable is truthy.
func CI() bool {
	return IsTruthy(os.Getenv(EnvCI))
}

// IsTruthy accepts 1, true, yes and on in any case.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// =============================================================================
// FLAG OVERRIDES
// =============================================================================

// Overrides carries flags the user set explicitly; nil fields were not set.
type Overrides struct {
	Model         *string
	ContextTokens *int
	InstallDir    *string
	SkipAssistant *bool
	LogLevel      *string
}

// ApplyOverrides copies every set field onto c.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Model != nil {
		c.Model = *o.Model
	}
	if o.ContextTokens != nil {
		c.ContextTokens = *o.ContextTokens
	}
	if o.InstallDir != nil {
		c.InstallDir = *o.InstallDir
	}
	if o.SkipAssistant != nil {
		c.SkipAssistant = *o.SkipAssistant
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
}

// SaveTOML writes c to path. Used by `rigrun-setup config init`.
func SaveTOML(c *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	return f.Close()
}
