// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Mode selects the orchestrator pipeline.
type Mode string

const (
	ModeRecommended    Mode = "recommended"
	ModeCustom         Mode = "custom"
	ModeNonInteractive Mode = "non-interactive"
	ModeUninstall      Mode = "uninstall"
)

// Interactive reports whether the mode prompts the operator.
func (m Mode) Interactive() bool {
	return m == ModeRecommended || m == ModeCustom
}

// MaxContextTokens bounds --context.
const MaxContextTokens = 1 << 20

// InstallConfig is everything one run needs. It is built once by Resolve
// and passed by value; nothing changes it afterwards.
type InstallConfig struct {
	Mode Mode
	// ModelName and ContextTokens are zero when they should be derived
	// from VRAM or collected by a prompt.
	ModelName              string
	ContextTokens          int
	InstallDir             string
	RemoveModelOnUninstall bool
	// GGUFImportPath, when set, replaces the pull with a local import
	// named ImportName (derived from the file when empty).
	GGUFImportPath string
	ImportName     string
	SkipAssistant  bool
	OllamaHost     string
	// AssumeYes grants consent for privileged installers.
	AssumeYes bool
	Server    ServerConfig
}

// Request is the command-line input that is not a default.
type Request struct {
	Mode        Mode
	GGUFPath    string
	ImportName  string
	RemoveModel bool
	AssumeYes   bool
	// Home and DefaultInstallDir come from the platform.
	Home              string
	DefaultInstallDir string
}

// Resolve validates c against req and returns the run configuration.
// Every problem is reported at once as ValidateErrors.
func (c *Config) Resolve(req Request) (InstallConfig, error) {
	ic := InstallConfig{
		Mode:                   req.Mode,
		ModelName:              strings.TrimSpace(c.Model),
		ContextTokens:          c.ContextTokens,
		InstallDir:             ExpandHome(c.InstallDir, req.Home),
		RemoveModelOnUninstall: req.RemoveModel,
		GGUFImportPath:         ExpandHome(req.GGUFPath, req.Home),
		ImportName:             strings.TrimSpace(req.ImportName),
		SkipAssistant:          c.SkipAssistant,
		OllamaHost:             c.OllamaHost,
		AssumeYes:              req.AssumeYes,
		Server:                 c.Server,
	}
	if ic.InstallDir == "" {
		ic.InstallDir = req.DefaultInstallDir
	}
	if ic.Server.Attempts <= 0 {
		ic.Server.Attempts = Default().Server.Attempts
	}
	if ic.Server.BackoffSeconds <= 0 {
		ic.Server.BackoffSeconds = Default().Server.BackoffSeconds
	}

	if err := ic.Validate(); err != nil {
		return InstallConfig{}, err
	}
	return ic, nil
}

// Validate checks flag combinations and value ranges.
func (ic InstallConfig) Validate() error {
	var errs ValidateErrors

	switch ic.Mode {
	case ModeRecommended, ModeCustom, ModeNonInteractive, ModeUninstall:
	default:
		errs = append(errs, ValidationError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", ic.Mode)})
	}

	if ic.ContextTokens < 0 || ic.ContextTokens > MaxContextTokens {
		errs = append(errs, ValidationError{
			Field:   "context",
			Message: fmt.Sprintf("must be between 1 and %d (0 derives it from VRAM), got %d", MaxContextTokens, ic.ContextTokens),
		})
	}
	if err := ValidateModelName(ic.ModelName); ic.ModelName != "" && err != nil {
		errs = append(errs, ValidationError{Field: "model", Message: err.Error()})
	}
	if err := ValidateModelName(ic.ImportName); ic.ImportName != "" && err != nil {
		errs = append(errs, ValidationError{Field: "name", Message: err.Error()})
	}
	if ic.ImportName != "" && ic.GGUFImportPath == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "--name requires --gguf"})
	}
	if ic.RemoveModelOnUninstall && ic.Mode != ModeUninstall {
		errs = append(errs, ValidationError{Field: "remove-model", Message: "--remove-model requires --uninstall"})
	}
	if ic.Mode == ModeUninstall && ic.GGUFImportPath != "" {
		errs = append(errs, ValidationError{Field: "gguf", Message: "--gguf cannot be combined with --uninstall"})
	}
	if ic.InstallDir == "" {
		errs = append(errs, ValidationError{Field: "install-dir", Message: "no install directory"})
	} else if !filepath.IsAbs(ic.InstallDir) {
		errs = append(errs, ValidationError{Field: "install-dir", Message: fmt.Sprintf("must be absolute, got %q", ic.InstallDir)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateModelName rejects names ollama would not accept or that would
// need quoting in the wrapper.
func ValidateModelName(name string) error {
	if name == "" {
		return fmt.Errorf("model name is empty")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("._-:/", r):
		default:
			return fmt.Errorf("invalid character %q in model name %q", r, name)
		}
	}
	return nil
}

// ValidateLogLevel checks a logrus level name.
func ValidateLogLevel(level string) error {
	if _, err := logrus.ParseLevel(level); err != nil {
		return ValidationError{Field: "log-level", Message: err.Error()}
	}
	return nil
}

// ExpandHome replaces a leading "~" with home.
func ExpandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		return filepath.Join(home, path[2:])
	}
	return path
}

// =============================================================================
// VALIDATION ERRORS
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
