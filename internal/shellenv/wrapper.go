// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shellenv

import (
	"embed"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cbroglie/mustache"

	"github.com/jeranaias/rigrun-setup/internal/logging"
	"github.com/jeranaias/rigrun-setup/internal/platform"
	"github.com/jeranaias/rigrun-setup/internal/util"
)

//go:embed templates/*.mustache
var templates embed.FS

// Reconciler reads and writes the artifacts for one platform.
type Reconciler struct {
	Platform   platform.Platform
	InstallDir string
	EnvPath    string
}

// New returns a reconciler placing the wrapper in installDir and the env
// file in the platform state dir.
func New(p platform.Platform, installDir string) *Reconciler {
	if installDir == "" {
		installDir = p.DefaultInstallDir()
	}
	return &Reconciler{
		Platform:   p,
		InstallDir: installDir,
		EnvPath:    p.EnvFilePath(),
	}
}

// Wrapper is the generated launcher for one model.
type Wrapper struct {
	Path          string
	TargetModel   string
	ContextTokens int
}

// WrapperPath is the fixed location of the wrapper executable.
func (r *Reconciler) WrapperPath() string {
	return filepath.Join(r.InstallDir, r.Platform.WrapperName())
}

// RenderWrapper returns the wrapper bytes for a platform. The result depends
// only on its arguments.
func RenderWrapper(kind platform.Kind, model string, contextTokens int) ([]byte, error) {
	name := "templates/wrapper.sh.mustache"
	if kind == platform.Windows {
		name = "templates/wrapper.cmd.mustache"
	}
	raw, err := templates.ReadFile(name)
	if err != nil {
		return nil, err
	}
	tmpl, err := mustache.ParseString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	out, err := tmpl.Render(map[string]any{
		"Model":         model,
		"ContextTokens": contextTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	if kind == platform.Windows {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	return []byte(out), nil
}

// EnsureWrapper overwrites the wrapper with content for (model,
// contextTokens) and marks it executable.
func (r *Reconciler) EnsureWrapper(model string, contextTokens int) (string, error) {
	if err := validateModel(model); err != nil {
		return "", err
	}
	if contextTokens <= 0 {
		return "", fmt.Errorf("context size must be positive, got %d", contextTokens)
	}

	data, err := RenderWrapper(r.Platform.Kind, model, contextTokens)
	if err != nil {
		return "", err
	}
	path := r.WrapperPath()
	if err := util.AtomicWriteFile(path, data, 0o755); err != nil {
		return "", fmt.Errorf("write wrapper %s: %w", path, err)
	}
	logging.Log.WithField("path", path).WithField("model", model).Debug("wrapper written")
	return path, nil
}

// validateModel rejects names that would break out of the quoted argument
// in the wrapper.
func validateModel(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model name is empty")
	}
	if strings.ContainsAny(model, "\"'`$\\%\r\n") {
		return fmt.Errorf("model name %q contains shell metacharacters", model)
	}
	return nil
}
