// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/rigrun-setup/internal/execx"
	"github.com/jeranaias/rigrun-setup/internal/platform"
	"github.com/jeranaias/rigrun-setup/internal/util"
)

// Strategy is one way of installing a tool.
type Strategy interface {
	Name() string
	// Applicable reports whether the strategy can run for spec on this
	// host; reason explains a false answer.
	Applicable(ctx context.Context, spec ToolSpec) (ok bool, reason string)
	Install(ctx context.Context, spec ToolSpec) error
}

// =============================================================================
// PACKAGE MANAGERS
// =============================================================================

type brewStrategy struct{ in *Installer }

func (s brewStrategy) Name() string { return "brew" }

func (s brewStrategy) Applicable(ctx context.Context, spec ToolSpec) (bool, string) {
	if len(spec.BrewArgs) == 0 {
		return false, "no brew package"
	}
	if s.in.Platform.Kind == platform.Windows {
		return false, "brew is not available on windows"
	}
	if _, err := s.in.LookPath("brew"); err != nil {
		return false, "brew not found"
	}
	res, err := s.in.Runner.Run(ctx, execx.Cmd{Name: "brew", Args: []string{"--prefix"}})
	if err != nil {
		return false, "brew --prefix failed"
	}
	if prefix := strings.TrimSpace(res.Stdout); !util.IsWritableDir(prefix) {
		return false, "brew prefix " + prefix + " is not writable"
	}
	return true, ""
}

func (s brewStrategy) Install(ctx context.Context, spec ToolSpec) error {
	_, err := s.in.Runner.Run(ctx, execx.Cmd{Name: "brew", Args: spec.BrewArgs, Stream: true})
	return err
}

type wingetStrategy struct{ in *Installer }

func (s wingetStrategy) Name() string { return "winget" }

func (s wingetStrategy) Applicable(_ context.Context, spec ToolSpec) (bool, string) {
	if spec.WingetID == "" {
		return false, "no winget package"
	}
	if s.in.Platform.Kind != platform.Windows {
		return false, "winget is windows only"
	}
	if _, err := s.in.LookPath("winget"); err != nil {
		return false, "winget not found"
	}
	return true, ""
}

func (s wingetStrategy) Install(ctx context.Context, spec ToolSpec) error {
	_, err := s.in.Runner.Run(ctx, execx.Cmd{
		Name: "winget",
		Args: []string{
			"install", "--id", spec.WingetID, "--exact", "--silent",
			"--accept-package-agreements", "--accept-source-agreements",
		},
		Stream: true,
	})
	return err
}

type npmStrategy struct{ in *Installer }

func (s npmStrategy) Name() string { return "npm" }

func (s npmStrategy) Applicable(ctx context.Context, spec ToolSpec) (bool, string) {
	if spec.NPMPackage == "" {
		return false, "no npm package"
	}
	if _, err := s.in.LookPath(s.in.Platform.ExeName("npm")); err != nil {
		return false, "npm not found"
	}
	res, err := s.in.Runner.Run(ctx, execx.Cmd{Name: "npm", Args: []string{"config", "get", "prefix"}})
	if err != nil {
		return false, "npm config get prefix failed"
	}
	prefix := strings.TrimSpace(res.Stdout)
	if prefix == "" || !util.IsWritableDir(prefix) {
		return false, "npm prefix " + prefix + " is not writable"
	}
	return true, ""
}

func (s npmStrategy) Install(ctx context.Context, spec ToolSpec) error {
	_, err := s.in.Runner.Run(ctx, execx.Cmd{
		Name:   "npm",
		Args:   []string{"install", "-g", spec.NPMPackage},
		Stream: true,
	})
	return err
}

// =============================================================================
// DIRECT DOWNLOAD
// =============================================================================

type downloadStrategy struct{ in *Installer }

func (s downloadStrategy) Name() string { return "download" }

func (s downloadStrategy) Applicable(_ context.Context, spec ToolSpec) (bool, string) {
	if spec.Archive == nil {
		return false, "no release archive"
	}
	if _, ok := spec.Archive(s.in.Platform, s.in.InstallDir); !ok {
		return false, fmt.Sprintf("no release archive for %s/%s", s.in.Platform.Kind, s.in.Platform.Arch)
	}
	if !util.IsWritableDir(s.in.InstallDir) {
		return false, s.in.InstallDir + " is not writable"
	}
	return true, ""
}

func (s downloadStrategy) Install(ctx context.Context, spec ToolSpec) error {
	archive, _ := spec.Archive(s.in.Platform, s.in.InstallDir)

	tmp, err := os.MkdirTemp("", "rigrun-setup-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	s.in.notify("Downloading %s", archive.URL)
	file, err := download(ctx, s.in.HTTPClient, archive.URL, tmp, fileNameFromURL(archive.URL), s.in.progress(spec.Name))
	if err != nil {
		return err
	}

	n, err := extract(file, archive)
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", filepath.Base(file), err)
	}
	if n == 0 {
		return fmt.Errorf("archive %s contained no %s binary", filepath.Base(file), spec.Name)
	}
	return nil
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

type bootstrapStrategy struct{ in *Installer }

func (s bootstrapStrategy) Name() string { return "bootstrap" }

func (s bootstrapStrategy) Applicable(_ context.Context, spec ToolSpec) (bool, string) {
	if spec.Bootstrap == nil {
		return false, "no bootstrap installer"
	}
	b, ok := spec.Bootstrap(s.in.Platform)
	if !ok {
		return false, "no bootstrap installer for " + s.in.Platform.Kind.String()
	}
	if len(b.Interpreter) > 0 {
		if _, err := s.in.LookPath(s.in.Platform.ExeName(b.Interpreter[0])); err != nil {
			return false, b.Interpreter[0] + " not found"
		}
	}
	return true, ""
}

func (s bootstrapStrategy) Install(ctx context.Context, spec ToolSpec) error {
	b, _ := spec.Bootstrap(s.in.Platform)

	if b.Privileged {
		question := fmt.Sprintf("Install %s by running %s? It may ask for administrator rights.", spec.Name, b.URL)
		if s.in.Consent == nil || !s.in.Consent(ctx, question) {
			return errConsentDenied
		}
	}

	tmp, err := os.MkdirTemp("", "rigrun-setup-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	s.in.notify("Fetching %s", b.URL)
	file, err := download(ctx, s.in.HTTPClient, b.URL, tmp, fileNameFromURL(b.URL), nil)
	if err != nil {
		return err
	}

	cmd := execx.Cmd{Name: file, Args: b.Args, Stream: true}
	if len(b.Interpreter) > 0 {
		args := append(append(append([]string{}, b.Interpreter[1:]...), file), b.Args...)
		cmd = execx.Cmd{Name: b.Interpreter[0], Args: args, Stream: true}
	}
	if _, err := s.in.Runner.Run(ctx, cmd); err != nil {
		if execx.IsNotFound(err) {
			return withKind(Unsupported, err)
		}
		return err
	}
	return nil
}

var errNoStrategy = errors.New("no installation method is available on this host")
