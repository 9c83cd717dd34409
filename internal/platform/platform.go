// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package platform resolves the host once at startup into a Platform value.
//
// Everything that differs between macOS, Linux and Windows (file names,
// shell dialect, rc files, manual instructions) hangs off Platform so the
// rest of rigrun-setup never branches on runtime.GOOS.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Marker tags every rc line rigrun-setup writes.
const Marker = "# rigrun-setup"

// Kind is the host operating system family.
type Kind int

const (
	Unknown Kind = iota
	MacOS
	Linux
	Windows
)

// String returns the short name used in logs and download URLs.
func (k Kind) String() string {
	switch k {
	case MacOS:
		return "darwin"
	case Linux:
		return "linux"
	case Windows:
		return "windows"
	default:
		return "unknown"
	}
}

// Supported reports whether the automated pipeline runs on this kind.
func (k Kind) Supported() bool {
	return k != Unknown
}

// KindFromGOOS maps a GOOS value onto Kind.
func KindFromGOOS(goos string) Kind {
	switch goos {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	case "windows":
		return Windows
	default:
		return Unknown
	}
}

// Dialect is the syntax of the generated environment file.
type Dialect int

const (
	Posix Dialect = iota
	PowerShell
)

// Platform is the resolved host description.
type Platform struct {
	Kind Kind
	Arch string
	Home string
	// Shell is $SHELL at startup, used to pick rc targets.
	Shell string
}

// Detect resolves the current host. HOME (or the user profile on Windows)
// is the base for every default path.
func Detect() (Platform, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Platform{}, fmt.Errorf("could not determine home directory: %w", err)
	}
	return New(runtime.GOOS, runtime.GOARCH, home, os.Getenv("SHELL")), nil
}

// New builds a Platform from explicit values. Tests use it to simulate
// other hosts.
func New(goos, goarch, home, shell string) Platform {
	return Platform{Kind: KindFromGOOS(goos), Arch: goarch, Home: home, Shell: shell}
}

// Dialect returns the env file syntax for this host.
func (p Platform) Dialect() Dialect {
	if p.Kind == Windows {
		return PowerShell
	}
	return Posix
}

// ExeName appends .exe on Windows.
func (p Platform) ExeName(name string) string {
	if p.Kind == Windows && !strings.HasSuffix(name, ".exe") {
		return name + ".exe"
	}
	return name
}

// WrapperName is the file name of the generated wrapper executable.
func (p Platform) WrapperName() string {
	if p.Kind == Windows {
		return "rigrun-ollama.cmd"
	}
	return "rigrun-ollama"
}

// StateDir is where rigrun-setup keeps its env file and defaults file.
func (p Platform) StateDir() string {
	return filepath.Join(p.Home, ".rigrun")
}

// DefaultInstallDir is the user-writable binary directory.
func (p Platform) DefaultInstallDir() string {
	if p.Kind == Windows {
		return filepath.Join(p.Home, "AppData", "Local", "Programs", "rigrun", "bin")
	}
	return filepath.Join(p.Home, ".local", "bin")
}

// EnvFileName is the base name of the generated environment file.
func (p Platform) EnvFileName() string {
	if p.Kind == Windows {
		return "env.ps1"
	}
	return "env"
}

// EnvFilePath is the full path of the generated environment file.
func (p Platform) EnvFilePath() string {
	return filepath.Join(p.StateDir(), p.EnvFileName())
}

// RcCandidates lists every rc file rigrun-setup may have touched. Removal
// walks all of them.
func (p Platform) RcCandidates() []string {
	if p.Kind == Windows {
		return []string{
			filepath.Join(p.Home, "Documents", "PowerShell", "Microsoft.PowerShell_profile.ps1"),
			filepath.Join(p.Home, "Documents", "WindowsPowerShell", "Microsoft.PowerShell_profile.ps1"),
		}
	}
	return []string{
		filepath.Join(p.Home, ".bashrc"),
		filepath.Join(p.Home, ".zshrc"),
		filepath.Join(p.Home, ".bash_profile"),
		filepath.Join(p.Home, ".profile"),
	}
}

// RcTargets picks the rc files to append the source line to: the file of
// the login shell, plus any other interactive rc that already exists.
// ~/.profile is the fallback when nothing matches.
func (p Platform) RcTargets() []string {
	if p.Kind == Windows {
		return p.RcCandidates()[:1]
	}

	bashrc := filepath.Join(p.Home, ".bashrc")
	zshrc := filepath.Join(p.Home, ".zshrc")

	var targets []string
	add := func(path string) {
		for _, t := range targets {
			if t == path {
				return
			}
		}
		targets = append(targets, path)
	}

	switch {
	case strings.Contains(p.Shell, "zsh"):
		add(zshrc)
	case strings.Contains(p.Shell, "bash"):
		add(bashrc)
	}
	for _, rc := range []string{bashrc, zshrc} {
		if _, err := os.Stat(rc); err == nil {
			add(rc)
		}
	}
	if len(targets) == 0 {
		add(filepath.Join(p.Home, ".profile"))
	}
	return targets
}

// SourceLine is the single marker-tagged line that loads the env file from
// an rc file.
func (p Platform) SourceLine(envPath string) string {
	if p.Dialect() == PowerShell {
		return fmt.Sprintf(`if (Test-Path "%s") { . "%s" } %s`, envPath, envPath, Marker)
	}
	return fmt.Sprintf(`[ -f "%s" ] && . "%s" %s`, envPath, envPath, Marker)
}
