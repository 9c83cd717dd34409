// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-setup/internal/execx"
	"github.com/jeranaias/rigrun-setup/internal/logging"
	"github.com/jeranaias/rigrun-setup/internal/platform"
)

// versionProbeTimeout bounds the best-effort `<tool> --version` call.
const versionProbeTimeout = 5 * time.Second

var versionRegex = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?(?:[-+][0-9A-Za-z.]+)?`)

// ToolPresence describes one external tool on this host. It is derived on
// every run and never stored.
type ToolPresence struct {
	Name    string
	Found   bool
	Path    string
	Version string
}

// String renders the presence for status output.
func (t ToolPresence) String() string {
	if !t.Found {
		return t.Name + ": not installed"
	}
	s := t.Name + ": " + t.Path
	if t.Version != "" {
		s += " (" + t.Version + ")"
	}
	return s
}

// Detector runs the host probes.
type Detector struct {
	Platform platform.Platform
	Runner   execx.Runner
	LookPath execx.LookPathFunc
	// KnownDirs maps a tool name to directories searched when the tool is
	// not on PATH, e.g. the install dir of a previous run that has not been
	// added to PATH yet.
	KnownDirs map[string][]string
}

// NewDetector returns a detector using the host search path. extraDirs are
// searched for every tool after PATH.
func NewDetector(p platform.Platform, runner execx.Runner, extraDirs ...string) *Detector {
	known := DefaultKnownDirs(p)
	for tool := range known {
		known[tool] = append(append([]string{}, extraDirs...), known[tool]...)
	}
	return &Detector{
		Platform:  p,
		Runner:    runner,
		LookPath:  execx.LookPath,
		KnownDirs: known,
	}
}

// DefaultKnownDirs lists where the installers of each tool put binaries.
func DefaultKnownDirs(p platform.Platform) map[string][]string {
	if p.Kind == platform.Windows {
		local := filepath.Join(p.Home, "AppData", "Local")
		return map[string][]string{
			"ollama": {
				filepath.Join(local, "Programs", "Ollama"),
				`C:\Program Files\Ollama`,
			},
			"claude": {
				filepath.Join(p.Home, ".local", "bin"),
				filepath.Join(p.Home, "AppData", "Roaming", "npm"),
			},
		}
	}
	return map[string][]string{
		"ollama": {
			filepath.Join(p.Home, ".local", "bin"),
			"/usr/local/bin",
			"/usr/bin",
			"/opt/homebrew/bin",
			"/Applications/Ollama.app/Contents/Resources",
		},
		"claude": {
			filepath.Join(p.Home, ".local", "bin"),
			filepath.Join(p.Home, ".claude", "local"),
			filepath.Join(p.Home, ".npm-global", "bin"),
			"/usr/local/bin",
			"/opt/homebrew/bin",
		},
	}
}

// Probe looks the tool up and, when found, asks it for its version. It
// never fails; a missing tool is reported with Found=false.
func (d *Detector) Probe(ctx context.Context, tool string) ToolPresence {
	presence := ToolPresence{Name: tool}

	path := d.locate(tool)
	if path == "" {
		logging.Log.WithField("tool", tool).Debug("tool not found")
		return presence
	}
	presence.Found = true
	presence.Path = path
	presence.Version = d.version(ctx, path)

	logging.Log.WithField("tool", tool).WithField("path", path).WithField("version", presence.Version).Debug("tool found")
	return presence
}

func (d *Detector) locate(tool string) string {
	exe := d.Platform.ExeName(tool)
	if d.LookPath != nil {
		if path, err := d.LookPath(exe); err == nil {
			return path
		}
	}
	for _, dir := range d.KnownDirs[tool] {
		candidate := filepath.Join(dir, exe)
		if isExecutable(candidate, d.Platform.Kind) {
			return candidate
		}
	}
	return ""
}

func (d *Detector) version(ctx context.Context, path string) string {
	if d.Runner == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	res, err := d.Runner.Run(ctx, execx.Cmd{Name: path, Args: []string{"--version"}})
	if err != nil {
		return ""
	}
	return ParseVersion(res.Stdout + "\n" + res.Stderr)
}

// ParseVersion extracts the first dotted version number from tool output
// such as "ollama version is 0.6.2" or "1.0.43 (Claude Code)".
func ParseVersion(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if v := versionRegex.FindString(line); v != "" {
			return v
		}
	}
	return ""
}

func isExecutable(path string, kind platform.Kind) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if kind == platform.Windows {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
