// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package installer

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/jeranaias/rigrun-setup/internal/platform"
)

// ToolSpec describes how one external tool can be installed.
type ToolSpec struct {
	// Name is the executable name probed after install.
	Name string
	// Purpose is shown to the user, e.g. "model runtime".
	Purpose string

	// BrewArgs are the arguments after `brew`, nil when brew cannot install it.
	BrewArgs []string
	// WingetID is the winget package id.
	WingetID string
	// NPMPackage is installed with `npm install -g`.
	NPMPackage string

	// Archive returns the release archive for a platform; ok is false when
	// there is no direct download.
	Archive func(p platform.Platform, installDir string) (Archive, bool)

	// Bootstrap returns the upstream installer for a platform.
	Bootstrap func(p platform.Platform) (Bootstrap, bool)
}

// Archive is a downloadable release and where its entries go.
type Archive struct {
	URL string
	// Place maps an entry name inside the archive to a destination path,
	// or "" to skip it. Destinations are confined to Roots.
	Place func(entry string) string
	Roots []string
}

// Bootstrap is an upstream install script or setup executable.
type Bootstrap struct {
	URL string
	// Interpreter runs the downloaded file; empty runs it directly.
	Interpreter []string
	Args        []string
	// Privileged installers may escalate (sudo, UAC) and need consent.
	Privileged bool
}

// Ollama is the model runtime.
var Ollama = ToolSpec{
	Name:      "ollama",
	Purpose:   "model runtime",
	BrewArgs:  []string{"install", "ollama"},
	WingetID:  "Ollama.Ollama",
	Archive:   ollamaArchive,
	Bootstrap: ollamaBootstrap,
}

// Claude is the assistant CLI.
var Claude = ToolSpec{
	Name:       "claude",
	Purpose:    "assistant CLI",
	BrewArgs:   []string{"install", "--cask", "claude-code"},
	NPMPackage: "@anthropic-ai/claude-code",
	Bootstrap:  claudeBootstrap,
}

const ollamaDownloadBase = "https://ollama.com/download/"

func ollamaArchive(p platform.Platform, installDir string) (Archive, bool) {
	switch p.Kind {
	case platform.Linux:
		if p.Arch != "amd64" && p.Arch != "arm64" {
			return Archive{}, false
		}
		// The tarball is a prefix: bin/ollama plus lib/ollama/*. The
		// binary finds its libraries at ../lib/ollama.
		prefix := filepath.Dir(installDir)
		return Archive{
			URL:   fmt.Sprintf("%sollama-linux-%s.tgz", ollamaDownloadBase, p.Arch),
			Roots: []string{installDir, prefix},
			Place: func(entry string) string {
				switch {
				case strings.HasPrefix(entry, "bin/"):
					return filepath.Join(installDir, filepath.FromSlash(strings.TrimPrefix(entry, "bin/")))
				case strings.HasPrefix(entry, "lib/"):
					return filepath.Join(prefix, filepath.FromSlash(entry))
				default:
					return ""
				}
			},
		}, true
	case platform.MacOS:
		return Archive{
			URL:   ollamaDownloadBase + "Ollama-darwin.zip",
			Roots: []string{installDir},
			Place: func(entry string) string {
				if strings.HasSuffix(entry, "Contents/Resources/ollama") {
					return filepath.Join(installDir, "ollama")
				}
				return ""
			},
		}, true
	case platform.Windows:
		if p.Arch != "amd64" && p.Arch != "arm64" {
			return Archive{}, false
		}
		return Archive{
			URL:   fmt.Sprintf("%sollama-windows-%s.zip", ollamaDownloadBase, p.Arch),
			Roots: []string{installDir},
			Place: func(entry string) string {
				return filepath.Join(installDir, filepath.FromSlash(entry))
			},
		}, true
	default:
		return Archive{}, false
	}
}

func ollamaBootstrap(p platform.Platform) (Bootstrap, bool) {
	switch p.Kind {
	case platform.Linux, platform.MacOS:
		return Bootstrap{URL: "https://ollama.com/install.sh", Interpreter: []string{"sh"}, Privileged: true}, true
	case platform.Windows:
		return Bootstrap{
			URL:        ollamaDownloadBase + "OllamaSetup.exe",
			Args:       []string{"/VERYSILENT", "/NORESTART", "/SUPPRESSMSGBOXES"},
			Privileged: true,
		}, true
	default:
		return Bootstrap{}, false
	}
}

func claudeBootstrap(p platform.Platform) (Bootstrap, bool) {
	switch p.Kind {
	case platform.Linux, platform.MacOS:
		return Bootstrap{URL: "https://claude.ai/install.sh", Interpreter: []string{"bash"}}, true
	case platform.Windows:
		return Bootstrap{
			URL:         "https://claude.ai/install.ps1",
			Interpreter: []string{"powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File"},
		}, true
	default:
		return Bootstrap{}, false
	}
}

// fileNameFromURL keeps the extension so Windows can run .exe and .ps1.
func fileNameFromURL(u string) string {
	base := path.Base(u)
	if base == "." || base == "/" {
		return "download"
	}
	return base
}
