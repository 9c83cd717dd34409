// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindFromGOOS(t *testing.T) {
	tests := []struct {
		goos string
		want Kind
	}{
		{"darwin", MacOS},
		{"linux", Linux},
		{"windows", Windows},
		{"plan9", Unknown},
		{"freebsd", Unknown},
	}
	for _, tc := range tests {
		if got := KindFromGOOS(tc.goos); got != tc.want {
			t.Errorf("KindFromGOOS(%q) = %v, want %v", tc.goos, got, tc.want)
		}
	}
	assert.False(t, Unknown.Supported())
	assert.True(t, Linux.Supported())
}

func TestPosixPaths(t *testing.T) {
	p := New("linux", "amd64", "/home/ana", "/bin/bash")

	assert.Equal(t, "rigrun-ollama", p.WrapperName())
	assert.Equal(t, "/home/ana/.local/bin", p.DefaultInstallDir())
	assert.Equal(t, "/home/ana/.rigrun/env", p.EnvFilePath())
	assert.Equal(t, Posix, p.Dialect())
	assert.Equal(t, "ollama", p.ExeName("ollama"))
	assert.Equal(t,
		`[ -f "/home/ana/.rigrun/env" ] && . "/home/ana/.rigrun/env" # rigrun-setup`,
		p.SourceLine(p.EnvFilePath()))
}

func TestWindowsPaths(t *testing.T) {
	p := New("windows", "amd64", `C:\Users\ana`, "")

	assert.Equal(t, "rigrun-ollama.cmd", p.WrapperName())
	assert.Equal(t, "env.ps1", p.EnvFileName())
	assert.Equal(t, PowerShell, p.Dialect())
	assert.Equal(t, "ollama.exe", p.ExeName("ollama"))
	assert.Len(t, p.RcTargets(), 1)
	assert.Contains(t, p.SourceLine("env.ps1"), Marker)
}

func TestRcTargets(t *testing.T) {
	home := t.TempDir()

	p := New("linux", "amd64", home, "/usr/bin/zsh")
	if diff := cmp.Diff([]string{filepath.Join(home, ".zshrc")}, p.RcTargets()); diff != "" {
		t.Errorf("zsh targets mismatch (-want +got):\n%s", diff)
	}

	p = New("linux", "amd64", home, "/bin/sh")
	if diff := cmp.Diff([]string{filepath.Join(home, ".profile")}, p.RcTargets()); diff != "" {
		t.Errorf("fallback targets mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, os.WriteFile(filepath.Join(home, ".bashrc"), nil, 0o644))
	p = New("linux", "amd64", home, "/usr/bin/zsh")
	want := []string{filepath.Join(home, ".zshrc"), filepath.Join(home, ".bashrc")}
	if diff := cmp.Diff(want, p.RcTargets()); diff != "" {
		t.Errorf("existing rc targets mismatch (-want +got):\n%s", diff)
	}
}

func TestRcCandidatesCoverTargets(t *testing.T) {
	home := t.TempDir()
	p := New("darwin", "arm64", home, "/bin/zsh")
	candidates := p.RcCandidates()
	for _, target := range p.RcTargets() {
		assert.Contains(t, candidates, target)
	}
}

func TestManualInstructions(t *testing.T) {
	p := New("plan9", "386", "/usr/glenda", "")
	md := p.ManualInstructions("demo", 8192)
	assert.Contains(t, md, "ollama pull demo")
	assert.Contains(t, md, "OLLAMA_CONTEXT_LENGTH=8192")
	assert.Contains(t, md, "/386")
}
