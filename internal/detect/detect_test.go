// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-setup/internal/execx"
	"github.com/jeranaias/rigrun-setup/internal/execx/execxtest"
	"github.com/jeranaias/rigrun-setup/internal/platform"
)

func newTestDetector(kind, arch string, runner execx.Runner, look *execxtest.LookPath) *Detector {
	return &Detector{
		Platform:  platform.New(kind, arch, "/home/test", "/bin/bash"),
		Runner:    runner,
		LookPath:  look.Func(),
		KnownDirs: map[string][]string{},
	}
}

func TestContextForVRAM(t *testing.T) {
	tests := []struct {
		vram int
		want int
	}{
		{0, 4096},
		{10, 4096},
		{24, 32768},
		{47, 32768},
		{48, 262144},
		{500, 262144},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContextForVRAM(tt.vram), "vram=%d", tt.vram)
	}
}

func TestProbe_FoundOnPath(t *testing.T) {
	runner := execxtest.NewRunner().Output("/usr/bin/ollama", "ollama version is 0.6.2\n")
	d := newTestDetector("linux", "amd64", runner, execxtest.NewLookPath("ollama", "/usr/bin/ollama"))

	got := d.Probe(context.Background(), "ollama")

	assert.Equal(t, ToolPresence{Name: "ollama", Found: true, Path: "/usr/bin/ollama", Version: "0.6.2"}, got)
	assert.True(t, runner.Called("/usr/bin/ollama --version"))
}

func TestProbe_VersionFailureIgnored(t *testing.T) {
	runner := execxtest.NewRunner().Fail("/usr/bin/claude", "boom")
	d := newTestDetector("linux", "amd64", runner, execxtest.NewLookPath("claude", "/usr/bin/claude"))

	got := d.Probe(context.Background(), "claude")

	assert.True(t, got.Found)
	assert.Empty(t, got.Version)
}

func TestProbe_Missing(t *testing.T) {
	runner := execxtest.NewRunner()
	d := newTestDetector("linux", "amd64", runner, execxtest.NewLookPath())

	got := d.Probe(context.Background(), "ollama")

	assert.False(t, got.Found)
	assert.Empty(t, got.Path)
	assert.Empty(t, runner.Calls, "no version probe for a missing tool")
	assert.Equal(t, "ollama: not installed", got.String())
}

func TestProbe_KnownDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit check is posix only")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "ollama")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	d := newTestDetector("linux", "amd64", execxtest.NewRunner(), execxtest.NewLookPath())
	d.KnownDirs["ollama"] = []string{filepath.Join(dir, "missing"), dir}

	got := d.Probe(context.Background(), "ollama")
	assert.True(t, got.Found)
	assert.Equal(t, bin, got.Path)
}

func TestProbe_KnownDirSkipsNonExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit check is posix only")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ollama"), []byte("data"), 0o644))

	d := newTestDetector("linux", "amd64", execxtest.NewRunner(), execxtest.NewLookPath())
	d.KnownDirs["ollama"] = []string{dir}

	assert.False(t, d.Probe(context.Background(), "ollama").Found)
}

func TestNewDetector_ExtraDirsFirst(t *testing.T) {
	p := platform.New("linux", "amd64", "/home/test", "")
	d := NewDetector(p, execxtest.NewRunner(), "/opt/custom/bin")

	for tool, dirs := range d.KnownDirs {
		require.NotEmpty(t, dirs, tool)
		assert.Equal(t, "/opt/custom/bin", dirs[0], tool)
	}
	assert.Contains(t, d.KnownDirs["ollama"], "/Applications/Ollama.app/Contents/Resources")
}

func TestParseVersion(t *testing.T) {
	tests := map[string]string{
		"ollama version is 0.6.2":            "0.6.2",
		"1.0.43 (Claude Code)":               "1.0.43",
		"Warning: could not connect\n0.5.7\n": "0.5.7",
		"no digits here":                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseVersion(in), in)
	}
}

func TestProbeVRAM_Nvidia(t *testing.T) {
	runner := execxtest.NewRunner().Output("nvidia-smi", "NVIDIA GeForce RTX 4090, 24564, 550.54\n")
	d := newTestDetector("linux", "amd64", runner, execxtest.NewLookPath())

	assert.Equal(t, 24, d.ProbeVRAM(context.Background()))
	info := d.DetectGPU(context.Background())
	require.NotNil(t, info)
	assert.Equal(t, GpuTypeNvidia, info.Type)
	assert.Equal(t, "550.54", info.Driver)
}

func TestProbeVRAM_AmdLinux(t *testing.T) {
	rocm := "GPU[0]\t\t: Card series:\t\tRadeon RX 7900 XTX\n" +
		"GPU[0]\t\t: VRAM Total Memory (B): 25753026560\n"
	runner := execxtest.NewRunner().
		Fail("nvidia-smi", "not found").
		Output("rocm-smi", rocm)
	d := newTestDetector("linux", "amd64", runner, execxtest.NewLookPath())

	info := d.DetectGPU(context.Background())
	require.NotNil(t, info)
	assert.Equal(t, GpuTypeAmd, info.Type)
	assert.Equal(t, 24, info.VramGB)
	assert.Equal(t, "AMD Radeon RX 7900 XTX", info.Name)
}

func TestProbeVRAM_AppleSilicon(t *testing.T) {
	runner := execxtest.NewRunner().
		Fail("nvidia-smi", "not found").
		Output("sysctl", "68719476736\n")
	d := newTestDetector("darwin", "arm64", runner, execxtest.NewLookPath())

	assert.Equal(t, 64, d.ProbeVRAM(context.Background()))
}

func TestProbeVRAM_IntelMacIsUndetectable(t *testing.T) {
	runner := execxtest.NewRunner().
		Fail("nvidia-smi", "not found").
		Output("sysctl", "68719476736\n")
	d := newTestDetector("darwin", "amd64", runner, execxtest.NewLookPath())

	assert.Equal(t, 0, d.ProbeVRAM(context.Background()))
}

func TestProbeVRAM_WindowsAdapterRAM(t *testing.T) {
	runner := execxtest.NewRunner().
		Fail("nvidia-smi", "not found").
		Fail(`C:\Windows\System32\nvidia-smi.exe`, "not found").
		Fail(`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`, "not found").
		Output("powershell", "AMD Radeon RX 6600|4293918720\n")
	d := newTestDetector("windows", "amd64", runner, execxtest.NewLookPath())

	assert.Equal(t, 4, d.ProbeVRAM(context.Background()))
}

func TestProbeVRAM_NothingDetected(t *testing.T) {
	runner := execxtest.NewRunner().
		Fail("nvidia-smi", "not found").
		Fail("rocm-smi", "not found")
	d := newTestDetector("linux", "amd64", runner, execxtest.NewLookPath())

	assert.Equal(t, 0, d.ProbeVRAM(context.Background()))
}

func TestParseNvidiaSmi_Malformed(t *testing.T) {
	assert.Nil(t, ParseNvidiaSmi(""))
	assert.Nil(t, ParseNvidiaSmi("GeForce, lots"))
}

func TestRecommendModel(t *testing.T) {
	tests := []struct {
		vram int
		want string
	}{
		{0, "qwen2.5-coder:1.5b"},
		{4, "qwen2.5-coder:3b"},
		{8, "qwen2.5-coder:7b"},
		{16, "qwen2.5-coder:14b"},
		{24, "qwen2.5-coder:32b"},
		{80, "qwen2.5-coder:32b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RecommendModel(tt.vram).ModelName, "vram=%d", tt.vram)
	}
}

func TestEstimateModelSizeGB(t *testing.T) {
	assert.Equal(t, 4, EstimateModelSizeGB("qwen2.5-coder:7b"))
	assert.Equal(t, 18, EstimateModelSizeGB("qwen2.5-coder:32b"))
	assert.Equal(t, 1, EstimateModelSizeGB("qwen2.5-coder:1.5b"))
	assert.Equal(t, 5, EstimateModelSizeGB("demo"))
}

func TestFreeDiskGB_MissingPathUsesParent(t *testing.T) {
	dir := t.TempDir()
	free, err := FreeDiskGB(filepath.Join(dir, "not", "yet", "created"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, free, 0)
}
