// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-setup/internal/execx"
	"github.com/jeranaias/rigrun-setup/internal/logging"
	"github.com/jeranaias/rigrun-setup/internal/platform"
)

// gpuDetectTimeout is the default timeout for GPU detection operations.
// CANCELLATION: Context enables timeout and cancellation
const gpuDetectTimeout = 10 * time.Second

var amdNumericRegex = regexp.MustCompile(`(\d+)\s*$`)

// =============================================================================
// GPU TYPE DEFINITIONS
// =============================================================================

// GpuType represents the type of GPU detected on the system.
type GpuType int

const (
	// GpuTypeNone indicates no GPU with measurable memory was found.
	GpuTypeNone GpuType = iota
	// GpuTypeNvidia indicates an NVIDIA GPU (CUDA-capable).
	GpuTypeNvidia
	// GpuTypeAmd indicates an AMD GPU (ROCm-capable).
	GpuTypeAmd
	// GpuTypeAppleSilicon indicates Apple Silicon with unified memory.
	GpuTypeAppleSilicon
)

// String returns the string representation of the GPU type.
func (t GpuType) String() string {
	switch t {
	case GpuTypeNvidia:
		return "NVIDIA"
	case GpuTypeAmd:
		return "AMD"
	case GpuTypeAppleSilicon:
		return "Apple Silicon"
	default:
		return "none"
	}
}

// =============================================================================
// GPU INFO
// =============================================================================

// GpuInfo contains information about a detected GPU.
type GpuInfo struct {
	// Name of the GPU (e.g., "NVIDIA RTX 4090")
	Name string
	// VramGB is the total VRAM in gigabytes
	VramGB int
	// Driver version if available
	Driver string
	Type   GpuType
}

// String returns a formatted string representation of the GPU info.
func (g *GpuInfo) String() string {
	s := fmt.Sprintf("%s (%dGB VRAM)", g.Name, g.VramGB)
	if g.Driver != "" {
		s += fmt.Sprintf(" [Driver: %s]", g.Driver)
	}
	return s
}

// ProbeVRAM returns the total GPU memory in whole gigabytes, or 0 when it
// cannot be determined. It never fails.
func (d *Detector) ProbeVRAM(ctx context.Context) int {
	if info := d.DetectGPU(ctx); info != nil {
		return info.VramGB
	}
	return 0
}

// DetectGPU checks for GPUs in the following order:
//  1. NVIDIA GPUs (via nvidia-smi)
//  2. AMD GPUs (via rocm-smi or Win32_VideoController)
//  3. Apple Silicon (via sysctl on macOS)
//
// It returns nil when nothing reports a memory size.
// CANCELLATION: Context enables timeout and cancellation
func (d *Detector) DetectGPU(ctx context.Context) *GpuInfo {
	if d.Runner == nil {
		return nil
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gpuDetectTimeout)
		defer cancel()
	}

	detectors := []func(context.Context) *GpuInfo{
		d.detectNvidia,
		d.detectAmd,
		d.detectAppleSilicon,
	}
	for _, detectFn := range detectors {
		if info := detectFn(ctx); info != nil && info.VramGB > 0 {
			logging.Log.WithField("gpu", info.String()).Debug("GPU detected")
			return info
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	logging.Log.Debug("no GPU memory detected")
	return nil
}

func (d *Detector) output(ctx context.Context, name string, args ...string) (string, bool) {
	res, err := d.Runner.Run(ctx, execx.Cmd{Name: name, Args: args})
	if err != nil {
		return "", false
	}
	out := strings.TrimSpace(res.Stdout)
	return out, out != ""
}

// =============================================================================
// NVIDIA DETECTION
// =============================================================================

func (d *Detector) detectNvidia(ctx context.Context) *GpuInfo {
	for _, path := range d.nvidiaSmiPaths() {
		out, ok := d.output(ctx, path,
			"--query-gpu=name,memory.total,driver_version",
			"--format=csv,noheader,nounits")
		if ok {
			return ParseNvidiaSmi(out)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// ParseNvidiaSmi parses the first line of
// `nvidia-smi --query-gpu=name,memory.total,driver_version --format=csv,noheader,nounits`.
func ParseNvidiaSmi(output string) *GpuInfo {
	line := strings.TrimSpace(strings.Split(strings.TrimSpace(output), "\n")[0])

	// CSV with ", " delimiters; split on "," and trim to tolerate both.
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return nil
	}

	// Memory is in MiB, convert to GB
	vramMB, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil
	}
	name := strings.TrimSpace(parts[0])
	if !strings.HasPrefix(name, "NVIDIA") {
		name = "NVIDIA " + name
	}
	info := &GpuInfo{
		Name:   name,
		VramGB: int(vramMB/1024.0 + 0.5),
		Type:   GpuTypeNvidia,
	}
	if len(parts) > 2 {
		info.Driver = strings.TrimSpace(parts[2])
	}
	return info
}

func (d *Detector) nvidiaSmiPaths() []string {
	if d.Platform.Kind == platform.Windows {
		return []string{
			"nvidia-smi",
			`C:\Windows\System32\nvidia-smi.exe`,
			`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`,
		}
	}
	return []string{"nvidia-smi"}
}

// =============================================================================
// AMD DETECTION
// =============================================================================

func (d *Detector) detectAmd(ctx context.Context) *GpuInfo {
	switch d.Platform.Kind {
	case platform.Windows:
		return d.detectAmdWindows(ctx)
	case platform.Linux:
		out, ok := d.output(ctx, "rocm-smi", "--showproductname", "--showmeminfo", "vram")
		if !ok {
			return nil
		}
		return ParseRocmSmi(out)
	default:
		return nil
	}
}

// ParseRocmSmi parses `rocm-smi --showproductname --showmeminfo vram`.
// The total may be reported in bytes, KiB or MiB depending on the ROCm
// release; it is normalised by magnitude.
func ParseRocmSmi(output string) *GpuInfo {
	name := "AMD GPU"
	var vramGB int

	for _, line := range strings.Split(output, "\n") {
		if _, series, ok := strings.Cut(line, "Card series:"); ok {
			if series = strings.TrimSpace(series); series != "" {
				name = "AMD " + series
			}
		}
		if vramGB == 0 && (strings.Contains(line, "Total Memory") || strings.Contains(line, "VRAM Total")) {
			matches := amdNumericRegex.FindStringSubmatch(strings.TrimSpace(line))
			if len(matches) < 2 {
				continue
			}
			val, err := strconv.ParseUint(matches[1], 10, 64)
			if err != nil {
				continue
			}
			switch {
			case val > 1_000_000_000:
				vramGB = int((val + 1<<29) >> 30)
			case val > 1_000_000:
				vramGB = int((val + 1<<19) >> 20)
			default:
				vramGB = int((val + 512) / 1024)
			}
		}
	}
	if vramGB == 0 {
		return nil
	}
	return &GpuInfo{Name: name, VramGB: vramGB, Type: GpuTypeAmd}
}

const amdWindowsQuery = `Get-CimInstance Win32_VideoController | ` +
	`Where-Object { $_.Name -match 'AMD|Radeon|NVIDIA' } | ` +
	`Select-Object -First 1 | ForEach-Object { "$($_.Name)|$($_.AdapterRAM)" }`

// AdapterRAM is a 32-bit field and saturates at 4GB; it is only a floor.
func (d *Detector) detectAmdWindows(ctx context.Context) *GpuInfo {
	out, ok := d.output(ctx, "powershell", "-NoProfile", "-Command", amdWindowsQuery)
	if !ok {
		return nil
	}
	name, ramStr, found := strings.Cut(strings.Split(out, "\n")[0], "|")
	if !found {
		return nil
	}
	ram, err := strconv.ParseUint(strings.TrimSpace(ramStr), 10, 64)
	if err != nil || ram == 0 {
		return nil
	}
	return &GpuInfo{
		Name:   strings.TrimSpace(name),
		VramGB: int((ram + 1<<29) >> 30),
		Type:   GpuTypeAmd,
	}
}

// =============================================================================
// APPLE SILICON DETECTION
// =============================================================================

// Apple Silicon shares system memory with the GPU, so the whole of
// hw.memsize is reported.
func (d *Detector) detectAppleSilicon(ctx context.Context) *GpuInfo {
	if d.Platform.Kind != platform.MacOS || d.Platform.Arch != "arm64" {
		return nil
	}
	out, ok := d.output(ctx, "sysctl", "-n", "hw.memsize")
	if !ok {
		return nil
	}
	bytes, err := strconv.ParseUint(out, 10, 64)
	if err != nil {
		return nil
	}
	return &GpuInfo{
		Name:   "Apple Silicon",
		VramGB: int(bytes >> 30),
		Type:   GpuTypeAppleSilicon,
	}
}
