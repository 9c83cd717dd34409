// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect is the capability probe of rigrun-setup.
//
// It answers three read-only questions about the host and never fails:
// absence is a normal answer.
//
// # Key Types
//
//   - ToolPresence: whether an external tool is installed, where, and which version
//   - GpuInfo: the GPU found by DetectGPU, with its VRAM in gigabytes
//   - Detector: bundles the command runner and search path used by the probes
//
// # Supported GPU Types
//
//   - NVIDIA (via nvidia-smi)
//   - AMD (via rocm-smi on Linux, Win32_VideoController on Windows)
//   - Apple Silicon (unified memory via sysctl on macOS)
//
// # Usage
//
//	d := detect.NewDetector(plat, execx.NewExecRunner(), installDir)
//	if p := d.Probe(ctx, "ollama"); !p.Found {
//		// install it
//	}
//	tokens := detect.ContextForVRAM(d.ProbeVRAM(ctx))
package detect
