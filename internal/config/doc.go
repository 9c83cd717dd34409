// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads rigrun-setup defaults and resolves them, together
// with command-line input, into one immutable InstallConfig.
//
// # Configuration Precedence
//
// Values are taken from (highest first):
//   - command-line flags
//   - environment variables (RIGRUN_SETUP_*, OLLAMA_HOST, CI)
//   - ~/.rigrun/setup.toml, or ~/.rigrun/setup.yaml
//   - built-in defaults
//
// A zero model or context size means "derive from the detected VRAM".
//
// # Usage
//
//	cfg, _, err := config.Load("")
//	if err := cfg.ApplyEnvOverrides(); err != nil { ... }
//	cfg.ApplyOverrides(flags)
//	ic, err := cfg.Resolve(req)
package config
