// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama drives the Ollama model runtime from outside.
//
// Models are managed through the `ollama` CLI (pull, rm, list, create)
// because that is the surface that works before the server has been
// configured. The server itself is only touched through its HTTP health
// endpoint and by launching `ollama serve` in the background.
//
// # Key Types
//
//   - Manager: pulls, removes, lists and imports models via the CLI
//   - Server: health check and best-effort startup of `ollama serve`
//   - ModelError: every CLI failure, classified by ModelErrorKind
//   - ClientError: health-check and startup failures
//
// # Usage
//
//	m := ollama.NewManager(execx.NewExecRunner())
//	if ok, _ := m.Has(ctx, "qwen2.5-coder:7b"); !ok {
//		err := m.Pull(ctx, "qwen2.5-coder:7b")
//	}
//	for name, err := range m.List(ctx) {
//		...
//	}
package ollama
