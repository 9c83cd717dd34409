// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Command rigrun-setup installs a local coding model and points the Claude Code
CLI at it.

# Overview

One run takes a fresh machine to a working setup:

  - Ollama is installed with the first package manager that works
    (brew, winget, npm), a release download, or the upstream script
  - the Claude Code CLI is installed the same way
  - the Ollama server is started if it is not answering
  - a model sized for the GPU is pulled, or a local GGUF file is imported
  - a wrapper script, an environment file and one line per shell profile
    are written

Every step is idempotent, so running it twice changes nothing.

# Building

	go build -o rigrun-setup ./cmd/rigrun-setup

Or with version information:

	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)" ./cmd/rigrun-setup

# Command Line Options

	--yes, -y            run without prompts (also --ci, --non-interactive)
	--custom             choose model and context interactively
	--model, -m NAME     model to pull
	--context, -c N      context window in tokens
	--gguf PATH          import a local GGUF file instead of pulling
	--name NAME          model name for --gguf
	--no-assistant       skip the Claude Code CLI
	--install-dir DIR    where binaries and the wrapper go
	--uninstall          remove the generated files
	--remove-model       with --uninstall, also remove the model
	--config PATH        defaults file (TOML or YAML)
	--log-level LEVEL    diagnostic logging on stderr

Subcommands: status, config init, config show, version.

# Exit Codes

	0  success, possibly with warnings
	1  a required step failed
	2  invalid flags or flag combinations
*/
package main
