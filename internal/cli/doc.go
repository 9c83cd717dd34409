// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigrun-setup command line.
//
// The root command runs setup or uninstall; "status", "config" and
// "version" are read-mostly helpers. Flags, the defaults file and the
// environment are merged into a config.InstallConfig here, and the
// result of a run is rendered as one line per step.
//
// Exit codes:
//
//	0  success, possibly with warnings
//	1  a fatal step failed
//	2  usage error (bad flags or flag combinations)
package cli
