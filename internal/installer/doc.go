// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package installer makes an external tool present on the host.
//
// EnsureInstalled probes first and does nothing when the tool is already
// there. Otherwise it walks a fixed list of strategies:
//
//  1. package managers (brew, winget, npm), when present and writable
//  2. direct download of a release archive into the user install dir
//  3. the upstream bootstrap script, fetched over HTTPS and executed
//
// Each applicable strategy is tried at most once, in that order, and the
// first one after which the tool probes as present wins. Exit codes of
// installers are never trusted on their own.
//
// Strategies that run third-party code with elevated rights ask for consent
// through the Consent hook and are skipped when it is refused.
package installer
