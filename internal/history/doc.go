// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history keeps a record of every setup and uninstall run in a
// SQLite database under ~/.rigrun, so an operator can see what was changed
// on the machine and which warnings are still open.
//
// The record is append-only apart from Prune. Uninstall does not delete it.
package history
