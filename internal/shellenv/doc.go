// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package shellenv is the environment reconciler: it owns every file
// rigrun-setup leaves on the host outside of installed binaries.
//
// Three artifacts are managed:
//
//   - the wrapper executable, overwritten with content that depends only on
//     the model name and context size;
//   - the environment file, overwritten with one export line per variable;
//   - one marker-tagged line per rc file, appended only when the exact
//     line is not already there.
//
// Env file values are always double-quoted, `export NAME="VALUE"` for POSIX
// shells and `$env:NAME = "VALUE"` for PowerShell, so values with spaces
// survive sourcing. Double quotes and the dialect's escape characters are
// escaped; `$` is not, so `$PATH` still expands. ParseEnvFile reads the same format back.
//
// Rc idempotence is exact-line containment. A line that differs only in
// whitespace or quoting is not recognised and a second line is appended.
//
// RemoveAll is the inverse of the three Ensure calls and may be run any
// number of times. It finds a wrapper written to a non-default install dir
// through the PATH line of the env file, and edits symlinked rc files at
// their target.
package shellenv
