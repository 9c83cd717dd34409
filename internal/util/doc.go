// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds the filesystem helpers shared by the installer and the
// environment reconciler.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe overwrite with fsync and rename
//   - CopyFile: stream one file to another path with a given mode
//   - RemoveIfExists: delete a file, reporting whether it was there
//   - IsWritableDir: whether this user may create files in a directory
//
// # Usage
//
//	// Overwrite the wrapper so a crash never leaves half a script
//	err := util.AtomicWriteFile(path, data, 0o755)
package util
