// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package util

import (
	"os"
	"path/filepath"
)

// Windows ACLs are not reflected in mode bits; probe with a real file.
func canWrite(dir string) bool {
	f, err := os.CreateTemp(dir, ".rigrun-write-test-")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(filepath.Clean(name))
	return true
}
