// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"os"
	"path/filepath"
)

// FreeDiskGB returns the space available to this user on the filesystem
// holding path, in whole gigabytes. A path that does not exist yet is
// resolved to its nearest existing parent.
func FreeDiskGB(path string) (int, error) {
	dir := existingAncestor(path)
	free, err := freeDiskBytes(dir)
	if err != nil {
		return 0, err
	}
	return int(free >> 30), nil
}

func existingAncestor(path string) string {
	dir := filepath.Clean(path)
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
