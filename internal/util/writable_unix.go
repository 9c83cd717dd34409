// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package util

import "golang.org/x/sys/unix"

func canWrite(dir string) bool {
	return unix.Access(dir, unix.W_OK|unix.X_OK) == nil
}
