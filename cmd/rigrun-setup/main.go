// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/jeranaias/rigrun-setup/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.4.0"
	GitCommit = "unknown"
)

func main() {
	app, err := cli.NewApp(versionString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitFatal)
	}
	os.Exit(app.Execute(os.Args[1:]))
}

func versionString() string {
	if GitCommit == "unknown" || GitCommit == "" {
		return Version
	}
	return Version + " (" + GitCommit + ")"
}
