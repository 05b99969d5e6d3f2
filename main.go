// g4chat - terminal client for a G4 chat backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/jeranaias/g4chat/internal/cli"
)

// Set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.gitCommit=$(git rev-parse --short HEAD)"
var (
	version   = ""
	gitCommit = ""
	buildDate = ""
)

func main() {
	if version != "" {
		cli.Version = version
	}
	if gitCommit != "" {
		cli.GitCommit = gitCommit
	}
	if buildDate != "" {
		cli.BuildDate = buildDate
	}
	os.Exit(cli.Execute())
}
