// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes session transcripts to shareable files.
//
// # Key Types
//
//   - Transcript: a session with its messages and local project
//   - Exporter: renders a Transcript in one format
//   - Options: export configuration
//
// # Supported Formats
//
//   - Markdown: human-readable, with YAML front matter
//   - JSON: machine-readable, the same field names as --json output
//   - HTML: a standalone page, message bodies rendered from Markdown
//
// # Usage
//
//	exp, err := export.ForFormat("md", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ToFile(transcript, exp, nil)
package export
