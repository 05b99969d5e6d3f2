// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the g4chat command line.
//
// # Commands Overview
//
//   - chat: interactive conversation with slash commands
//   - send: one message, reply on stdout
//   - sessions, messages: manage the backend's conversations
//   - token, project: client-local state
//   - history: read the local transcript archive offline
//   - export: write a transcript to a Markdown, JSON or HTML file
//   - config, doctor, version
//
// List commands support --json for scripting.
package cli
