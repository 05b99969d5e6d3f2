// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// These are the client-side domain types shared by the stream driver, the
// conversation store and the orchestrator. Wire shapes live in package api;
// this package only knows what a transcript looks like in memory.
//
// # Key Types
//
//   - Session: a persisted conversation container with a lifecycle status
//   - Message: one user or assistant turn within a session
//   - Role: message author (USER, ASSISTANT)
//   - Status: session lifecycle state (ACTIVE, PAUSED, ARCHIVED)
//
// # Usage
//
//	msg := model.Message{
//	    ID:      "tmp-user-1",
//	    Role:    model.RoleUser,
//	    Content: "Hello",
//	}
//	if msg.Role.IsAssistant() { ... }
package model
