// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks the outstanding user turn of each chat session.
//
// A turn moves through IDLE, SENDING, STREAMING and ends SETTLED, FAILED or
// CANCELLED. The tracker holds the cancellation handle of each in-flight turn
// so the user can interrupt a stream from outside the goroutine running it.
// It does not stop two turns running in one session; callers that want one
// turn at a time check Busy first.
//
// # Key Types
//
//   - Tracker: turn registry keyed by session id ("" for a session not yet created)
//   - Turn: one user turn, with its state and cancel function
//   - State: turn state machine values
//
// # Usage
//
//	tr := session.NewTracker()
//	turn, ctx := tr.Begin(parent, sessionID)
//	defer tr.Finish(turn)
//	turn.Transition(session.StateStreaming)
//	...
//	tr.Cancel(sessionID) // from another goroutine
package session
