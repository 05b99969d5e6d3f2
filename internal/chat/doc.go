// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the conversation use cases on top of the store,
// the REST backend and the stream driver.
//
// Each operation is a short sequence of store mutations around at most one
// stream or REST round trip. Sending appends the user message and an empty
// assistant placeholder immediately, then fills the placeholder as deltas
// arrive. Edits that regenerate, and regenerations, refetch the transcript
// and replace it wholesale. Session status and title changes are applied
// locally first and rolled back if the backend refuses them.
//
// # Key Types
//
//   - Orchestrator: the use cases for one conversation view
//   - Backend: the REST operations it needs (implemented by *api.Client)
//   - StreamerFactory: creates one single-use stream driver per turn
//   - TurnResult: ids and final state of a sent message
//
// # Usage
//
//	orch := chat.New(st, client, chat.DriverFactory(driverOpts),
//	    chat.WithLogger(logger),
//	    chat.WithStreaming(cfg.Chat.Streaming),
//	)
//	res, err := orch.SendMessage(ctx, "hello", st.Current())
package chat
