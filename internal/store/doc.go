// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the client's authoritative view of sessions and of the
// open conversation's messages.
//
// Every mutation happens under one mutex. Updater functions run while the lock
// is held, so a content append computed from the current message can never be
// lost to a concurrent write. Readers receive copies.
//
// # Key Types
//
//   - Store: session list, current session, message list
//   - MessagePatch, SessionPatch: shallow merges, nil fields untouched
//   - Change: notification delivered to subscribers after each mutation
//
// # Usage
//
//	st := store.New()
//	_ = st.AppendMessage(model.Message{ID: "tmp-1", Role: model.RoleUser, Content: "hi"})
//	st.UpdateMessage("tmp-2", func(m model.Message) store.MessagePatch {
//	    return store.MessagePatch{Content: store.Ptr(m.Content + delta)}
//	})
//	unsubscribe := st.Subscribe(func(c store.Change) { ... })
//	defer unsubscribe()
package store
