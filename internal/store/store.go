// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the client's authoritative view of sessions and messages.
package store

import (
	"errors"
	"sync"

	"github.com/jeranaias/g4chat/internal/model"
)

// Error variables for store operations.
var (
	// ErrDuplicateID is returned when appending a message whose id is taken.
	ErrDuplicateID = errors.New("message id already present")

	// ErrEmptyID is returned when appending a message without an id.
	ErrEmptyID = errors.New("message id is empty")
)

// =============================================================================
// CHANGE NOTIFICATION
// =============================================================================

// ChangeKind describes what a mutation touched.
type ChangeKind int

const (
	MessageAppended ChangeKind = iota
	MessageUpdated
	MessageRemoved
	MessagesReplaced
	SessionUpdated
	SessionRemoved
	SessionsReplaced
	CurrentChanged
)

// String returns the name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case MessageAppended:
		return "message_appended"
	case MessageUpdated:
		return "message_updated"
	case MessageRemoved:
		return "message_removed"
	case MessagesReplaced:
		return "messages_replaced"
	case SessionUpdated:
		return "session_updated"
	case SessionRemoved:
		return "session_removed"
	case SessionsReplaced:
		return "sessions_replaced"
	case CurrentChanged:
		return "current_changed"
	default:
		return "unknown"
	}
}

// Change is delivered to listeners after a mutation. ID names the message or
// session touched; it is empty for whole-list changes.
type Change struct {
	Kind ChangeKind
	ID   string
}

// Listener receives changes. It runs on the mutating goroutine, after the lock
// is released, so it may read the store but should return quickly.
type Listener func(Change)

// =============================================================================
// STORE
// =============================================================================

// Store owns the session and message collections.
type Store struct {
	mu       sync.Mutex
	sessions []model.Session
	current  string
	messages []model.Message

	lmu       sync.RWMutex
	listeners map[int]Listener
	nextLID   int
}

// New creates an empty store.
func New() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

// Subscribe registers fn for change notifications and returns a function that
// removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextLID
	s.nextLID++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(c Change) {
	s.lmu.RLock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

// =============================================================================
// CURRENT SESSION
// =============================================================================

// SetCurrent marks id as the open session. An empty id means no session.
func (s *Store) SetCurrent(id string) {
	s.mu.Lock()
	changed := s.current != id
	s.current = id
	s.mu.Unlock()

	if changed {
		s.notify(Change{Kind: CurrentChanged, ID: id})
	}
}

// Current returns the open session id, or "" if none.
func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
