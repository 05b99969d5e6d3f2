// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks the outstanding user turn of each chat session.
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTurnInFlight is returned by callers that refuse a second turn while one
// is outstanding in the same session.
var ErrTurnInFlight = errors.New("a reply is still in progress for this session")

// NewSessionKey is the tracker key of a turn that will create its session.
const NewSessionKey = ""

// =============================================================================
// TURN STATE
// =============================================================================

// State is the position of a turn in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateSettled
	StateFailed
	StateCancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSending:
		return "SENDING"
	case StateStreaming:
		return "STREAMING"
	case StateSettled:
		return "SETTLED"
	case StateFailed:
		return "FAILED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Active reports whether the turn is still outstanding.
func (s State) Active() bool {
	return s == StateSending || s == StateStreaming
}

// Terminal reports whether the turn has ended.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateFailed || s == StateCancelled
}

// canTransition reports whether from -> to is a legal step.
func canTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateSending
	case StateSending:
		// Non-streaming turns settle straight from SENDING.
		return to == StateStreaming || to.Terminal()
	case StateStreaming:
		return to.Terminal()
	default:
		return false
	}
}

// =============================================================================
// TURN
// =============================================================================

// Turn is one user turn. Its methods are safe for concurrent use.
type Turn struct {
	id        string
	key       string
	startTime time.Time

	mu       sync.Mutex
	state    State
	changed  time.Time
	cancel   context.CancelFunc
	onChange func(Snapshot)
}

// Snapshot is a point-in-time copy of a turn.
type Snapshot struct {
	ID        string
	Key       string
	State     State
	StartTime time.Time
	Changed   time.Time
}

// ID returns the turn id.
func (t *Turn) ID() string { return t.id }

// Key returns the session key the turn was started under.
func (t *Turn) Key() string { return t.key }

// State returns the current state.
func (t *Turn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Transition moves the turn to next. Illegal transitions are ignored and
// reported as false, so a late settle cannot overwrite a cancel.
func (t *Turn) Transition(next State) bool {
	t.mu.Lock()
	if !canTransition(t.state, next) {
		t.mu.Unlock()
		return false
	}
	t.state = next
	t.changed = time.Now()
	snap := t.snapshotLocked()
	fn := t.onChange
	t.mu.Unlock()

	// Callback outside lock
	if fn != nil {
		fn(snap)
	}
	return true
}

// Snapshot returns a copy of the turn's state.
func (t *Turn) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Turn) snapshotLocked() Snapshot {
	return Snapshot{
		ID:        t.id,
		Key:       t.key,
		State:     t.state,
		StartTime: t.startTime,
		Changed:   t.changed,
	}
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker records the latest turn per session key.
type Tracker struct {
	mu       sync.Mutex
	turns    map[string]*Turn
	onChange func(Snapshot)
	seq      atomic.Uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{turns: make(map[string]*Turn)}
}

// SetTransitionCallback sets the function called after every state change
// of turns begun after the call.
func (tr *Tracker) SetTransitionCallback(fn func(Snapshot)) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.onChange = fn
}

// Begin registers a new turn under key, in SENDING, and returns it with a
// context that Cancel will cancel. Callers must call Finish when done.
func (tr *Tracker) Begin(parent context.Context, key string) (*Turn, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	now := time.Now()

	tr.mu.Lock()
	turn := &Turn{
		id:        generateTurnID(now, tr.seq.Add(1)),
		key:       key,
		startTime: now,
		changed:   now,
		state:     StateIdle,
		cancel:    cancel,
		onChange:  tr.onChange,
	}
	tr.turns[key] = turn
	tr.mu.Unlock()

	turn.Transition(StateSending)
	return turn, ctx
}

// Finish releases the turn's context. A turn still active is marked
// CANCELLED. The turn stays visible to State until the next Begin or Forget.
func (tr *Tracker) Finish(turn *Turn) {
	if turn == nil {
		return
	}
	if turn.State().Active() {
		turn.Transition(StateCancelled)
	}
	turn.cancel()
}

// Cancel cancels the latest turn under key if it is still active, and reports
// whether it did.
func (tr *Tracker) Cancel(key string) bool {
	tr.mu.Lock()
	turn := tr.turns[key]
	tr.mu.Unlock()

	if turn == nil || !turn.State().Active() {
		return false
	}
	turn.cancel()
	return true
}

// CancelAll cancels every active turn.
func (tr *Tracker) CancelAll() int {
	tr.mu.Lock()
	turns := make([]*Turn, 0, len(tr.turns))
	for _, t := range tr.turns {
		turns = append(turns, t)
	}
	tr.mu.Unlock()

	n := 0
	for _, t := range turns {
		if t.State().Active() {
			t.cancel()
			n++
		}
	}
	return n
}

// State returns the state of the latest turn under key, or IDLE.
func (tr *Tracker) State(key string) State {
	tr.mu.Lock()
	turn := tr.turns[key]
	tr.mu.Unlock()

	if turn == nil {
		return StateIdle
	}
	return turn.State()
}

// Busy reports whether key has an active turn.
func (tr *Tracker) Busy(key string) bool {
	return tr.State(key).Active()
}

// Forget drops the record for key. An active turn is left running.
func (tr *Tracker) Forget(key string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.turns, key)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateTurnID creates a unique, sortable turn id.
func generateTurnID(t time.Time, seq uint64) string {
	return "turn_" + t.Format("20060102_150405") + "_" + strconv.FormatUint(seq, 10)
}
