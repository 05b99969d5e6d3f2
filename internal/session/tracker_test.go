// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// STATE MACHINE TESTS
// =============================================================================

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateSending, true},
		{StateIdle, StateStreaming, false},
		{StateSending, StateStreaming, true},
		{StateSending, StateSettled, true},
		{StateSending, StateFailed, true},
		{StateStreaming, StateSettled, true},
		{StateStreaming, StateCancelled, true},
		{StateStreaming, StateSending, false},
		{StateSettled, StateFailed, false},
		{StateCancelled, StateSettled, false},
	}

	for _, tc := range tests {
		t.Run(tc.from.String()+"->"+tc.to.String(), func(t *testing.T) {
			if got := canTransition(tc.from, tc.to); got != tc.ok {
				t.Errorf("canTransition(%v, %v) = %v, want %v", tc.from, tc.to, got, tc.ok)
			}
		})
	}
}

func TestBegin(t *testing.T) {
	tr := NewTracker()
	turn, ctx := tr.Begin(context.Background(), "s1")
	defer tr.Finish(turn)

	if !strings.HasPrefix(turn.ID(), "turn_") {
		t.Errorf("turn id should start with turn_, got %q", turn.ID())
	}
	if turn.State() != StateSending {
		t.Errorf("new turn state = %v, want SENDING", turn.State())
	}
	if !tr.Busy("s1") {
		t.Error("tracker should report s1 busy")
	}
	if tr.Busy("s2") {
		t.Error("s2 has no turn")
	}
	if ctx.Err() != nil {
		t.Error("context should be live")
	}
}

func TestSettledTurnIsNotCancelled(t *testing.T) {
	tr := NewTracker()
	turn, ctx := tr.Begin(context.Background(), "s1")
	turn.Transition(StateStreaming)
	turn.Transition(StateSettled)

	if tr.Cancel("s1") {
		t.Error("Cancel should not touch a settled turn")
	}
	tr.Finish(turn)

	if turn.State() != StateSettled {
		t.Errorf("state = %v, want SETTLED", turn.State())
	}
	if ctx.Err() == nil {
		t.Error("Finish should release the context")
	}
	if tr.State("s1") != StateSettled {
		t.Errorf("tracker state = %v, want SETTLED", tr.State("s1"))
	}
}

func TestCancel(t *testing.T) {
	tr := NewTracker()
	turn, ctx := tr.Begin(context.Background(), NewSessionKey)
	turn.Transition(StateStreaming)

	if !tr.Cancel(NewSessionKey) {
		t.Fatal("Cancel should report an active turn")
	}
	<-ctx.Done()

	// The goroutine running the turn records the outcome.
	turn.Transition(StateCancelled)
	if turn.Transition(StateSettled) {
		t.Error("a cancelled turn must not settle")
	}
	tr.Finish(turn)
	if tr.Busy(NewSessionKey) {
		t.Error("tracker should be idle after cancel")
	}
}

func TestFinishMarksActiveTurnCancelled(t *testing.T) {
	tr := NewTracker()
	turn, _ := tr.Begin(context.Background(), "s1")
	tr.Finish(turn)

	if turn.State() != StateCancelled {
		t.Errorf("state = %v, want CANCELLED", turn.State())
	}
}

func TestCancelAll(t *testing.T) {
	tr := NewTracker()
	a, _ := tr.Begin(context.Background(), "a")
	b, _ := tr.Begin(context.Background(), "b")
	c, _ := tr.Begin(context.Background(), "c")
	c.Transition(StateSettled)

	if n := tr.CancelAll(); n != 2 {
		t.Errorf("CancelAll() = %d, want 2", n)
	}
	for _, turn := range []*Turn{a, b, c} {
		tr.Finish(turn)
	}
}

func TestTransitionCallback(t *testing.T) {
	tr := NewTracker()
	var mu sync.Mutex
	var states []State
	tr.SetTransitionCallback(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
	})

	turn, _ := tr.Begin(context.Background(), "s")
	turn.Transition(StateStreaming)
	turn.Transition(StateFailed)
	tr.Finish(turn)

	want := []State{StateSending, StateStreaming, StateFailed}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestForget(t *testing.T) {
	tr := NewTracker()
	turn, _ := tr.Begin(context.Background(), "s")
	tr.Finish(turn)
	tr.Forget("s")

	if tr.State("s") != StateIdle {
		t.Errorf("forgotten key state = %v, want IDLE", tr.State("s"))
	}
}
