// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/g4chat/internal/model"
	"github.com/jeranaias/g4chat/internal/session"
	"github.com/jeranaias/g4chat/internal/store"
	"github.com/jeranaias/g4chat/internal/stream"
)

// TurnResult describes a finished send.
type TurnResult struct {
	// SessionID is the session the turn belongs to; for a new conversation it
	// is the id the backend created, when reported.
	SessionID string

	// UserMessageID and AssistantMessageID are the ids the messages carry in
	// the store after the turn: server ids when adopted, client ids otherwise.
	UserMessageID      string
	AssistantMessageID string

	State      session.State
	Deltas     int
	NewSession bool
	Elapsed    time.Duration
}

// turn carries the bookkeeping of one send between its phases.
type turn struct {
	sessionID string
	userID    string
	asstID    string
	applied   int
}

// SendMessage sends text in sessionID (empty for a new conversation) and
// blocks until the reply has settled, failed or been cancelled.
//
// On return the store is in its final state for the turn: the placeholder is
// no longer streaming and holds the reply, the partial reply, or
// ApologyMessage when nothing arrived. A failure is also returned as the
// error; cancellation is not an error.
func (o *Orchestrator) SendMessage(ctx context.Context, text, sessionID string) (TurnResult, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return TurnResult{}, ErrEmptyMessage
	}
	if utf16Len(content) > MaxMessageLength {
		return TurnResult{}, ErrMessageTooLong
	}

	tr, tctx := o.tracker.Begin(ctx, sessionID)
	defer o.tracker.Finish(tr)

	t := &turn{
		sessionID: sessionID,
		userID:    o.newID("tmp-user"),
		asstID:    o.newID("tmp-asst"),
	}
	now := time.Now()
	if err := o.store.AppendMessage(model.Message{
		ID:        t.userID,
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   content,
		Timestamp: now,
	}); err != nil {
		tr.Transition(session.StateFailed)
		return TurnResult{}, err
	}
	if err := o.store.AppendMessage(model.Message{
		ID:          t.asstID,
		SessionID:   sessionID,
		Role:        model.RoleAssistant,
		Timestamp:   now,
		IsStreaming: true,
	}); err != nil {
		tr.Transition(session.StateFailed)
		return TurnResult{}, err
	}

	o.logger.Debug("turn started",
		zap.String("turn", tr.ID()),
		zap.String("session_id", sessionID),
		zap.Bool("streaming", o.streaming))

	if o.streaming {
		return o.sendStreaming(ctx, tctx, tr, t, content)
	}
	return o.sendBlocking(ctx, tctx, tr, t, content)
}

// sendStreaming runs the turn through a stream driver.
func (o *Orchestrator) sendStreaming(ctx, tctx context.Context, tr *session.Turn, t *turn, content string) (TurnResult, error) {
	out, err := o.newStreamer().Start(tctx, stream.Request{Message: content, SessionID: t.sessionID}, func(delta string) {
		if t.applied == 0 {
			tr.Transition(session.StateStreaming)
		}
		t.applied++
		// Content only: the streaming flag must survive every delta.
		o.store.UpdateMessage(t.asstID, func(m model.Message) store.MessagePatch {
			return store.MessagePatch{Content: store.Ptr(m.Content + delta)}
		})
	})

	meta := out.Metadata
	var streamErr *stream.StreamError
	if errors.As(err, &streamErr) {
		meta = streamErr.Metadata
	}

	res := TurnResult{Deltas: t.applied, Elapsed: out.Elapsed}
	switch {
	case err != nil:
		o.fail(tr, t)
		o.logger.Warn("turn failed", zap.String("turn", tr.ID()), zap.Int("deltas", t.applied), zap.Error(err))
	case out.Cancelled:
		o.settle(t)
		tr.Transition(session.StateCancelled)
	default:
		o.settle(t)
		tr.Transition(session.StateSettled)
	}
	res.State = tr.State()

	newSession := meta.SessionID != "" && meta.SessionID != t.sessionID
	o.adopt(t, meta.SessionID, meta.UserMessageID, meta.AssistantMessageID)
	o.afterTurn(ctx, t, t.sessionID == "" || newSession)

	res.SessionID = t.sessionID
	res.UserMessageID = t.userID
	res.AssistantMessageID = t.asstID
	res.NewSession = newSession
	return res, err
}

// sendBlocking runs the turn through the single-response chat endpoint.
func (o *Orchestrator) sendBlocking(ctx, tctx context.Context, tr *session.Turn, t *turn, content string) (TurnResult, error) {
	start := time.Now()
	resp, err := o.backend.Chat(tctx, t.sessionID, content)

	res := TurnResult{}
	switch {
	case err != nil && tctx.Err() != nil:
		o.settle(t)
		tr.Transition(session.StateCancelled)
		err = nil
	case err != nil:
		o.fail(tr, t)
		o.logger.Warn("turn failed", zap.String("turn", tr.ID()), zap.Error(err))
	default:
		o.store.PatchMessage(t.asstID, store.MessagePatch{
			Content:     store.Ptr(resp.AssistantMessage),
			IsStreaming: store.Ptr(false),
			TokenCount:  store.Ptr(resp.TokenCount),
			Model:       store.Ptr(resp.Model),
		})
		t.applied = 1
		tr.Transition(session.StateSettled)
	}
	res.State = tr.State()
	res.Elapsed = time.Since(start)

	refresh := t.sessionID == ""
	if resp != nil {
		res.NewSession = resp.IsNewSession
		refresh = refresh || resp.IsNewSession
		o.adopt(t, resp.SessionID, resp.UserMessageID.String(), resp.AssistantMessageID.String())
	}
	o.afterTurn(ctx, t, refresh)

	res.SessionID = t.sessionID
	res.UserMessageID = t.userID
	res.AssistantMessageID = t.asstID
	res.Deltas = t.applied
	return res, err
}

// settle clears the streaming flag, keeping whatever content arrived.
func (o *Orchestrator) settle(t *turn) {
	o.store.PatchMessage(t.asstID, store.MessagePatch{IsStreaming: store.Ptr(false)})
}

// fail ends the turn as FAILED. A placeholder that received nothing gets the
// apology; a partial reply is kept as is.
func (o *Orchestrator) fail(tr *session.Turn, t *turn) {
	patch := store.MessagePatch{IsStreaming: store.Ptr(false)}
	if t.applied == 0 {
		patch.Content = store.Ptr(ApologyMessage)
	}
	o.store.PatchMessage(t.asstID, patch)
	tr.Transition(session.StateFailed)
}

// adopt swaps client ids for server ids. An id that would collide with a
// message already in the transcript is not adopted.
func (o *Orchestrator) adopt(t *turn, sessionID, userID, asstID string) {
	if userID != "" && o.store.PatchMessage(t.userID, store.MessagePatch{ID: store.Ptr(userID)}) {
		t.userID = userID
	}
	if asstID != "" && o.store.PatchMessage(t.asstID, store.MessagePatch{ID: store.Ptr(asstID)}) {
		t.asstID = asstID
	}
	if sessionID == "" || sessionID == t.sessionID {
		return
	}
	o.store.PatchMessage(t.userID, store.MessagePatch{SessionID: store.Ptr(sessionID)})
	o.store.PatchMessage(t.asstID, store.MessagePatch{SessionID: store.Ptr(sessionID)})

	// Follow the conversation into the session it created.
	if o.store.Current() == t.sessionID {
		o.store.SetCurrent(sessionID)
	}
	t.sessionID = sessionID
}

// afterTurn refreshes the session list when the turn may have created or
// changed a session. Refresh failures are logged, not returned: the turn
// itself already completed.
func (o *Orchestrator) afterTurn(ctx context.Context, t *turn, refresh bool) {
	if !refresh {
		return
	}
	// The turn may have been cancelled; the session it created still exists.
	if err := o.RefreshSessions(context.WithoutCancel(ctx)); err != nil {
		o.logger.Warn("session refresh after turn failed",
			zap.String("session_id", t.sessionID),
			zap.Error(err))
	}
}

// utf16Len counts content the way the backend's length validation does, in
// UTF-16 code units: characters outside the BMP count twice.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// utf16RuneLen mirrors unicode/utf16.RuneLen (Go 1.23+), which is not
// available on the Go 1.21 toolchain this module targets.
func utf16RuneLen(r rune) int {
	switch {
	case 0 <= r && r < 0xd800, 0xe000 <= r && r < 0x10000:
		return 1
	case 0x10000 <= r && r <= 0x10ffff:
		return 2
	default:
		return -1
	}
}
