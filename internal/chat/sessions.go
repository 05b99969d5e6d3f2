// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/g4chat/internal/api"
	"github.com/jeranaias/g4chat/internal/model"
	"github.com/jeranaias/g4chat/internal/store"
)

// =============================================================================
// OPTIMISTIC SESSION CHANGES
// =============================================================================

// RenameSession changes a session's title.
func (o *Orchestrator) RenameSession(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	return o.optimistic(ctx, "rename", id, store.SessionPatch{Title: store.Ptr(title)},
		func(ctx context.Context) (model.Session, error) { return o.backend.RenameSession(ctx, id, title) })
}

// ArchiveSession moves a session to ARCHIVED.
func (o *Orchestrator) ArchiveSession(ctx context.Context, id string) error {
	return o.optimistic(ctx, "archive", id, store.SessionPatch{Status: store.Ptr(model.StatusArchived)},
		func(ctx context.Context) (model.Session, error) { return o.backend.ArchiveSession(ctx, id) })
}

// PauseSession moves a session to PAUSED.
func (o *Orchestrator) PauseSession(ctx context.Context, id string) error {
	return o.optimistic(ctx, "pause", id, store.SessionPatch{Status: store.Ptr(model.StatusPaused)},
		func(ctx context.Context) (model.Session, error) { return o.backend.PauseSession(ctx, id) })
}

// ActivateSession moves a session back to ACTIVE.
func (o *Orchestrator) ActivateSession(ctx context.Context, id string) error {
	return o.optimistic(ctx, "activate", id, store.SessionPatch{Status: store.Ptr(model.StatusActive)},
		func(ctx context.Context) (model.Session, error) { return o.backend.ActivateSession(ctx, id) })
}

// ToggleVisibility makes a session public or private.
func (o *Orchestrator) ToggleVisibility(ctx context.Context, id string, isPublic bool) error {
	return o.optimistic(ctx, "visibility", id, store.SessionPatch{IsPublic: store.Ptr(isPublic)},
		func(ctx context.Context) (model.Session, error) { return o.backend.ToggleVisibility(ctx, id, isPublic) })
}

// optimistic applies patch locally, then calls the backend. On success the
// backend's session replaces the local one. On failure, with rollback enabled,
// every patched field that still holds the optimistic value is restored; a
// field changed again in the meantime is left alone.
func (o *Orchestrator) optimistic(ctx context.Context, action, id string, patch store.SessionPatch, call func(context.Context) (model.Session, error)) error {
	prev, known := o.store.Session(id)
	o.store.PatchSession(id, patch)

	sess, err := call(ctx)
	if err != nil {
		if o.rollback && known {
			o.store.UpdateSession(id, func(cur model.Session) store.SessionPatch {
				return revert(cur, prev, patch)
			})
		}
		o.logger.Warn("session change failed",
			zap.String("action", action),
			zap.String("session_id", id),
			zap.Bool("rolled_back", o.rollback && known),
			zap.Error(err))
		return fmt.Errorf("%s session: %w", action, err)
	}

	if sess.ID == "" {
		sess.ID = id
	}
	o.store.ReplaceSession(sess)
	return nil
}

// revert builds the compensating patch for patch, given the session's value
// before (prev) and now (cur).
func revert(cur, prev model.Session, patch store.SessionPatch) store.SessionPatch {
	var back store.SessionPatch
	if patch.Title != nil && cur.Title == *patch.Title {
		back.Title = store.Ptr(prev.Title)
	}
	if patch.Status != nil && cur.Status == *patch.Status {
		back.Status = store.Ptr(prev.Status)
	}
	if patch.IsPublic != nil && cur.IsPublic == *patch.IsPublic {
		back.IsPublic = store.Ptr(prev.IsPublic)
	}
	if patch.MessageCount != nil && cur.MessageCount == *patch.MessageCount {
		back.MessageCount = store.Ptr(prev.MessageCount)
	}
	return back
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// DeleteSession deletes a session on the backend, then locally. When it was
// the open session the transcript is cleared.
func (o *Orchestrator) DeleteSession(ctx context.Context, id string) error {
	if err := o.backend.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	wasCurrent := o.store.Current() == id
	o.store.RemoveSession(id)
	if wasCurrent {
		o.store.SetCurrent("")
		o.store.ClearMessages()
	}
	o.tracker.Forget(id)
	return nil
}

// RefreshSessions replaces the session list with the backend's first page.
func (o *Orchestrator) RefreshSessions(ctx context.Context) error {
	list, err := o.backend.ListSessions(ctx, api.Page{Size: o.pageSize}, "")
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	o.store.SetSessionList(list.Models())
	return nil
}

// SelectSession opens a session: its details and transcript are fetched
// concurrently, then it becomes current and its messages replace the
// transcript.
func (o *Orchestrator) SelectSession(ctx context.Context, id string) (model.Session, error) {
	var (
		sess model.Session
		msgs []model.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sess, err = o.backend.GetSession(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		msgs, err = o.backend.ListMessages(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Session{}, fmt.Errorf("open session %s: %w", id, err)
	}

	o.store.PutSession(sess)
	o.store.SetCurrent(sess.ID)
	o.store.ReplaceAllMessages(msgs)
	return sess, nil
}

// NewSession leaves the open session; the next send creates a new one.
func (o *Orchestrator) NewSession() {
	o.store.SetCurrent("")
	o.store.ClearMessages()
}

// CreateSession creates an empty titled session on the backend and opens it.
func (o *Orchestrator) CreateSession(ctx context.Context, title string) (model.Session, error) {
	sess, err := o.backend.CreateSession(ctx, strings.TrimSpace(title))
	if err != nil {
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}
	o.store.PutSession(sess)
	o.store.SetCurrent(sess.ID)
	o.store.ClearMessages()
	return sess, nil
}

// =============================================================================
// DISCOVERY
// =============================================================================

// SearchSessions searches the user's session titles. The store is not changed.
func (o *Orchestrator) SearchSessions(ctx context.Context, query string, page api.Page) (*api.SessionList, error) {
	list, err := o.backend.SearchSessions(ctx, query, page)
	if err != nil {
		return nil, fmt.Errorf("search sessions: %w", err)
	}
	return list, nil
}

// PublicSessions lists public sessions. The store is not changed.
func (o *Orchestrator) PublicSessions(ctx context.Context, page api.Page) (*api.SessionList, error) {
	list, err := o.backend.PublicSessions(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("public sessions: %w", err)
	}
	return list, nil
}

// CopyPublicSession copies a public session into the user's sessions and adds
// it to the session list.
func (o *Orchestrator) CopyPublicSession(ctx context.Context, id, newTitle string) (model.Session, error) {
	sess, err := o.backend.CopyPublicSession(ctx, id, strings.TrimSpace(newTitle))
	if err != nil {
		return model.Session{}, fmt.Errorf("copy session: %w", err)
	}
	o.store.PutSession(sess)
	return sess, nil
}
