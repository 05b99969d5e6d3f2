// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/g4chat/internal/api"
	"github.com/jeranaias/g4chat/internal/store"
)

// EditMessage changes a message's content.
//
// Without regenerate the edit is local: the message is patched and marked
// edited. With regenerate the backend applies the edit and replaces the reply
// that followed it, and the whole transcript is refetched. A failed call
// leaves the store untouched.
func (o *Orchestrator) EditMessage(ctx context.Context, id, content string, regenerate bool) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	msg, ok := o.store.Message(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}

	if !regenerate {
		o.store.PatchMessage(id, store.MessagePatch{
			Content:  store.Ptr(content),
			IsEdited: store.Ptr(true),
		})
		return nil
	}

	if _, err := o.backend.EditMessage(ctx, id, content, true); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return o.reload(ctx, o.owningSession(msg.SessionID))
}

// DeleteMessage deletes a message on the backend, then locally. Nothing is
// removed if the backend refuses.
func (o *Orchestrator) DeleteMessage(ctx context.Context, id string) error {
	if err := o.backend.DeleteMessage(ctx, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	o.store.RemoveMessage(id)
	return nil
}

// RegenerateResponse asks for a new last reply in sessionID (empty for the
// open session) and refetches the transcript.
func (o *Orchestrator) RegenerateResponse(ctx context.Context, sessionID string) error {
	sessionID = o.owningSession(sessionID)
	if sessionID == "" {
		return ErrNoSession
	}
	if _, err := o.backend.Regenerate(ctx, sessionID, api.RegenerateOptions{}); err != nil {
		return fmt.Errorf("regenerate: %w", err)
	}
	return o.reload(ctx, sessionID)
}

// owningSession falls back to the open session when id is empty.
func (o *Orchestrator) owningSession(id string) string {
	if id != "" {
		return id
	}
	return o.store.Current()
}

// reload replaces the transcript with the backend's, if sessionID is still
// the one on screen.
func (o *Orchestrator) reload(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	msgs, err := o.backend.ListMessages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("reload messages: %w", err)
	}
	if cur := o.store.Current(); cur != "" && cur != sessionID {
		o.logger.Debug("discarding reload for a session no longer open",
			zap.String("session_id", sessionID),
			zap.String("current", cur))
		return nil
	}
	o.store.ReplaceAllMessages(msgs)
	return nil
}
