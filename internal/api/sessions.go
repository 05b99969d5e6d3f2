// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"

	"github.com/jeranaias/g4chat/internal/model"
)

// =============================================================================
// SESSION LISTING
// =============================================================================

// ListSessions returns one page of the user's sessions, optionally filtered
// by status (empty for all).
func (c *Client) ListSessions(ctx context.Context, page Page, status model.Status) (*SessionList, error) {
	q := pageQuery(page)
	if status != "" {
		q.Set("status", status.String())
	}
	var out SessionList
	if err := c.do(ctx, http.MethodGet, "/sessions", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveSessions returns every ACTIVE session, unpaginated.
func (c *Client) ActiveSessions(ctx context.Context) ([]model.Session, error) {
	var out []SessionResponse
	if err := c.do(ctx, http.MethodGet, "/sessions/active", nil, nil, &out); err != nil {
		return nil, err
	}
	return sessionModels(out), nil
}

// SearchSessions searches session titles.
func (c *Client) SearchSessions(ctx context.Context, query string, page Page) (*SessionList, error) {
	q := pageQuery(page)
	q.Set("q", query)
	var out SessionList
	if err := c.do(ctx, http.MethodGet, "/sessions/search", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PublicSessions lists sessions other users have made public.
func (c *Client) PublicSessions(ctx context.Context, page Page) (*SessionList, error) {
	var out SessionList
	if err := c.do(ctx, http.MethodGet, "/sessions/public", pageQuery(page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// SINGLE SESSION
// =============================================================================

// GetSession fetches one of the user's sessions.
func (c *Client) GetSession(ctx context.Context, id string) (model.Session, error) {
	return c.sessionCall(ctx, http.MethodGet, "/sessions/"+escape(id), nil)
}

// GetPublicSession fetches a public session.
func (c *Client) GetPublicSession(ctx context.Context, id string) (model.Session, error) {
	return c.sessionCall(ctx, http.MethodGet, "/sessions/public/"+escape(id), nil)
}

// CreateSession creates an empty session.
func (c *Client) CreateSession(ctx context.Context, title string) (model.Session, error) {
	return c.sessionCall(ctx, http.MethodPost, "/sessions", map[string]string{"title": title})
}

// RenameSession changes a session title.
func (c *Client) RenameSession(ctx context.Context, id, title string) (model.Session, error) {
	return c.sessionCall(ctx, http.MethodPut, "/sessions/"+escape(id), map[string]string{"title": title})
}

// ArchiveSession moves a session to ARCHIVED.
func (c *Client) ArchiveSession(ctx context.Context, id string) (model.Session, error) {
	return c.sessionCall(ctx, http.MethodPost, "/sessions/"+escape(id)+"/archive", nil)
}

// PauseSession moves a session to PAUSED.
func (c *Client) PauseSession(ctx context.Context, id string) (model.Session, error) {
	return c.sessionCall(ctx, http.MethodPost, "/sessions/"+escape(id)+"/pause", nil)
}

// ActivateSession moves a session back to ACTIVE.
func (c *Client) ActivateSession(ctx context.Context, id string) (model.Session, error) {
	return c.sessionCall(ctx, http.MethodPost, "/sessions/"+escape(id)+"/activate", nil)
}

// ToggleVisibility makes a session public or private.
func (c *Client) ToggleVisibility(ctx context.Context, id string, isPublic bool) (model.Session, error) {
	return c.sessionCall(ctx, http.MethodPatch, "/sessions/"+escape(id)+"/visibility", map[string]bool{"isPublic": isPublic})
}

// CopyPublicSession copies a public session into the user's own sessions. An
// empty newTitle lets the backend choose one.
func (c *Client) CopyPublicSession(ctx context.Context, id, newTitle string) (model.Session, error) {
	body := map[string]string{}
	if newTitle != "" {
		body["newTitle"] = newTitle
	}
	return c.sessionCall(ctx, http.MethodPost, "/sessions/public/"+escape(id)+"/copy", body)
}

// DeleteSession deletes a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+escape(id), nil, nil, nil)
}

func (c *Client) sessionCall(ctx context.Context, method, path string, in any) (model.Session, error) {
	var out SessionResponse
	if err := c.do(ctx, method, path, nil, in, &out); err != nil {
		return model.Session{}, err
	}
	return out.ToModel(), nil
}
