// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"

	"github.com/jeranaias/g4chat/internal/model"
)

// ListMessages returns a session's transcript in order.
func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	var out MessageHistory
	if err := c.do(ctx, http.MethodGet, "/sessions/"+escape(sessionID)+"/messages", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Models(), nil
}

// GetMessage fetches one message.
func (c *Client) GetMessage(ctx context.Context, id string) (model.Message, error) {
	var out MessageResponse
	if err := c.do(ctx, http.MethodGet, "/messages/"+escape(id), nil, nil, &out); err != nil {
		return model.Message{}, err
	}
	return out.ToModel(), nil
}

type editMessageRequest struct {
	Content            string `json:"content"`
	RegenerateResponse bool   `json:"regenerateResponse"`
}

// EditMessage replaces a message's content. With regenerate the backend also
// replaces the assistant reply that followed it.
func (c *Client) EditMessage(ctx context.Context, id, content string, regenerate bool) (model.Message, error) {
	var out MessageResponse
	in := editMessageRequest{Content: content, RegenerateResponse: regenerate}
	if err := c.do(ctx, http.MethodPut, "/messages/"+escape(id), nil, in, &out); err != nil {
		return model.Message{}, err
	}
	return out.ToModel(), nil
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/messages/"+escape(id), nil, nil, nil)
}

// RegenerateOptions narrows a regeneration. The zero value regenerates the
// last assistant reply with the session's model.
type RegenerateOptions struct {
	Model         string
	FromMessageID string
}

type regenerateRequest struct {
	Model         string `json:"model,omitempty"`
	FromMessageID any    `json:"fromMessageId,omitempty"`
}

// Regenerate asks the backend for a new assistant reply and returns it.
func (c *Client) Regenerate(ctx context.Context, sessionID string, opts RegenerateOptions) (model.Message, error) {
	var in any
	if opts != (RegenerateOptions{}) {
		req := regenerateRequest{Model: opts.Model}
		if opts.FromMessageID != "" {
			req.FromMessageID = numericID(opts.FromMessageID)
		}
		in = req
	}
	var out MessageResponse
	if err := c.do(ctx, http.MethodPost, "/sessions/"+escape(sessionID)+"/regenerate", nil, in, &out); err != nil {
		return model.Message{}, err
	}
	return out.ToModel(), nil
}
