// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
)

type chatRequest struct {
	Message string `json:"message"`
}

// Chat sends a message and waits for the complete reply. An empty sessionID
// creates a new session; the response reports it with IsNewSession.
func (c *Client) Chat(ctx context.Context, sessionID, message string) (*ChatResponse, error) {
	path := "/chat"
	if sessionID != "" {
		path = "/chat/sessions/" + escape(sessionID)
	}
	var out ChatResponse
	if err := c.do(ctx, http.MethodPost, path, nil, chatRequest{Message: message}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
