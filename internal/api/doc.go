// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the REST client for the G4 chat backend.
//
// Everything except the token stream goes through this package: session
// lifecycle, message history, edits and regeneration, and the non-streaming
// chat call. Responses are decoded into wire types and converted to package
// model types at the boundary.
//
// # Key Types
//
//   - Client: authenticated, rate-limited HTTP client for /api/v1
//   - Error: structured backend error, matched with errors.Is against the
//     sentinel errors (ErrUnauthorized, ErrNotFound, ...)
//   - Timestamp: tolerant decoder for the backend's zone-less timestamps
//   - ID: message id that arrives as a JSON number or string
//
// # Usage
//
//	client := api.NewClient(cfg.API.BaseURL, state).
//	    WithTimeout(cfg.API.Timeout).
//	    WithRateLimit(cfg.API.RateLimit, cfg.API.Burst)
//
//	sessions, err := client.ListSessions(ctx, api.Page{Size: 20}, "")
//	if errors.Is(err, api.ErrUnauthorized) {
//	    // prompt for a new token
//	}
package api
