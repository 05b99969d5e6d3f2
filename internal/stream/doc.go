// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes and drives the assistant's server-sent event stream.
//
// The backend answers a chat request with an SSE body whose data lines mix
// JSON control frames (session and message ids) with raw text deltas. The
// Decoder turns arbitrary byte chunks into typed Events; the Driver owns one
// HTTP exchange and feeds decoded deltas to a caller-supplied function.
//
// # Key Types
//
//   - Event: Metadata, Delta, Done or Error, emitted in stream order
//   - Decoder: incremental line decoder, chunk-boundary and UTF-8 safe
//   - Driver: single-use stream session (POST, decode, accumulate metadata)
//   - Outcome: ids, delta count and timing of a finished or cancelled stream
//
// # Usage
//
//	drv := stream.NewDriver(stream.DriverOptions{
//	    BaseURL:     cfg.API.BaseURL,
//	    Credentials: state,
//	})
//	out, err := drv.Start(ctx, stream.Request{Message: "hi"}, func(text string) {
//	    fmt.Print(text)
//	})
//
// Decode exposes the same loop as a channel for callers that want the raw
// events:
//
//	for ev := range stream.Decode(ctx, body, stream.DecodeOptions{}) {
//	    ...
//	}
package stream
