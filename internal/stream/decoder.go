// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// STREAMING: Chunk-boundary safe SSE decoding

// =============================================================================
// DECODER CONSTANTS
// =============================================================================

// DefaultReadBufferSize is the read size used by Decode when none is given.
const DefaultReadBufferSize = 4096

var (
	prefixData  = []byte("data:")
	prefixEvent = []byte("event:")
	doneMarker  = []byte("[DONE]")
	jsonNull    = []byte("null")
)

// =============================================================================
// DECODER
// =============================================================================

// Decoder incrementally decodes an SSE body into Events.
//
// Bytes are buffered until a newline completes a line, so the events produced
// do not depend on how the body was split into chunks. A multibyte character
// cut at a chunk edge is held back until the rest arrives. After a terminal
// event the decoder ignores further input.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	line       []byte // validated bytes of the current unterminated line
	carry      []byte // incomplete UTF-8 tail of the last chunk
	scratch    []byte
	validator  transform.Transformer
	terminated bool
}

// NewDecoder creates a decoder ready for the first chunk.
func NewDecoder() *Decoder {
	return &Decoder{validator: encoding.UTF8Validator}
}

// Terminated reports whether a Done or Error event has been emitted.
func (d *Decoder) Terminated() bool {
	return d.terminated
}

// Feed decodes one chunk and returns the events completed by it, in order.
// At most one terminal event is returned and it is always last.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d.terminated || len(chunk) == 0 {
		return nil
	}

	src := chunk
	if len(d.carry) > 0 {
		src = append(d.carry, chunk...)
		d.carry = nil
	}

	valid, err := d.validate(src)
	d.line = append(d.line, valid...)

	var events []Event
	for {
		idx := bytes.IndexByte(d.line, '\n')
		if idx < 0 {
			break
		}
		ev, ok := d.decodeLine(d.line[:idx])
		d.line = d.line[idx+1:]
		if !ok {
			continue
		}
		events = append(events, ev)
		if ev.Terminal() {
			d.terminate()
			return events
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, transform.ErrShortSrc):
		// Incomplete trailing character, wait for the next chunk.
		d.carry = append([]byte(nil), src[len(valid):]...)
	default:
		d.terminate()
		return append(events, errorEvent(ErrInvalidUTF8))
	}

	// Compact so a long-lived stream does not pin every chunk it has seen.
	if len(d.line) == 0 {
		d.line = nil
	} else if cap(d.line) > 2*len(d.line)+DefaultReadBufferSize {
		d.line = append([]byte(nil), d.line...)
	}
	return events
}

// Finish signals a clean end of the body. The unterminated remainder is
// discarded; an incomplete character yields Error, anything else Done.
func (d *Decoder) Finish() []Event {
	if d.terminated {
		return nil
	}
	incomplete := len(d.carry) > 0
	d.terminate()
	if incomplete {
		return []Event{errorEvent(ErrIncompleteUTF8)}
	}
	return []Event{doneEvent()}
}

// Fail signals that reading the body failed.
func (d *Decoder) Fail(err error) []Event {
	if d.terminated {
		return nil
	}
	d.terminate()
	return []Event{errorEvent(fmt.Errorf("%w: %w", ErrRead, err))}
}

func (d *Decoder) terminate() {
	d.terminated = true
	d.line = nil
	d.carry = nil
}

// validate returns the longest valid UTF-8 prefix of src and the validator's
// verdict on the rest: nil, transform.ErrShortSrc or encoding.ErrInvalidUTF8.
func (d *Decoder) validate(src []byte) ([]byte, error) {
	// dst as large as src means ErrShortDst cannot occur.
	if cap(d.scratch) < len(src) {
		d.scratch = make([]byte, len(src))
	}
	dst := d.scratch[:len(src)]
	_, nSrc, err := d.validator.Transform(dst, src, false)
	return src[:nSrc], err
}

// decodeLine maps one complete line to an event. ok is false for lines that
// produce nothing.
func (d *Decoder) decodeLine(line []byte) (Event, bool) {
	// CRLF framing
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	if len(bytes.TrimSpace(line)) == 0 {
		return Event{}, false
	}
	if bytes.HasPrefix(line, prefixEvent) || !bytes.HasPrefix(line, prefixData) {
		// event:, id:, retry: and comments carry nothing we use
		return Event{}, false
	}

	payload := line[len(prefixData):]
	trimmed := bytes.TrimSpace(payload)

	if bytes.Equal(trimmed, doneMarker) {
		return doneEvent(), true
	}
	if isControl(trimmed) {
		meta := parseControl(trimmed)
		if meta.IsZero() {
			return Event{}, false
		}
		return metadataEvent(meta), true
	}
	// Text is delivered untrimmed: leading spaces are part of the content.
	// A bare "data:" is an empty delta.
	return deltaEvent(string(payload)), true
}

// isControl reports whether a trimmed payload is a control frame: any valid
// JSON value except null. Numbers, booleans, strings and arrays are control
// frames that carry no recognised fields, so they produce nothing.
func isControl(trimmed []byte) bool {
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return false
	}
	return gjson.ValidBytes(trimmed)
}

// parseControl extracts the recognised ids from a JSON control object.
// Numeric ids are rendered in decimal.
func parseControl(obj []byte) Metadata {
	fields := gjson.GetManyBytes(obj, "sessionId", "userMessageId", "assistantMessageId")
	return Metadata{
		SessionID:          idString(fields[0]),
		UserMessageID:      idString(fields[1]),
		AssistantMessageID: idString(fields[2]),
	}
}

func idString(r gjson.Result) string {
	switch r.Type {
	case gjson.String, gjson.Number:
		return r.String()
	default:
		return ""
	}
}

// =============================================================================
// CHANNEL DECODING
// =============================================================================

// DecodeOptions configures Decode.
type DecodeOptions struct {
	// ReadBufferSize is the size of each read. Defaults to DefaultReadBufferSize.
	ReadBufferSize int
}

// Decode reads r on its own goroutine and delivers decoded events on the
// returned channel. The channel is closed after the terminal event, or when
// ctx is cancelled; in the latter case no terminal event may be delivered.
//
// Cancellation is observed between reads. A Read that blocks forever keeps
// the goroutine alive, so callers should pass a reader that is unblocked by
// ctx or by closing it (an HTTP response body is both).
func Decode(ctx context.Context, r io.Reader, opts DecodeOptions) <-chan Event {
	size := opts.ReadBufferSize
	if size <= 0 {
		size = DefaultReadBufferSize
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)

		dec := NewDecoder()
		buf := make([]byte, size)
		send := func(events []Event) bool {
			for _, ev := range events {
				select {
				case out <- ev:
				case <-ctx.Done():
					return false
				}
			}
			return !dec.Terminated()
		}

		for {
			if ctx.Err() != nil {
				return
			}
			n, err := r.Read(buf)
			if n > 0 && !send(dec.Feed(buf[:n])) {
				return
			}
			if err == nil {
				continue
			}
			if errors.Is(err, io.EOF) {
				send(dec.Finish())
			} else {
				send(dec.Fail(err))
			}
			return
		}
	}()
	return out
}
