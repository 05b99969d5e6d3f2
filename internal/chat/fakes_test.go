// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jeranaias/g4chat/internal/api"
	"github.com/jeranaias/g4chat/internal/model"
	"github.com/jeranaias/g4chat/internal/stream"
)

var errBackend = errors.New("backend unavailable")

// fakeBackend records calls and answers from its function fields. Nil
// fields return zero values.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	chat         func(sessionID, message string) (*api.ChatResponse, error)
	listSessions func() (*api.SessionList, error)
	getSession   func(id string) (model.Session, error)
	sessionCall  func(action, id string) (model.Session, error)
	deleteSess   func(id string) error
	listMessages func(sessionID string) ([]model.Message, error)
	editMessage  func(id, content string, regenerate bool) (model.Message, error)
	deleteMsg    func(id string) error
	regenerate   func(sessionID string) (model.Message, error)
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) Chat(_ context.Context, sessionID, message string) (*api.ChatResponse, error) {
	f.record("chat")
	if f.chat == nil {
		return &api.ChatResponse{}, nil
	}
	return f.chat(sessionID, message)
}

func (f *fakeBackend) ListSessions(context.Context, api.Page, model.Status) (*api.SessionList, error) {
	f.record("list_sessions")
	if f.listSessions == nil {
		return &api.SessionList{}, nil
	}
	return f.listSessions()
}

func (f *fakeBackend) SearchSessions(context.Context, string, api.Page) (*api.SessionList, error) {
	f.record("search")
	return &api.SessionList{}, nil
}

func (f *fakeBackend) PublicSessions(context.Context, api.Page) (*api.SessionList, error) {
	f.record("public")
	return &api.SessionList{}, nil
}

func (f *fakeBackend) GetSession(_ context.Context, id string) (model.Session, error) {
	f.record("get_session")
	if f.getSession == nil {
		return model.Session{ID: id}, nil
	}
	return f.getSession(id)
}

func (f *fakeBackend) call(action, id string) (model.Session, error) {
	f.record(action)
	if f.sessionCall == nil {
		return model.Session{ID: id}, nil
	}
	return f.sessionCall(action, id)
}

func (f *fakeBackend) CreateSession(_ context.Context, title string) (model.Session, error) {
	f.record("create")
	return model.Session{ID: "created-1", Title: title, Status: model.StatusActive}, nil
}

func (f *fakeBackend) RenameSession(_ context.Context, id, _ string) (model.Session, error) {
	return f.call("rename", id)
}

func (f *fakeBackend) ArchiveSession(_ context.Context, id string) (model.Session, error) {
	return f.call("archive", id)
}

func (f *fakeBackend) PauseSession(_ context.Context, id string) (model.Session, error) {
	return f.call("pause", id)
}

func (f *fakeBackend) ActivateSession(_ context.Context, id string) (model.Session, error) {
	return f.call("activate", id)
}

func (f *fakeBackend) ToggleVisibility(_ context.Context, id string, _ bool) (model.Session, error) {
	return f.call("visibility", id)
}

func (f *fakeBackend) CopyPublicSession(_ context.Context, id, newTitle string) (model.Session, error) {
	f.record("copy")
	return model.Session{ID: "copy-of-" + id, Title: newTitle}, nil
}

func (f *fakeBackend) DeleteSession(_ context.Context, id string) error {
	f.record("delete_session")
	if f.deleteSess == nil {
		return nil
	}
	return f.deleteSess(id)
}

func (f *fakeBackend) ListMessages(_ context.Context, sessionID string) ([]model.Message, error) {
	f.record("list_messages")
	if f.listMessages == nil {
		return nil, nil
	}
	return f.listMessages(sessionID)
}

func (f *fakeBackend) EditMessage(_ context.Context, id, content string, regenerate bool) (model.Message, error) {
	f.record("edit")
	if f.editMessage == nil {
		return model.Message{ID: id, Content: content}, nil
	}
	return f.editMessage(id, content, regenerate)
}

func (f *fakeBackend) DeleteMessage(_ context.Context, id string) error {
	f.record("delete_message")
	if f.deleteMsg == nil {
		return nil
	}
	return f.deleteMsg(id)
}

func (f *fakeBackend) Regenerate(_ context.Context, sessionID string, _ api.RegenerateOptions) (model.Message, error) {
	f.record("regenerate")
	if f.regenerate == nil {
		return model.Message{}, nil
	}
	return f.regenerate(sessionID)
}

// scriptedStreamer replays metadata and deltas, then ends as configured.
type scriptedStreamer struct {
	meta   stream.Metadata
	deltas []string

	// err, when set, is returned after the deltas.
	err error

	// block waits for cancellation after the deltas.
	block bool

	// afterDelta runs after each delta has been handed over.
	afterDelta func(i int)

	mu       sync.Mutex
	requests []stream.Request
}

func (s *scriptedStreamer) Start(ctx context.Context, req stream.Request, onDelta stream.DeltaFunc) (stream.Outcome, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	var out stream.Outcome
	var initErr *stream.InitiationError
	if errors.As(s.err, &initErr) {
		return out, s.err
	}

	out.Metadata = s.meta
	for i, d := range s.deltas {
		onDelta(d)
		out.Deltas++
		if s.afterDelta != nil {
			s.afterDelta(i)
		}
	}

	if s.block {
		<-ctx.Done()
		out.Cancelled = true
		return out, nil
	}
	if s.err != nil {
		return out, &stream.StreamError{Metadata: out.Metadata, Deltas: out.Deltas, Err: s.err}
	}
	return out, nil
}

func (s *scriptedStreamer) factory() StreamerFactory {
	return func() Streamer { return s }
}

// sequentialIDs returns a deterministic id generator.
func sequentialIDs() func(string) string {
	var mu sync.Mutex
	n := 0
	return func(prefix string) string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
