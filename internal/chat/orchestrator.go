// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the conversation use cases.
package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/g4chat/internal/api"
	"github.com/jeranaias/g4chat/internal/model"
	"github.com/jeranaias/g4chat/internal/session"
	"github.com/jeranaias/g4chat/internal/store"
	"github.com/jeranaias/g4chat/internal/stream"
)

// ApologyMessage replaces the assistant placeholder when no reply arrived.
const ApologyMessage = "Sorry, I encountered an error. Please try again."

// MaxMessageLength is the longest message the backend accepts, in UTF-16
// code units.
const MaxMessageLength = 10000

// DefaultPageSize is the number of sessions fetched by RefreshSessions.
const DefaultPageSize = 50

// Error variables for orchestrator operations.
var (
	// ErrEmptyMessage indicates the message to send is empty or whitespace.
	ErrEmptyMessage = stream.ErrEmptyMessage

	// ErrMessageTooLong indicates the message exceeds MaxMessageLength.
	ErrMessageTooLong = errors.New("message too long")

	// ErrEmptyContent indicates an edit with empty content.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrEmptyTitle indicates a rename to a blank title.
	ErrEmptyTitle = errors.New("session title is empty")

	// ErrMessageNotFound indicates the message is not in the open transcript.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNoSession indicates the operation needs a session and none is open.
	ErrNoSession = errors.New("no session selected")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Backend is the REST surface the orchestrator uses. *api.Client implements it.
type Backend interface {
	Chat(ctx context.Context, sessionID, message string) (*api.ChatResponse, error)

	ListSessions(ctx context.Context, page api.Page, status model.Status) (*api.SessionList, error)
	SearchSessions(ctx context.Context, query string, page api.Page) (*api.SessionList, error)
	PublicSessions(ctx context.Context, page api.Page) (*api.SessionList, error)
	GetSession(ctx context.Context, id string) (model.Session, error)
	CreateSession(ctx context.Context, title string) (model.Session, error)
	RenameSession(ctx context.Context, id, title string) (model.Session, error)
	ArchiveSession(ctx context.Context, id string) (model.Session, error)
	PauseSession(ctx context.Context, id string) (model.Session, error)
	ActivateSession(ctx context.Context, id string) (model.Session, error)
	ToggleVisibility(ctx context.Context, id string, isPublic bool) (model.Session, error)
	CopyPublicSession(ctx context.Context, id, newTitle string) (model.Session, error)
	DeleteSession(ctx context.Context, id string) error

	ListMessages(ctx context.Context, sessionID string) ([]model.Message, error)
	EditMessage(ctx context.Context, id, content string, regenerate bool) (model.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	Regenerate(ctx context.Context, sessionID string, opts api.RegenerateOptions) (model.Message, error)
}

// Streamer runs one streamed turn. *stream.Driver implements it.
type Streamer interface {
	Start(ctx context.Context, req stream.Request, onDelta stream.DeltaFunc) (stream.Outcome, error)
}

// StreamerFactory returns a fresh Streamer for each turn.
type StreamerFactory func() Streamer

// DriverFactory returns a factory of stream drivers sharing opts.
func DriverFactory(opts stream.DriverOptions) StreamerFactory {
	return func() Streamer { return stream.NewDriver(opts) }
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs the conversation use cases. Its methods block until the
// operation completes and are safe to call from multiple goroutines.
type Orchestrator struct {
	store       *store.Store
	backend     Backend
	newStreamer StreamerFactory
	tracker     *session.Tracker
	logger      *zap.Logger
	newID       func(prefix string) string

	streaming bool
	rollback  bool
	pageSize  int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStreaming selects streamed (default) or single-response sends.
func WithStreaming(enabled bool) Option {
	return func(o *Orchestrator) { o.streaming = enabled }
}

// WithRollback controls whether failed session changes are reverted locally
// (default true).
func WithRollback(enabled bool) Option {
	return func(o *Orchestrator) { o.rollback = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithIDGenerator replaces the client id generator. fn receives "tmp-user"
// or "tmp-asst" and must return ids unique within the transcript.
func WithIDGenerator(fn func(prefix string) string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithTracker shares a turn tracker, e.g. with a signal handler.
func WithTracker(tr *session.Tracker) Option {
	return func(o *Orchestrator) {
		if tr != nil {
			o.tracker = tr
		}
	}
}

// WithPageSize sets how many sessions RefreshSessions fetches.
func WithPageSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// New creates an orchestrator over st.
func New(st *store.Store, backend Backend, newStreamer StreamerFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       st,
		backend:     backend,
		newStreamer: newStreamer,
		tracker:     session.NewTracker(),
		logger:      zap.NewNop(),
		newID:       defaultID,
		streaming:   true,
		rollback:    true,
		pageSize:    DefaultPageSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func defaultID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Store returns the orchestrator's store.
func (o *Orchestrator) Store() *store.Store {
	return o.store
}

// CurrentSession returns the open session, if it is in the session list.
func (o *Orchestrator) CurrentSession() (model.Session, bool) {
	id := o.store.Current()
	if id == "" {
		return model.Session{}, false
	}
	return o.store.Session(id)
}

// =============================================================================
// TURN CONTROL
// =============================================================================

// CancelTurn interrupts the outstanding turn of sessionKey (the session id,
// or session.NewSessionKey for a send that is creating its session).
func (o *Orchestrator) CancelTurn(sessionKey string) bool {
	return o.tracker.Cancel(sessionKey)
}

// TurnState returns the state of the latest turn of sessionKey.
func (o *Orchestrator) TurnState(sessionKey string) session.State {
	return o.tracker.State(sessionKey)
}

// Busy reports whether sessionKey has an outstanding turn.
func (o *Orchestrator) Busy(sessionKey string) bool {
	return o.tracker.Busy(sessionKey)
}
