// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/g4chat/internal/model"
	"github.com/jeranaias/g4chat/internal/store"
)

// DefaultSyncDelay is how long ArchiveSync waits for changes to settle.
const DefaultSyncDelay = 250 * time.Millisecond

// =============================================================================
// ARCHIVE SYNC
// =============================================================================

// ArchiveSync follows a store and writes its sessions and open transcript to
// an Archive. Bursts of changes (one per streamed delta) are coalesced.
type ArchiveSync struct {
	archive *Archive
	store   *store.Store
	logger  *zap.Logger
	delay   time.Duration

	kick chan struct{}

	mu            sync.Mutex
	dirtySessions bool
	dirtyMessages bool
}

// NewArchiveSync creates a sync from st to archive. Run starts it.
func NewArchiveSync(archive *Archive, st *store.Store, logger *zap.Logger) *ArchiveSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveSync{
		archive: archive,
		store:   st,
		logger:  logger,
		delay:   DefaultSyncDelay,
		kick:    make(chan struct{}, 1),
	}
}

// SetDelay changes the coalescing delay.
func (s *ArchiveSync) SetDelay(d time.Duration) {
	s.delay = d
}

// observe is the store listener.
func (s *ArchiveSync) observe(c store.Change) {
	s.mu.Lock()
	switch c.Kind {
	case store.SessionUpdated, store.SessionRemoved, store.SessionsReplaced:
		s.dirtySessions = true
	default:
		s.dirtyMessages = true
	}
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run subscribes to the store and writes changes until ctx is done, then
// flushes once more.
func (s *ArchiveSync) Run(ctx context.Context) error {
	unsubscribe := s.store.Subscribe(s.observe)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return s.Flush(context.WithoutCancel(ctx))
		case <-s.kick:
		}

		select {
		case <-ctx.Done():
			return s.Flush(context.WithoutCancel(ctx))
		case <-time.After(s.delay):
		}

		if err := s.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("archive sync failed", zap.Error(err))
		}
	}
}

// Flush writes whatever changed since the last flush.
func (s *ArchiveSync) Flush(ctx context.Context) error {
	s.mu.Lock()
	sessions, messages := s.dirtySessions, s.dirtyMessages
	s.dirtySessions, s.dirtyMessages = false, false
	s.mu.Unlock()

	var errs []error
	failedSessions, failedMessages := false, false
	if sessions {
		if err := s.archive.SaveSessions(ctx, s.store.Sessions()); err != nil {
			errs = append(errs, err)
			failedSessions = true
		}
	}
	if messages {
		// A transcript without a session id yet is written once it is adopted.
		if cur := s.store.Current(); cur != "" {
			if msgs, ok := transcriptOf(cur, s.store.Messages()); ok {
				if err := s.archive.SaveMessages(ctx, cur, msgs); err != nil {
					errs = append(errs, err)
					failedMessages = true
				}
			}
		}
	}

	// Failed parts stay dirty so the next flush retries them.
	if failedSessions || failedMessages {
		s.mu.Lock()
		s.dirtySessions = s.dirtySessions || failedSessions
		s.dirtyMessages = s.dirtyMessages || failedMessages
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

// transcriptOf returns the messages of sessionID. It reports false when the
// store still holds another session's transcript, as it does for a moment
// while a different session is opened.
func transcriptOf(sessionID string, msgs []model.Message) ([]model.Message, bool) {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if len(out) == 0 && len(msgs) > 0 {
		return nil, false
	}
	return out, true
}
