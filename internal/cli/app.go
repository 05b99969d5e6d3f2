// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/jeranaias/g4chat/internal/api"
	"github.com/jeranaias/g4chat/internal/chat"
	"github.com/jeranaias/g4chat/internal/config"
	"github.com/jeranaias/g4chat/internal/model"
	"github.com/jeranaias/g4chat/internal/session"
	"github.com/jeranaias/g4chat/internal/storage"
	"github.com/jeranaias/g4chat/internal/store"
	"github.com/jeranaias/g4chat/internal/stream"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// App holds the collaborators one command invocation works with.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	State   *storage.State
	Client  *api.Client
	Store   *store.Store
	Tracker *session.Tracker
	Chat    *chat.Orchestrator

	archive *storage.Archive

	out      io.Writer
	errOut   io.Writer
	in       io.Reader
	jsonMode bool
}

// newApp wires the client stack from cfg.
func newApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	state, err := storage.OpenState(cfg.Storage.StatePath)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.API.BaseURL, state).
		WithTimeout(cfg.API.Timeout).
		WithRateLimit(cfg.API.RateLimit, cfg.API.Burst).
		WithLogger(logger.Named("api"))

	st := store.New()
	tracker := session.NewTracker()
	tracker.SetTransitionCallback(func(s session.Snapshot) {
		logger.Debug("turn state",
			zap.String("turn", s.ID),
			zap.String("session_id", s.Key),
			zap.Stringer("state", s.State))
	})

	orch := chat.New(st, client,
		chat.DriverFactory(stream.DriverOptions{
			BaseURL:        cfg.API.BaseURL,
			Credentials:    state,
			ReadBufferSize: cfg.Chat.ReadBufferSize,
			Logger:         logger.Named("stream"),
		}),
		chat.WithStreaming(cfg.Chat.Streaming),
		chat.WithRollback(cfg.Chat.RollbackOptimistic),
		chat.WithTracker(tracker),
		chat.WithLogger(logger.Named("chat")),
	)

	return &App{
		Config:  cfg,
		Logger:  logger,
		State:   state,
		Client:  client,
		Store:   st,
		Tracker: tracker,
		Chat:    orch,
	}, nil
}

// Archive opens the transcript archive on first use.
func (a *App) Archive() (*storage.Archive, error) {
	if a.archive != nil {
		return a.archive, nil
	}
	if a.Config.Storage.ArchivePath == "" {
		return nil, errors.New("no archive path configured")
	}
	arch, err := storage.OpenArchive(a.Config.Storage.ArchivePath)
	if err != nil {
		return nil, err
	}
	a.archive = arch
	return arch, nil
}

// StartBackground runs the archive sync and, if enabled, the state watcher
// until ctx is done. The returned function stops them and waits.
func (a *App) StartBackground(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{}, 2)
	running := 0

	if arch, err := a.Archive(); err != nil {
		a.Logger.Warn("transcript archive unavailable", zap.Error(err))
	} else {
		as := storage.NewArchiveSync(arch, a.Store, a.Logger.Named("archive"))
		running++
		go func() {
			defer func() { done <- struct{}{} }()
			if err := as.Run(ctx); err != nil {
				a.Logger.Warn("final archive flush failed", zap.Error(err))
			}
		}()
	}

	if a.Config.Storage.WatchState {
		w, err := storage.NewWatcher(a.State, a.Logger.Named("state"))
		if err != nil {
			a.Logger.Warn("state watcher unavailable", zap.Error(err))
		} else {
			w.OnReload(func() {
				a.Logger.Info("credential state reloaded", zap.String("fingerprint", a.Client.CredentialFingerprint()))
			})
			running++
			go func() {
				defer func() { done <- struct{}{} }()
				w.Run(ctx)
				w.Close()
			}()
		}
	}

	return func() {
		cancel()
		for i := 0; i < running; i++ {
			<-done
		}
	}
}

// Close releases what the app opened.
func (a *App) Close() error {
	if a.archive != nil {
		return a.archive.Close()
	}
	return nil
}

// archiveOpenSession records sess and its transcript in the archive, for
// commands that run without the background sync.
func archiveOpenSession(ctx context.Context, a *App, sess model.Session) error {
	arch, err := a.Archive()
	if err != nil {
		return err
	}
	if err := arch.SaveSession(ctx, sess); err != nil {
		return err
	}
	var msgs []model.Message
	for _, m := range a.Store.Messages() {
		if m.SessionID == sess.ID {
			msgs = append(msgs, m)
		}
	}
	return arch.SaveMessages(ctx, sess.ID, msgs)
}
