// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/g4chat/internal/model"
	"github.com/jeranaias/g4chat/internal/store"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenArchive(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

// =============================================================================
// ARCHIVE TESTS
// =============================================================================

func TestArchive_SessionsRoundTrip(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 10, 30, 0, 0, time.Local)

	in := []model.Session{
		{ID: "s2", Title: "Second", Status: model.StatusPaused, MessageCount: 4, CreatedAt: created},
		{ID: "s1", Title: "First", Status: model.StatusActive, IsPublic: true, TokenUsage: 1200},
	}
	require.NoError(t, a.SaveSessions(ctx, in))

	out, err := a.LoadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "s2", out[0].ID, "order is kept")
	assert.Equal(t, model.StatusPaused, out[0].Status)
	assert.Equal(t, 4, out[0].MessageCount)
	assert.True(t, out[0].CreatedAt.Equal(created))
	assert.True(t, out[1].IsPublic)
	assert.Equal(t, int64(1200), out[1].TokenUsage)
	assert.True(t, out[1].CreatedAt.IsZero())

	// A later snapshot replaces the earlier one.
	require.NoError(t, a.SaveSessions(ctx, in[1:]))
	out, err = a.LoadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "s1", out[0].ID)
}

func TestArchive_SaveSessionUpserts(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.SaveSessions(ctx, []model.Session{
		{ID: "s1", Title: "First", Status: model.StatusActive},
		{ID: "s2", Title: "Second", Status: model.StatusActive},
	}))
	require.NoError(t, a.SaveSession(ctx, model.Session{ID: "s1", Title: "Renamed", Status: model.StatusArchived}))
	require.NoError(t, a.SaveSession(ctx, model.Session{ID: "s3", Title: "Third", Status: model.StatusPaused}))
	require.NoError(t, a.SaveSession(ctx, model.Session{}))

	out, err := a.LoadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"s1", "s2", "s3"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, "Renamed", out[0].Title)
	assert.Equal(t, model.StatusArchived, out[0].Status)
	assert.Equal(t, model.StatusPaused, out[2].Status)
}

func TestArchive_MessagesSkipStreaming(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.SaveMessages(ctx, "s1", []model.Message{
		{ID: "1", SessionID: "s1", Role: model.RoleUser, Content: "hi"},
		{ID: "2", SessionID: "s1", Role: model.RoleAssistant, Content: "hel", IsStreaming: true},
	}))
	require.NoError(t, a.SaveMessages(ctx, "s2", []model.Message{
		{ID: "1", SessionID: "s2", Role: model.RoleUser, Content: "other", IsEdited: true},
	}))

	s1, err := a.LoadMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, s1, 1)
	assert.Equal(t, "hi", s1[0].Content)
	assert.Equal(t, model.RoleUser, s1[0].Role)

	s2, err := a.LoadMessages(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, s2, 1)
	assert.True(t, s2[0].IsEdited)

	none, err := a.LoadMessages(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestArchive_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	ctx := context.Background()

	a, err := OpenArchive(path)
	require.NoError(t, err)
	require.NoError(t, a.SaveSessions(ctx, []model.Session{{ID: "s1", Title: "Kept"}}))
	require.NoError(t, a.Close())

	b, err := OpenArchive(path)
	require.NoError(t, err)
	defer b.Close()
	out, err := b.LoadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Kept", out[0].Title)
}

// =============================================================================
// ARCHIVE SYNC TESTS
// =============================================================================

func TestArchiveSync_FollowsStore(t *testing.T) {
	a := openTestArchive(t)
	st := store.New()
	as := NewArchiveSync(a, st, nil)
	as.SetDelay(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- as.Run(ctx) }()

	// Subscribe happens inside Run; wait until changes are observed.
	require.Eventually(t, func() bool {
		st.SetSessionList([]model.Session{{ID: "s1", Title: "Live"}})
		out, err := a.LoadSessions(context.Background())
		return err == nil && len(out) == 1
	}, 5*time.Second, 20*time.Millisecond)

	st.SetCurrent("s1")
	require.NoError(t, st.AppendMessage(model.Message{ID: "1", SessionID: "s1", Role: model.RoleUser, Content: "q"}))
	require.NoError(t, st.AppendMessage(model.Message{ID: "2", SessionID: "s1", Role: model.RoleAssistant, IsStreaming: true}))

	cancel()
	require.NoError(t, <-done)

	msgs, err := a.LoadMessages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 1, "the streaming placeholder is not archived")
	assert.Equal(t, "q", msgs[0].Content)
}

func TestArchiveSync_SkipsForeignTranscript(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	require.NoError(t, a.SaveMessages(ctx, "s2", []model.Message{{ID: "9", SessionID: "s2", Content: "kept"}}))

	st := store.New()
	require.NoError(t, st.AppendMessage(model.Message{ID: "1", SessionID: "s1", Content: "old"}))
	// Mid-switch: current already points at s2, the transcript is still s1's.
	st.SetCurrent("s2")

	as := NewArchiveSync(a, st, nil)
	as.observe(store.Change{Kind: store.MessageAppended})
	require.NoError(t, as.Flush(ctx))

	msgs, err := a.LoadMessages(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "kept", msgs[0].Content)
}

func TestArchiveSync_RetriesFailedFlush(t *testing.T) {
	a := openTestArchive(t)
	st := store.New()
	st.SetSessionList([]model.Session{{ID: "s1", Title: "Kept"}})
	st.SetCurrent("s1")
	require.NoError(t, st.AppendMessage(model.Message{ID: "1", SessionID: "s1", Role: model.RoleUser, Content: "q"}))

	as := NewArchiveSync(a, st, nil)
	as.observe(store.Change{Kind: store.SessionsReplaced})
	as.observe(store.Change{Kind: store.MessageAppended})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, as.Flush(cancelled))

	// No further store change: the next flush still writes both parts.
	ctx := context.Background()
	require.NoError(t, as.Flush(ctx))

	sessions, err := a.LoadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Kept", sessions[0].Title)

	msgs, err := a.LoadMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "q", msgs[0].Content)
}
