// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jeranaias/g4chat/internal/api"
	"github.com/jeranaias/g4chat/internal/model"
	"github.com/jeranaias/g4chat/internal/session"
	"github.com/jeranaias/g4chat/internal/store"
	"github.com/jeranaias/g4chat/internal/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ignoreVolatile drops fields that depend on the clock.
var ignoreVolatile = cmpopts.IgnoreFields(model.Message{}, "Timestamp")

func newOrchestrator(st *store.Store, be Backend, s *scriptedStreamer, opts ...Option) *Orchestrator {
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	return New(st, be, s.factory(), opts...)
}

// =============================================================================
// STREAMED SEND
// =============================================================================

func TestSendMessage_HappyPath(t *testing.T) {
	st := store.New()
	st.SetCurrent("s1")
	be := &fakeBackend{}

	var streamingDuring []bool
	streamer := &scriptedStreamer{
		meta:   stream.Metadata{SessionID: "s1", UserMessageID: "101", AssistantMessageID: "102"},
		deltas: []string{"Hel", "lo", " there"},
	}
	streamer.afterDelta = func(int) {
		m, _ := st.Message("tmp-asst-2")
		streamingDuring = append(streamingDuring, m.IsStreaming)
	}
	o := newOrchestrator(st, be, streamer)

	res, err := o.SendMessage(context.Background(), "  hi  ", "s1")
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true, true}, streamingDuring, "deltas must not clear the streaming flag")
	assert.Equal(t, session.StateSettled, res.State)
	assert.Equal(t, 3, res.Deltas)
	assert.Equal(t, "101", res.UserMessageID)
	assert.Equal(t, "102", res.AssistantMessageID)
	assert.False(t, res.NewSession)

	want := []model.Message{
		{ID: "101", SessionID: "s1", Role: model.RoleUser, Content: "hi"},
		{ID: "102", SessionID: "s1", Role: model.RoleAssistant, Content: "Hello there"},
	}
	if diff := cmp.Diff(want, st.Messages(), ignoreVolatile); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "hi", streamer.requests[0].Message)
	assert.Equal(t, "s1", streamer.requests[0].SessionID)
	assert.Zero(t, be.count("list_sessions"), "no refresh for an existing session")
	assert.Equal(t, session.StateSettled, o.TurnState("s1"))
}

func TestSendMessage_RejectsEmpty(t *testing.T) {
	st := store.New()
	o := newOrchestrator(st, &fakeBackend{}, &scriptedStreamer{})

	_, err := o.SendMessage(context.Background(), " \n\t", "s1")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, st.Messages())
}

func TestSendMessage_RejectsTooLong(t *testing.T) {
	st := store.New()
	o := newOrchestrator(st, &fakeBackend{}, &scriptedStreamer{})

	long := make([]rune, MaxMessageLength+1)
	for i := range long {
		long[i] = 'é'
	}
	_, err := o.SendMessage(context.Background(), string(long), "s1")
	assert.ErrorIs(t, err, ErrMessageTooLong)
	assert.Empty(t, st.Messages())
}

func TestSendMessage_LengthCountsUTF16Units(t *testing.T) {
	st := store.New()
	o := newOrchestrator(st, &fakeBackend{}, &scriptedStreamer{})

	// Each emoji is two UTF-16 units: 6000 runes are 12000 units.
	emoji := strings.Repeat("🌍", 6000)
	_, err := o.SendMessage(context.Background(), emoji, "s1")
	assert.ErrorIs(t, err, ErrMessageTooLong)
	assert.Empty(t, st.Messages())

	assert.Equal(t, MaxMessageLength, utf16Len(strings.Repeat("🌍", MaxMessageLength/2)))
	assert.Equal(t, 3, utf16Len("é🌍"))
}

func TestSendMessage_InitiationFailure(t *testing.T) {
	st := store.New()
	streamer := &scriptedStreamer{err: &stream.InitiationError{Status: 503}}
	o := newOrchestrator(st, &fakeBackend{}, streamer)

	res, err := o.SendMessage(context.Background(), "hi", "s1")
	assert.ErrorIs(t, err, stream.ErrInitiation)
	assert.Equal(t, session.StateFailed, res.State)

	msgs := st.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content, "user message stays")
	assert.Equal(t, ApologyMessage, msgs[1].Content)
	assert.False(t, msgs[1].IsStreaming)
}

func TestSendMessage_MidStreamFailureKeepsPartial(t *testing.T) {
	st := store.New()
	streamer := &scriptedStreamer{deltas: []string{"par", "tial"}, err: errBackend}
	o := newOrchestrator(st, &fakeBackend{}, streamer)

	res, err := o.SendMessage(context.Background(), "hi", "s1")

	var streamErr *stream.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, session.StateFailed, res.State)

	asst, ok := st.Message(res.AssistantMessageID)
	require.True(t, ok)
	assert.Equal(t, "partial", asst.Content, "no apology appended to partial content")
	assert.False(t, asst.IsStreaming)
}

func TestSendMessage_NewSession(t *testing.T) {
	st := store.New()
	be := &fakeBackend{
		listSessions: func() (*api.SessionList, error) {
			return &api.SessionList{Sessions: []api.SessionResponse{
				{SessionID: "new-1", Title: "hi", Status: "ACTIVE"},
			}}, nil
		},
	}
	streamer := &scriptedStreamer{
		meta:   stream.Metadata{SessionID: "new-1", UserMessageID: "1"},
		deltas: []string{"hello"},
	}
	o := newOrchestrator(st, be, streamer)

	res, err := o.SendMessage(context.Background(), "hi", "")
	require.NoError(t, err)

	assert.True(t, res.NewSession)
	assert.Equal(t, "new-1", res.SessionID)
	assert.Equal(t, 1, be.count("list_sessions"))
	assert.Equal(t, "new-1", st.Current(), "view follows the created session")

	for _, m := range st.Messages() {
		assert.Equal(t, "new-1", m.SessionID)
	}
	sess, ok := st.Session("new-1")
	require.True(t, ok)
	assert.Equal(t, "hi", sess.Title)
}

func TestSendMessage_NoSessionRefreshesEvenWithoutMetadata(t *testing.T) {
	st := store.New()
	be := &fakeBackend{}
	o := newOrchestrator(st, be, &scriptedStreamer{deltas: []string{"x"}})

	_, err := o.SendMessage(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, 1, be.count("list_sessions"))
}

func TestSendMessage_ServerIDCollisionNotAdopted(t *testing.T) {
	st := store.New()
	require.NoError(t, st.AppendMessage(model.Message{ID: "101", Role: model.RoleUser, Content: "older"}))
	streamer := &scriptedStreamer{meta: stream.Metadata{UserMessageID: "101", AssistantMessageID: "102"}}
	o := newOrchestrator(st, &fakeBackend{}, streamer)

	res, err := o.SendMessage(context.Background(), "hi", "s1")
	require.NoError(t, err)

	assert.Equal(t, "tmp-user-1", res.UserMessageID)
	assert.Equal(t, "102", res.AssistantMessageID)
	assert.Equal(t, []string{"101", "tmp-user-1", "102"}, messageIDs(st.Messages()))
}

func TestSendMessage_Cancel(t *testing.T) {
	st := store.New()
	streamer := &scriptedStreamer{deltas: []string{"partial"}, block: true}
	o := newOrchestrator(st, &fakeBackend{}, streamer)

	streamer.afterDelta = func(int) {
		assert.True(t, o.Busy("s1"))
		assert.True(t, o.CancelTurn("s1"))
	}

	res, err := o.SendMessage(context.Background(), "hi", "s1")
	require.NoError(t, err)
	assert.Equal(t, session.StateCancelled, res.State)

	asst, _ := st.Message(res.AssistantMessageID)
	assert.Equal(t, "partial", asst.Content)
	assert.False(t, asst.IsStreaming)
	assert.False(t, o.Busy("s1"))
}

func TestSendMessage_ConcurrentSessionsStayApart(t *testing.T) {
	st := store.New()
	o := New(st, &fakeBackend{}, func() Streamer {
		return &scriptedStreamer{deltas: []string{"a", "b", "c"}}
	})

	results := make(chan TurnResult, 2)
	for _, sid := range []string{"s1", "s2"} {
		go func(sid string) {
			res, err := o.SendMessage(context.Background(), "q-"+sid, sid)
			assert.NoError(t, err)
			results <- res
		}(sid)
	}
	for i := 0; i < 2; i++ {
		res := <-results
		asst, ok := st.Message(res.AssistantMessageID)
		require.True(t, ok)
		assert.Equal(t, "abc", asst.Content)
	}
	assert.Len(t, st.Messages(), 4)
}

// =============================================================================
// SINGLE-RESPONSE SEND
// =============================================================================

func TestSendMessage_NonStreaming(t *testing.T) {
	st := store.New()
	be := &fakeBackend{
		chat: func(sessionID, message string) (*api.ChatResponse, error) {
			return &api.ChatResponse{
				SessionID:          "new-9",
				UserMessageID:      "50",
				AssistantMessageID: "51",
				AssistantMessage:   "full reply",
				IsNewSession:       true,
			}, nil
		},
	}
	o := newOrchestrator(st, be, &scriptedStreamer{}, WithStreaming(false))

	res, err := o.SendMessage(context.Background(), "hi", "")
	require.NoError(t, err)

	assert.Equal(t, session.StateSettled, res.State)
	assert.True(t, res.NewSession)
	assert.Equal(t, 1, be.count("chat"))
	assert.Equal(t, 1, be.count("list_sessions"))

	asst, ok := st.Message("51")
	require.True(t, ok)
	assert.Equal(t, "full reply", asst.Content)
	assert.False(t, asst.IsStreaming)
	assert.Equal(t, "new-9", asst.SessionID)
}

func TestSendMessage_NonStreamingFailure(t *testing.T) {
	st := store.New()
	be := &fakeBackend{
		chat: func(string, string) (*api.ChatResponse, error) { return nil, errBackend },
	}
	o := newOrchestrator(st, be, &scriptedStreamer{}, WithStreaming(false))

	res, err := o.SendMessage(context.Background(), "hi", "s1")
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, session.StateFailed, res.State)

	asst, _ := st.Message(res.AssistantMessageID)
	assert.Equal(t, ApologyMessage, asst.Content)
	assert.False(t, asst.IsStreaming)
}

func messageIDs(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
