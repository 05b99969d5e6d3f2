// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/g4chat/internal/model"
	"github.com/jeranaias/g4chat/internal/store"
)

// =============================================================================
// STREAM PRINTER
// =============================================================================

func appendDelta(st *store.Store, id, delta string) {
	st.UpdateMessage(id, func(m model.Message) store.MessagePatch {
		return store.MessagePatch{Content: store.Ptr(m.Content + delta)}
	})
}

func TestStreamPrinter_PrintsDeltas(t *testing.T) {
	st := store.New()
	var buf bytes.Buffer
	p := newStreamPrinter(st, &buf)

	require.NoError(t, st.AppendMessage(model.Message{ID: "u1", Role: model.RoleUser, Content: "hi"}))
	require.NoError(t, st.AppendMessage(model.Message{ID: "a1", Role: model.RoleAssistant, IsStreaming: true}))

	appendDelta(st, "a1", "Hel")
	appendDelta(st, "a1", "lo")
	assert.Equal(t, "Hello", buf.String())
	assert.Equal(t, "Hello", p.Printed())

	st.PatchMessage("a1", store.MessagePatch{IsStreaming: store.Ptr(false)})
	assert.Equal(t, "Hello\n", buf.String())

	// Later edits of the finished reply are not echoed.
	appendDelta(st, "a1", "!")
	p.Stop()
	assert.Equal(t, "Hello\n", buf.String())
}

func TestStreamPrinter_IgnoresSettledMessages(t *testing.T) {
	st := store.New()
	var buf bytes.Buffer
	p := newStreamPrinter(st, &buf)
	defer p.Stop()

	require.NoError(t, st.AppendMessage(model.Message{ID: "a0", Role: model.RoleAssistant, Content: "old"}))
	appendDelta(st, "a0", " reply")
	assert.Empty(t, buf.String())
}

func TestStreamPrinter_ReprintsRewrittenContent(t *testing.T) {
	st := store.New()
	var buf bytes.Buffer
	p := newStreamPrinter(st, &buf)

	require.NoError(t, st.AppendMessage(model.Message{ID: "a1", Role: model.RoleAssistant, IsStreaming: true}))
	appendDelta(st, "a1", "partial")
	st.PatchMessage("a1", store.MessagePatch{Content: store.Ptr("replaced")})
	p.Stop()

	assert.Equal(t, "partial\nreplaced\n", buf.String())
}

func TestStreamPrinter_StopWithoutReply(t *testing.T) {
	st := store.New()
	var buf bytes.Buffer
	p := newStreamPrinter(st, &buf)
	p.Stop()
	assert.Empty(t, buf.String())

	// Detached: nothing is printed after Stop.
	require.NoError(t, st.AppendMessage(model.Message{ID: "a1", Role: model.RoleAssistant, IsStreaming: true}))
	appendDelta(st, "a1", "late")
	assert.Empty(t, buf.String())
}

// =============================================================================
// TABLES AND TRANSCRIPTS
// =============================================================================

func TestPrintSessionTable(t *testing.T) {
	ForceColorsEnabled(false)
	sessions := []model.Session{
		{ID: "77", Title: "Trip planning", Status: model.StatusActive, MessageCount: 4},
		{ID: "78", Title: "Recipes", Status: model.StatusPaused, IsPublic: true},
	}
	var buf bytes.Buffer
	printSessionTable(&buf, sessions, "78", map[string]string{"77": "travel"})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "  77 "), lines[0])
	assert.Contains(t, lines[0], "ACTIVE")
	assert.Contains(t, lines[0], "[travel] Trip planning")
	assert.True(t, strings.HasPrefix(lines[1], "* 78 "), lines[1])
	assert.Contains(t, lines[1], "Recipes (public)")
}

func TestPrintSessionTable_Empty(t *testing.T) {
	ForceColorsEnabled(false)
	var buf bytes.Buffer
	printSessionTable(&buf, nil, "", nil)
	assert.Equal(t, "No sessions.\n", buf.String())
}

func TestPadStatus(t *testing.T) {
	ForceColorsEnabled(false)
	assert.Equal(t, "PAUSED   ", padStatus(model.StatusPaused))
	assert.Equal(t, "ARCHIVED ", padStatus(model.StatusArchived))
}

func TestPrintTranscript(t *testing.T) {
	ForceColorsEnabled(false)
	msgs := []model.Message{
		{ID: "1", Role: model.RoleUser, Content: "Where to go?"},
		{ID: "2", Role: model.RoleAssistant, Content: "Lisbon.", IsEdited: true},
	}
	var buf bytes.Buffer
	printTranscript(&buf, msgs)

	out := buf.String()
	assert.Contains(t, out, "You #1\nWhere to go?\n")
	assert.Contains(t, out, "Assistant #2 edited\nLisbon.\n")
}

func TestPrintTranscript_Empty(t *testing.T) {
	ForceColorsEnabled(false)
	var buf bytes.Buffer
	printTranscript(&buf, nil)
	assert.Equal(t, "(no messages)\n", buf.String())
}

func TestDisplayReply_PlainWhenPiped(t *testing.T) {
	var buf bytes.Buffer
	displayReply(&buf, "# Title\n\nbody")
	assert.Equal(t, "# Title\n\nbody\n", buf.String())
}

func TestHighlightCode(t *testing.T) {
	out := highlightCode("package main\n", "go")
	assert.Contains(t, out, "package")
	assert.Contains(t, out, "\x1b[")
}

func TestLastAssistant(t *testing.T) {
	msgs := []model.Message{
		{ID: "1", Role: model.RoleUser},
		{ID: "2", Role: model.RoleAssistant},
		{ID: "3", Role: model.RoleUser},
	}
	m, ok := lastAssistant(msgs)
	require.True(t, ok)
	assert.Equal(t, "2", m.ID)

	_, ok = lastAssistant(msgs[:1])
	assert.False(t, ok)
}
