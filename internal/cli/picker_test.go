// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/g4chat/internal/model"
)

func pickerSessions() []model.Session {
	return []model.Session{
		{ID: "77", Title: "Trip planning", Status: model.StatusActive, MessageCount: 4},
		{ID: "78", Title: "Recipes", Status: model.StatusPaused, IsPublic: true},
	}
}

func sizedPicker(t *testing.T, current string) pickerModel {
	t.Helper()
	m := newPickerModel(pickerSessions(), map[string]string{"78": "cooking"}, current)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(pickerModel)
}

func TestSessionItem(t *testing.T) {
	item := sessionItem{session: pickerSessions()[1], project: "cooking"}
	assert.Equal(t, "[cooking] Recipes", item.Title())
	assert.Equal(t, "#78  PAUSED  0 messages  public", item.Description())
	assert.Contains(t, item.FilterValue(), "cooking")
	assert.Contains(t, item.FilterValue(), "Recipes")

	untitled := sessionItem{session: model.Session{ID: "1"}}
	assert.Equal(t, model.DefaultTitle, untitled.Title())
}

func TestPicker_EnterChoosesCurrent(t *testing.T) {
	m := sizedPicker(t, "78")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	got := next.(pickerModel)
	assert.Equal(t, "78", got.chosen)
	assert.True(t, got.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, got.View())
}

func TestPicker_EscCancels(t *testing.T) {
	m := sizedPicker(t, "77")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	got := next.(pickerModel)
	assert.Empty(t, got.chosen)
	assert.True(t, got.quitting)
	require.NotNil(t, cmd)
}

func TestPicker_QWhileFilteringIsText(t *testing.T) {
	m := sizedPicker(t, "77")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	m = next.(pickerModel)
	require.Equal(t, list.Filtering, m.list.FilterState())

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(pickerModel)
	assert.False(t, m.quitting)
	assert.Equal(t, "q", m.list.FilterValue())
}

func TestPickSession_Empty(t *testing.T) {
	id, err := pickSession(nil, nil, nil, nil, "")
	require.NoError(t, err)
	assert.Empty(t, id)
}
