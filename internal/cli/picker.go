// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// picker.go - Full-screen session picker.
package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/g4chat/internal/model"
)

// sessionItem adapts model.Session to list.Item.
type sessionItem struct {
	session model.Session
	project string
}

func (i sessionItem) Title() string {
	if i.project != "" {
		return "[" + i.project + "] " + i.session.DisplayTitle()
	}
	return i.session.DisplayTitle()
}

func (i sessionItem) Description() string {
	desc := fmt.Sprintf("#%s  %s  %d messages", i.session.ID, i.session.Status, i.session.MessageCount)
	if i.session.IsPublic {
		desc += "  public"
	}
	return desc
}

func (i sessionItem) FilterValue() string {
	return i.project + " " + i.session.Title
}

// pickerModel lets the user choose one session. Enter chooses; esc, q and
// ctrl+c cancel.
type pickerModel struct {
	list     list.Model
	chosen   string
	quitting bool
}

func newPickerModel(sessions []model.Session, projects map[string]string, current string) pickerModel {
	items := make([]list.Item, len(sessions))
	selected := 0
	for i, s := range sessions {
		items[i] = sessionItem{session: s, project: projects[s.ID]}
		if s.ID == current {
			selected = i
		}
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Sessions"
	l.SetShowStatusBar(true)
	l.Select(selected)
	return pickerModel{list: l}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		// While filtering, keys belong to the filter input.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if item, ok := m.list.SelectedItem().(sessionItem); ok {
				m.chosen = item.session.ID
			}
			m.quitting = true
			return m, tea.Quit
		case "esc", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View()
}

// pickSession runs the picker on the terminal and returns the chosen id, or
// "" when cancelled.
func pickSession(in io.Reader, out io.Writer, sessions []model.Session, projects map[string]string, current string) (string, error) {
	if len(sessions) == 0 {
		return "", nil
	}
	if err := RequiresTTY("sessions pick"); err != nil {
		return "", err
	}
	p := tea.NewProgram(
		newPickerModel(sessions, projects, current),
		tea.WithAltScreen(),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("session picker: %w", err)
	}
	return final.(pickerModel).chosen, nil
}
