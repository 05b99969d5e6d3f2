// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Output rendering: live reply printing, markdown, transcripts
// and session tables.
package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/g4chat/internal/model"
	"github.com/jeranaias/g4chat/internal/store"
	"github.com/jeranaias/g4chat/internal/util"
)

// =============================================================================
// LIVE REPLY PRINTER
// =============================================================================

// streamPrinter writes the assistant reply of the current turn as the store
// fills it in. It follows the first streaming assistant message appended
// after it starts and stops once that message stops streaming.
type streamPrinter struct {
	store *store.Store
	w     io.Writer

	mu       sync.Mutex
	target   string
	shown    string
	finished bool
	done     chan struct{}

	unsubscribe func()
}

func newStreamPrinter(st *store.Store, w io.Writer) *streamPrinter {
	p := &streamPrinter{store: st, w: w, done: make(chan struct{})}
	p.unsubscribe = st.Subscribe(p.observe)
	return p
}

func (p *streamPrinter) observe(c store.Change) {
	switch c.Kind {
	case store.MessageAppended:
		m, ok := p.store.Message(c.ID)
		if !ok || !m.Role.IsAssistant() || !m.IsStreaming {
			return
		}
		p.mu.Lock()
		if p.target == "" && !p.finished {
			p.target = c.ID
			p.shown = ""
		}
		p.mu.Unlock()

	case store.MessageUpdated:
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.finished || c.ID != p.target {
			return
		}
		m, ok := p.store.Message(c.ID)
		if !ok {
			return
		}
		if strings.HasPrefix(m.Content, p.shown) {
			fmt.Fprint(p.w, m.Content[len(p.shown):])
		} else {
			fmt.Fprint(p.w, "\n"+m.Content)
		}
		p.shown = m.Content
		if !m.IsStreaming {
			p.finishLocked()
		}
	}
}

func (p *streamPrinter) finishLocked() {
	if p.finished {
		return
	}
	p.finished = true
	if p.shown != "" && !strings.HasSuffix(p.shown, "\n") {
		fmt.Fprintln(p.w)
	}
	close(p.done)
}

// Printed returns what has been written so far.
func (p *streamPrinter) Printed() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shown
}

// Stop detaches the printer from the store.
func (p *streamPrinter) Stop() {
	p.unsubscribe()
	p.mu.Lock()
	if !p.finished && p.target != "" {
		p.finishLocked()
	}
	p.mu.Unlock()
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer is the glamour renderer for replies shown on a terminal.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown for terminal display.
// Returns the original content if rendering fails or renderer is unavailable.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayReply writes a finished reply, rendered only when w is a terminal
// so piped output stays plain.
func displayReply(w io.Writer, content string) {
	if isTerminalWriter(w) && ColorsEnabled() {
		fmt.Fprint(w, renderMarkdown(content))
		return
	}
	fmt.Fprint(w, content)
	if !strings.HasSuffix(content, "\n") {
		fmt.Fprintln(w)
	}
}

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// highlightCode colors code for a 256-color terminal. Unknown languages are
// guessed, then fall back to plain text.
func highlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// =============================================================================
// TRANSCRIPTS
// =============================================================================

// printTranscript writes messages in order with a role header per message.
func printTranscript(w io.Writer, msgs []model.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, RenderConditional(DimStyle, "(no messages)"))
		return
	}
	width := GetTerminalWidth()
	for i, m := range msgs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := RenderRole(m.Role)
		meta := "#" + m.ID
		if m.IsEdited {
			meta += " edited"
		}
		if !m.Timestamp.IsZero() {
			meta += " " + m.Timestamp.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s %s\n", header, RenderConditional(DimStyle, meta))
		if m.Role.IsAssistant() {
			displayReply(w, m.Content)
		} else {
			fmt.Fprintln(w, m.Content)
		}
	}
	fmt.Fprintln(w, RenderConditional(SeparatorStyle, RenderSeparator(width)))
}

// =============================================================================
// SESSION TABLES
// =============================================================================

const (
	idColumnWidth     = 8
	statusColumnWidth = 9
	countColumnWidth  = 5
)

// printSessionTable writes one row per session. current is marked.
func printSessionTable(w io.Writer, sessions []model.Session, current string, projects map[string]string) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, RenderConditional(DimStyle, "No sessions."))
		return
	}
	width := GetTerminalWidth()
	titleWidth := width - idColumnWidth - statusColumnWidth - countColumnWidth - 8
	if titleWidth < 10 {
		titleWidth = 10
	}

	for _, s := range sessions {
		marker := " "
		if s.ID == current {
			marker = "*"
		}
		title := s.DisplayTitle()
		if p, ok := projects[s.ID]; ok {
			title = "[" + p + "] " + title
		}
		if s.IsPublic {
			title += " (public)"
		}
		fmt.Fprintf(w, "%s %s %s %s %s\n",
			marker,
			util.PadWidth(util.TruncateWidth(s.ID, idColumnWidth), idColumnWidth),
			padStatus(s.Status),
			fmt.Sprintf("%*d", countColumnWidth, s.MessageCount),
			util.TruncateWidth(title, titleWidth))
	}
}

// padStatus styles a status and pads it by its visible width.
func padStatus(s model.Status) string {
	pad := statusColumnWidth - util.StringWidth(s.String())
	if pad < 0 {
		pad = 0
	}
	return RenderStatus(s) + strings.Repeat(" ", pad)
}

// sessionInfo converts a session for JSON output.
func sessionInfo(s model.Session, project string) SessionInfo {
	return SessionInfo{
		ID:             s.ID,
		Title:          s.Title,
		Status:         s.Status.String(),
		IsPublic:       s.IsPublic,
		MessageCount:   s.MessageCount,
		Model:          s.Model,
		TokenUsage:     s.TokenUsage,
		Project:        project,
		CreatedAt:      formatTime(s.CreatedAt),
		UpdatedAt:      formatTime(s.UpdatedAt),
		LastAccessedAt: formatTime(s.LastAccessedAt),
	}
}

func sessionInfos(sessions []model.Session, projects map[string]string) []SessionInfo {
	out := make([]SessionInfo, len(sessions))
	for i, s := range sessions {
		out[i] = sessionInfo(s, projects[s.ID])
	}
	return out
}

// messageInfos converts messages for JSON output.
func messageInfos(msgs []model.Message) []MessageInfo {
	out := make([]MessageInfo, len(msgs))
	for i, m := range msgs {
		out[i] = MessageInfo{
			ID:         m.ID,
			SessionID:  m.SessionID,
			Role:       m.Role.String(),
			Content:    m.Content,
			Timestamp:  formatTime(m.Timestamp),
			IsEdited:   m.IsEdited,
			TokenCount: m.TokenCount,
			Model:      m.Model,
		}
	}
	return out
}
