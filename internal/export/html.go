// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jeranaias/g4chat/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports transcripts to a standalone HTML page with embedded
// CSS. Message bodies are rendered from Markdown and sanitized, so content
// from the backend cannot inject markup or script.
type HTMLExporter struct {
	options  *Options
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")
	return &HTMLExporter{
		options:  opts,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:   policy,
	}
}

// Export converts a transcript to HTML.
func (e *HTMLExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(t.Title()))
	sb.WriteString("    <meta name=\"generator\" content=\"g4chat\">\n")
	if !t.Session.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", t.Session.CreatedAt.Format(time.RFC3339))
	}
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		e.renderHeader(&sb, t)
	} else {
		fmt.Fprintf(&sb, "        <header class=\"header\"><h1>%s</h1></header>\n", html.EscapeString(t.Title()))
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for i := range t.Messages {
		if err := e.renderMessage(&sb, &t.Messages[i]); err != nil {
			return nil, err
		}
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            Exported from g4chat on %s\n",
		html.EscapeString(e.options.now().Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(sb *strings.Builder, t *Transcript) {
	s := t.Session
	item := func(label, value string) {
		fmt.Fprintf(sb, "                <span class=\"meta-item\"><strong>%s:</strong> %s</span>\n",
			label, html.EscapeString(value))
	}

	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(sb, "            <h1>%s</h1>\n", html.EscapeString(t.Title()))
	sb.WriteString("            <div class=\"metadata\">\n")
	item("Session", s.ID)
	item("Status", s.Status.String())
	if s.Model != "" {
		item("Model", s.Model)
	}
	if t.Project != "" {
		item("Project", t.Project)
	}
	if !s.CreatedAt.IsZero() {
		item("Created", formatTimestamp(s.CreatedAt))
	}
	item("Messages", fmt.Sprint(len(t.Messages)))
	if s.TokenUsage > 0 {
		item("Tokens", fmt.Sprint(s.TokenUsage))
	}
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")
}

func (e *HTMLExporter) renderMessage(sb *strings.Builder, m *model.Message) error {
	body, err := e.renderContent(m.Content)
	if err != nil {
		return fmt.Errorf("render message %s: %w", m.ID, err)
	}

	roleClass := strings.ToLower(m.Role.String())
	fmt.Fprintf(sb, "            <div class=\"message %s-message\" id=\"m-%s\">\n", html.EscapeString(roleClass), html.EscapeString(m.ID))
	sb.WriteString("                <div class=\"message-header\">\n")
	fmt.Fprintf(sb, "                    <span class=\"role-label\">%s</span>\n", html.EscapeString(roleLabel(m.Role)))
	if m.IsEdited {
		sb.WriteString("                    <span class=\"edited\">edited</span>\n")
	}
	if e.options.IncludeTimestamps && !m.Timestamp.IsZero() {
		fmt.Fprintf(sb, "                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(m.Timestamp))
	}
	sb.WriteString("                </div>\n")
	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(body)
	sb.WriteString("                </div>\n")
	if m.Role.IsAssistant() && e.options.IncludeMetadata && m.TokenCount > 0 {
		fmt.Fprintf(sb, "                <div class=\"message-stats\"><span class=\"stat\">Tokens: %d</span></div>\n", m.TokenCount)
	}
	sb.WriteString("            </div>\n")
	return nil
}

// renderContent turns Markdown into sanitized HTML.
func (e *HTMLExporter) renderContent(content string) (string, error) {
	var buf bytes.Buffer
	if err := e.markdown.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return e.policy.Sanitize(buf.String()), nil
}

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            --font-mono: "SF Mono", "Monaco", "Inconsolata", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --bg-tertiary: #414868;
            --text-primary: #c0caf5;
            --text-secondary: #a9b1d6;
            --text-muted: #565f89;
            --border-color: #414868;
            --user-bg: #1f2335;
            --assistant-bg: #24283b;
            --code-bg: #1a1b26;
            --accent-blue: #7aa2f7;
            --accent-green: #9ece6a;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --bg-tertiary: #e1e4e8;
            --text-primary: #24292e;
            --text-secondary: #586069;
            --text-muted: #6a737d;
            --border-color: #e1e4e8;
            --user-bg: #f6f8fa;
            --assistant-bg: #ffffff;
            --code-bg: #f6f8fa;
            --accent-blue: #0366d6;
            --accent-green: #22863a;
        }

        body {
            font-family: var(--font-sans);
            font-size: 16px;
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container {
            max-width: 900px;
            margin: 0 auto;
            background: var(--bg-secondary);
            border-radius: 12px;
            overflow: hidden;
        }

        .header { padding: 32px; background: var(--bg-tertiary); border-bottom: 2px solid var(--border-color); }
        .header h1 { font-size: 28px; margin-bottom: 16px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; color: var(--text-secondary); }

        .conversation { padding: 24px 32px; }
        .message { margin-bottom: 24px; padding: 16px 20px; border-radius: 8px; border: 1px solid var(--border-color); }
        .user-message { background: var(--user-bg); border-left: 4px solid var(--accent-blue); }
        .assistant-message { background: var(--assistant-bg); border-left: 4px solid var(--accent-green); }
        .message-header { display: flex; gap: 12px; margin-bottom: 8px; font-size: 14px; }
        .role-label { font-weight: 600; }
        .timestamp, .edited, .message-stats { color: var(--text-muted); font-size: 13px; }
        .message-content p { margin-bottom: 12px; }
        .message-content pre { background: var(--code-bg); padding: 12px; border-radius: 6px; overflow-x: auto; }
        .message-content code { font-family: var(--font-mono); font-size: 14px; }
        .message-content table { border-collapse: collapse; margin-bottom: 12px; }
        .message-content th, .message-content td { border: 1px solid var(--border-color); padding: 4px 8px; }

        .footer { padding: 16px 32px; font-size: 13px; color: var(--text-muted); border-top: 1px solid var(--border-color); }
    </style>
`
