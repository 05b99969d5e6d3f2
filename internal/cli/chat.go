// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat.
//
// A line-editing prompt with history. Plain lines are sent to the open
// session (or start a new one); lines starting with "/" are commands.
// Ctrl+C while a reply is streaming stops the reply; at the prompt it exits.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/g4chat/internal/chat"
	"github.com/jeranaias/g4chat/internal/config"
	"github.com/jeranaias/g4chat/internal/export"
	"github.com/jeranaias/g4chat/internal/model"
	"github.com/jeranaias/g4chat/internal/session"
)

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader provides input history and line editing.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &lineReader{
		line:        line,
		historyFile: filepath.Join(config.ConfigDir(), "chat_history"),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// ReadInput reads a line. Non-empty lines are added to the history.
func (r *lineReader) ReadInput(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history (owner-only) and restores the terminal.
func (r *lineReader) Close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

func newChatCommand(o *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, o, sessionID)
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "open this session")
	cmd.Flags().Bool("no-stream", false, "wait for whole replies instead of streaming")
	return cmd
}

// chatSession is the state of one interactive run.
type chatSession struct {
	o     *rootOptions
	app   *App
	out   io.Writer
	errW  io.Writer
	input *lineReader
}

func runChat(cmd *cobra.Command, o *rootOptions, sessionID string) error {
	if o.jsonMode {
		return NewValidationError("json", "true", "chat is interactive; use 'g4chat send' for JSON output")
	}
	a := o.app
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	stopBackground := a.StartBackground(ctx)
	defer stopBackground()

	c := &chatSession{o: o, app: a, out: a.out, errW: a.errOut}

	if err := a.Chat.RefreshSessions(ctx); err != nil {
		c.warn(err)
	}
	if sessionID != "" {
		if err := c.open(ctx, sessionID); err != nil {
			return err
		}
	}
	c.printWelcome()

	// Ctrl+C outside the prompt stops the reply in progress.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigChan:
				if n := a.Tracker.CancelAll(); n > 0 {
					a.Logger.Debug("turns cancelled", zap.Int("count", n))
				}
			}
		}
	}()

	c.input = newLineReader()
	defer c.input.Close()

	for {
		input, err := c.input.ReadInput(RenderConditional(PromptStyle, "g4chat> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed stdin.
			fmt.Fprintln(c.out)
			c.printExitSummary()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keepGoing, err := c.handleSlashCommand(ctx, input)
			if err != nil {
				c.printError(err)
			}
			if !keepGoing {
				c.printExitSummary()
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			c.printExitSummary()
			return nil
		}

		if err := c.send(ctx, input); err != nil {
			c.printError(err)
		}
	}
}

// send runs one turn in the open session.
func (c *chatSession) send(ctx context.Context, text string) error {
	cur := c.app.Store.Current()
	if c.app.Chat.Busy(cur) {
		return session.ErrTurnInFlight
	}
	fmt.Fprintln(c.out, RenderRole(model.RoleAssistant))
	res, _, err := sendOne(ctx, c.app, text, cur)
	if cur == "" && res.SessionID != "" {
		fmt.Fprintln(c.errW, RenderConditional(DimStyle, "session "+res.SessionID))
	}
	return err
}

func (c *chatSession) open(ctx context.Context, id string) error {
	sess, err := c.app.Chat.SelectSession(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, RenderConditional(TitleStyle, sess.DisplayTitle()))
	printTranscript(c.out, c.app.Store.Messages())
	return nil
}

// current returns the open session id, or ErrNoSession.
func (c *chatSession) current() (string, error) {
	cur := c.app.Store.Current()
	if cur == "" {
		return "", chat.ErrNoSession
	}
	return cur, nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (keepGoing, error) where keepGoing=false means exit.
func (c *chatSession) handleSlashCommand(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true, nil
	}
	command := strings.ToLower(parts[0])
	args := parts[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
	a := c.app

	switch command {
	case "/help", "/h", "/?", "/":
		c.printHelp()
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new", "/n":
		a.Chat.NewSession()
		fmt.Fprintln(c.out, RenderConditional(DimStyle, "[New conversation]"))
		return true, nil

	case "/sessions", "/ls":
		if err := a.Chat.RefreshSessions(ctx); err != nil {
			return true, err
		}
		printSessionTable(c.out, a.Store.Sessions(), a.Store.Current(), a.State.Projects())
		return true, nil

	case "/open", "/o":
		if len(args) != 1 {
			return true, ErrMissingArgument("session id", "/open 42")
		}
		return true, c.open(ctx, args[0])

	case "/pick":
		id, err := pickSession(a.in, c.out, a.Store.Sessions(), a.State.Projects(), a.Store.Current())
		if err != nil || id == "" {
			return true, err
		}
		return true, c.open(ctx, id)

	case "/show", "/transcript":
		printTranscript(c.out, a.Store.Messages())
		return true, nil

	case "/edit", "/edit!":
		if len(args) < 2 {
			return true, ErrMissingArgument("message id and text", "/edit 7 new text")
		}
		text := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		regenerate := command == "/edit!"
		if err := a.Chat.EditMessage(ctx, args[0], text, regenerate); err != nil {
			return true, err
		}
		if regenerate {
			if m, ok := lastAssistant(a.Store.Messages()); ok {
				fmt.Fprintln(c.out, RenderRole(model.RoleAssistant))
				displayReply(c.out, m.Content)
			}
		} else {
			fmt.Fprintln(c.out, RenderConditional(DimStyle, "[Edited locally]"))
		}
		return true, nil

	case "/delete", "/del":
		if len(args) != 1 {
			return true, ErrMissingArgument("message id", "/delete 7")
		}
		if err := a.Chat.DeleteMessage(ctx, args[0]); err != nil {
			return true, err
		}
		fmt.Fprintln(c.out, RenderConditional(DimStyle, "[Deleted message "+args[0]+"]"))
		return true, nil

	case "/regen", "/regenerate":
		if err := a.Chat.RegenerateResponse(ctx, ""); err != nil {
			return true, err
		}
		if m, ok := lastAssistant(a.Store.Messages()); ok {
			fmt.Fprintln(c.out, RenderRole(model.RoleAssistant))
			displayReply(c.out, m.Content)
		}
		return true, nil

	case "/rename":
		cur, err := c.current()
		if err != nil {
			return true, err
		}
		return true, a.Chat.RenameSession(ctx, cur, rest)

	case "/archive", "/pause", "/activate":
		cur, err := c.current()
		if err != nil {
			return true, err
		}
		switch command {
		case "/archive":
			err = a.Chat.ArchiveSession(ctx, cur)
		case "/pause":
			err = a.Chat.PauseSession(ctx, cur)
		default:
			err = a.Chat.ActivateSession(ctx, cur)
		}
		if err == nil {
			if s, ok := a.Store.Session(cur); ok {
				fmt.Fprintf(c.out, "[%s]\n", RenderStatus(s.Status))
			}
		}
		return true, err

	case "/public":
		cur, err := c.current()
		if err != nil {
			return true, err
		}
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return true, ErrMissingArgument("on|off", "/public on")
		}
		return true, a.Chat.ToggleVisibility(ctx, cur, args[0] == "on")

	case "/project":
		cur, err := c.current()
		if err != nil {
			return true, err
		}
		if rest == "" {
			if p, ok := a.State.Project(cur); ok {
				fmt.Fprintln(c.out, p)
			}
			return true, nil
		}
		return true, a.State.LinkProject(cur, rest)

	case "/status":
		c.printStatus()
		return true, nil

	case "/export":
		cur, err := c.current()
		if err != nil {
			return true, err
		}
		format := "md"
		if len(args) > 0 {
			format = args[0]
		}
		exp, err := export.ForFormat(format, nil)
		if err != nil {
			return true, err
		}
		sess, _ := a.Store.Session(cur)
		if sess.ID == "" {
			sess.ID = cur
		}
		project, _ := a.State.Project(cur)
		path, err := export.ToFile(&export.Transcript{Session: sess, Messages: a.Store.Messages(), Project: project}, exp, nil)
		if err != nil {
			return true, err
		}
		fmt.Fprintf(c.out, "%s %s\n", RenderConditional(SuccessStyle, "Exported"), path)
		return true, nil

	default:
		if hint := SuggestSlashCommand(command); hint != "" {
			return true, fmt.Errorf("unknown command: %s (did you mean %s?)", command, hint)
		}
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

func (c *chatSession) printWelcome() {
	fmt.Fprintf(c.out, "%s %s\n", RenderConditional(TitleStyle, "g4chat"), RenderConditional(DimStyle, Version))
	fmt.Fprintf(c.out, "%s\n", RenderConditional(DimStyle, "Backend "+c.app.Client.BaseURL()))
	if !c.app.State.HasToken() {
		fmt.Fprintln(c.out, RenderConditional(WarningStyle, "No token stored. Run 'g4chat token set' first."))
	}
	fmt.Fprintln(c.out, RenderConditional(DimStyle, "Type /help for commands, Ctrl+C to stop a reply."))
	fmt.Fprintln(c.out)
}

func (c *chatSession) printHelp() {
	rows := [][2]string{
		{"/new", "start a new conversation"},
		{"/sessions", "list sessions"},
		{"/open <id>", "open a session"},
		{"/pick", "choose a session interactively"},
		{"/show", "print the open transcript"},
		{"/edit <id> <text>", "edit a message locally"},
		{"/edit! <id> <text>", "edit on the backend and regenerate"},
		{"/delete <id>", "delete a message"},
		{"/regen", "regenerate the last reply"},
		{"/rename <title>", "rename the open session"},
		{"/archive, /pause, /activate", "change the open session's status"},
		{"/public on|off", "share or unshare the open session"},
		{"/project [name]", "show or set the open session's project"},
		{"/status", "show what is open"},
		{"/export [md|json|html]", "write the open transcript to a file"},
		{"/quit", "exit"},
	}
	for _, r := range rows {
		fmt.Fprintf(c.out, "  %-30s %s\n", r[0], RenderConditional(DimStyle, r[1]))
	}
}

func (c *chatSession) printStatus() {
	a := c.app
	cur := a.Store.Current()
	if cur == "" {
		fmt.Fprintf(c.out, "%s%s\n", RenderLabel("Session"), "(new conversation)")
	} else if s, ok := a.Store.Session(cur); ok {
		fmt.Fprintf(c.out, "%s%s (#%s, %s)\n", RenderLabel("Session"), s.DisplayTitle(), s.ID, RenderStatus(s.Status))
	} else {
		fmt.Fprintf(c.out, "%s#%s\n", RenderLabel("Session"), cur)
	}
	fmt.Fprintf(c.out, "%s%d\n", RenderLabel("Messages"), len(a.Store.Messages()))
	fmt.Fprintf(c.out, "%s%s\n", RenderLabel("Turn"), a.Chat.TurnState(cur))
	fmt.Fprintf(c.out, "%s%s\n", RenderLabel("Token"), a.Client.CredentialFingerprint())
}

func (c *chatSession) printExitSummary() {
	if cur := c.app.Store.Current(); cur != "" {
		fmt.Fprintln(c.out, RenderConditional(DimStyle, "Resume with: g4chat chat --session "+cur))
	}
}

func (c *chatSession) printError(err error) {
	fmt.Fprintf(c.errW, "%s %v\n", RenderConditional(ErrorStyle, "[Error]"), err)
}

func (c *chatSession) warn(err error) {
	c.app.Logger.Debug("startup refresh failed", zap.Error(err))
	fmt.Fprintf(c.errW, "%s %v\n", RenderConditional(WarningStyle, "[Warning]"), err)
}
