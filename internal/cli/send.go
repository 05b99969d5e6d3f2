// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/jeranaias/g4chat/internal/chat"
	"github.com/jeranaias/g4chat/internal/model"
	"github.com/jeranaias/g4chat/internal/session"
)

// =============================================================================
// SEND COMMAND
// =============================================================================

func newSendCommand(o *rootOptions) *cobra.Command {
	var (
		sessionID string
		project   string
	)

	cmd := &cobra.Command{
		Use:   "send [message...]",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the reply as it arrives.

Without --session a new conversation is started. With no message
arguments the message is read from stdin. Ctrl+C stops the reply and
keeps what arrived.`,
		Example: `  g4chat send "What is a goroutine?"
  g4chat send --session 42 "And a channel?"
  git diff | g4chat send --no-stream`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := messageText(args, o.app.in)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, reply, err := sendOne(ctx, o.app, text, sessionID)
			if project != "" && res.SessionID != "" {
				if lerr := o.app.State.LinkProject(res.SessionID, project); lerr != nil {
					o.app.Logger.Warn("link project failed", zap.String("session_id", res.SessionID), zap.Error(lerr))
				}
			}
			if o.jsonMode {
				if err != nil {
					return err
				}
				return NewJSONResponse("send", SendResult{
					SessionID:          res.SessionID,
					UserMessageID:      res.UserMessageID,
					AssistantMessageID: res.AssistantMessageID,
					NewSession:         res.NewSession,
					State:              res.State.String(),
					Deltas:             res.Deltas,
					Reply:              reply,
					ElapsedMs:          res.Elapsed.Milliseconds(),
				}).Write(o.app.out)
			}
			if res.NewSession || (sessionID == "" && res.SessionID != "") {
				fmt.Fprintln(o.app.errOut, RenderConditional(DimStyle, "session "+res.SessionID))
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "continue this session")
	cmd.Flags().Bool("no-stream", false, "wait for the whole reply instead of streaming")
	cmd.Flags().StringVarP(&project, "project", "p", "", "link the session to a project")
	return cmd
}

// messageText joins args, or reads stdin when there are none.
func messageText(args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", ErrMissingArgument("message", `g4chat send "hello"`)
	}
	data, err := io.ReadAll(io.LimitReader(in, int64(chat.MaxMessageLength)*4+1))
	if err != nil {
		return "", fmt.Errorf("read message: %w", err)
	}
	return string(data), nil
}

// sendOne runs a turn and writes the reply to the app's output. Streamed
// replies are printed as they arrive; a single response is printed when it
// lands. The final reply text is returned.
func sendOne(ctx context.Context, app *App, text, sessionID string) (chat.TurnResult, string, error) {
	var printer *streamPrinter
	if !app.jsonMode && app.Config.Chat.Streaming {
		printer = newStreamPrinter(app.Store, app.out)
	}

	res, err := app.Chat.SendMessage(ctx, text, sessionID)
	if printer != nil {
		printer.Stop()
	}

	reply := ""
	if res.AssistantMessageID != "" {
		if m, ok := app.Store.Message(res.AssistantMessageID); ok {
			reply = m.Content
		}
	}
	if printer == nil && !app.jsonMode && reply != "" {
		displayReply(app.out, reply)
	}
	if res.State == session.StateCancelled && !app.jsonMode {
		fmt.Fprintln(app.errOut, RenderConditional(WarningStyle, "(stopped)"))
	}
	return res, reply, err
}

// lastAssistant returns the last assistant message in msgs.
func lastAssistant(msgs []model.Message) (model.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role.IsAssistant() {
			return msgs[i], true
		}
	}
	return model.Message{}, false
}
