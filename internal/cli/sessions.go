// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/g4chat/internal/api"
	"github.com/jeranaias/g4chat/internal/model"
)

// =============================================================================
// SESSIONS COMMAND
// =============================================================================

func newSessionsCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session", "s"},
		Short:   "List and manage conversations",
	}

	cmd.AddCommand(
		newSessionsListCommand(o),
		newSessionsShowCommand(o),
		newSessionsNewCommand(o),
		newSessionsRenameCommand(o),
		newSessionStatusCommand(o, "archive", "Archive a session", func(ctx context.Context, a *App, id string) error {
			return a.Chat.ArchiveSession(ctx, id)
		}),
		newSessionStatusCommand(o, "pause", "Pause a session", func(ctx context.Context, a *App, id string) error {
			return a.Chat.PauseSession(ctx, id)
		}),
		newSessionStatusCommand(o, "activate", "Make a session active again", func(ctx context.Context, a *App, id string) error {
			return a.Chat.ActivateSession(ctx, id)
		}),
		newSessionStatusCommand(o, "share", "Make a session public", func(ctx context.Context, a *App, id string) error {
			return a.Chat.ToggleVisibility(ctx, id, true)
		}),
		newSessionStatusCommand(o, "unshare", "Make a session private", func(ctx context.Context, a *App, id string) error {
			return a.Chat.ToggleVisibility(ctx, id, false)
		}),
		newSessionsDeleteCommand(o),
		newSessionsSearchCommand(o),
		newSessionsPublicCommand(o),
		newSessionsCopyCommand(o),
		newSessionsPickCommand(o),
	)
	return cmd
}

// knownSession fetches a session into the store so local changes to it can
// be rolled back.
func knownSession(ctx context.Context, a *App, id string) (model.Session, error) {
	if s, ok := a.Store.Session(id); ok {
		return s, nil
	}
	s, err := a.Client.GetSession(ctx, id)
	if err != nil {
		return model.Session{}, err
	}
	a.Store.PutSession(s)
	return s, nil
}

// printSession writes one session, as JSON in --json mode.
func printSession(o *rootOptions, command string, s model.Session) error {
	a := o.app
	project, _ := a.State.Project(s.ID)
	return o.emit(a.out, command, sessionInfo(s, project), func() error {
		w := a.out
		fmt.Fprintln(w, RenderConditional(TitleStyle, s.DisplayTitle()))
		fmt.Fprintf(w, "%s%s\n", RenderLabel("ID"), s.ID)
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Status"), RenderStatus(s.Status))
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Visibility"), s.Visibility())
		fmt.Fprintf(w, "%s%d\n", RenderLabel("Messages"), s.MessageCount)
		if project != "" {
			fmt.Fprintf(w, "%s%s\n", RenderLabel("Project"), project)
		}
		if s.Model != "" {
			fmt.Fprintf(w, "%s%s\n", RenderLabel("Model"), s.Model)
		}
		if s.TokenUsage > 0 {
			fmt.Fprintf(w, "%s%d\n", RenderLabel("Tokens"), s.TokenUsage)
		}
		if !s.UpdatedAt.IsZero() {
			fmt.Fprintf(w, "%s%s\n", RenderLabel("Updated"), s.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	})
}

// printSessionList writes sessions, as JSON in --json mode.
func printSessionList(o *rootOptions, command string, sessions []model.Session) error {
	a := o.app
	projects := a.State.Projects()
	return o.emit(a.out, command, sessionInfos(sessions, projects), func() error {
		printSessionTable(a.out, sessions, a.Store.Current(), projects)
		return nil
	})
}

func newSessionsListCommand(o *rootOptions) *cobra.Command {
	var (
		status  string
		active  bool
		project string
		page    int
		size    int
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := o.app

			var sessions []model.Session
			switch {
			case active:
				list, err := a.Client.ActiveSessions(ctx)
				if err != nil {
					return err
				}
				sessions = list
			case status != "" || page > 0 || cmd.Flags().Changed("size"):
				st := model.ParseStatus(status)
				if status != "" && !st.Valid() {
					return &ValidationError{Field: "status", Value: status, Reason: "unknown status", Example: "--status archived"}
				}
				list, err := a.Client.ListSessions(ctx, api.Page{Page: page, Size: size}, st)
				if err != nil {
					return err
				}
				sessions = list.Models()
			default:
				if err := a.Chat.RefreshSessions(ctx); err != nil {
					return err
				}
				sessions = a.Store.Sessions()
				if arch, err := a.Archive(); err == nil {
					if err := arch.SaveSessions(ctx, sessions); err != nil {
						a.Logger.Warn("archive not updated", zap.Error(err))
					}
				}
			}

			if project != "" {
				sessions = filterByProject(sessions, a.State.ProjectSessions(project))
			}
			return printSessionList(o, "sessions list", sessions)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only sessions with this status (active, paused, archived)")
	cmd.Flags().BoolVar(&active, "active", false, "only active sessions")
	cmd.Flags().StringVarP(&project, "project", "p", "", "only sessions linked to this project")
	cmd.Flags().IntVar(&page, "page", 0, "page number, from 0")
	cmd.Flags().IntVar(&size, "size", 0, "page size")
	return cmd
}

func filterByProject(sessions []model.Session, ids []string) []model.Session {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	out := sessions[:0:0]
	for _, s := range sessions {
		if keep[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

func newSessionsShowCommand(o *rootOptions) *cobra.Command {
	var transcript bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			sess, err := a.Chat.SelectSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := archiveOpenSession(cmd.Context(), a, sess); err != nil {
				a.Logger.Warn("archive not updated", zap.String("session_id", sess.ID), zap.Error(err))
			}
			if o.jsonMode {
				project, _ := a.State.Project(sess.ID)
				return NewJSONResponse("sessions show", map[string]any{
					"session":  sessionInfo(sess, project),
					"messages": messageInfos(a.Store.Messages()),
				}).Write(a.out)
			}
			if err := printSession(o, "sessions show", sess); err != nil {
				return err
			}
			if transcript {
				fmt.Fprintln(a.out)
				printTranscript(a.out, a.Store.Messages())
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&transcript, "transcript", "t", true, "print the transcript")
	return cmd
}

func newSessionsNewCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "new [title...]",
		Short: "Create an empty session",
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			if strings.TrimSpace(title) == "" {
				title = model.DefaultTitle
			}
			sess, err := o.app.Chat.CreateSession(cmd.Context(), title)
			if err != nil {
				return err
			}
			return printSession(o, "sessions new", sess)
		},
	}
}

func newSessionsRenameCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title...>",
		Short: "Rename a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := o.app
			id := args[0]
			if _, err := knownSession(ctx, a, id); err != nil {
				return err
			}
			if err := a.Chat.RenameSession(ctx, id, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			sess, _ := a.Store.Session(id)
			return printSession(o, "sessions rename", sess)
		},
	}
}

// newSessionStatusCommand builds the one-argument session changes.
func newSessionStatusCommand(o *rootOptions, use, short string, apply func(context.Context, *App, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := o.app
			id := args[0]
			if _, err := knownSession(ctx, a, id); err != nil {
				return err
			}
			if err := apply(ctx, a, id); err != nil {
				return err
			}
			sess, _ := a.Store.Session(id)
			return printSession(o, "sessions "+use, sess)
		},
	}
}

func newSessionsDeleteCommand(o *rootOptions) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			id := args[0]
			ok, err := RequireConfirmation(a.in, a.errOut, "delete session "+id, ConfirmationOptions{
				ConfirmFlag: confirm,
				JSONMode:    o.jsonMode,
			})
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.errOut, "Cancelled.")
				return nil
			}
			if err := a.Chat.DeleteSession(cmd.Context(), id); err != nil {
				return err
			}
			if _, err := a.State.UnlinkProject(id); err != nil {
				a.Logger.Warn("unlink after delete failed", zap.String("session_id", id), zap.Error(err))
			}
			return o.emit(a.out, "sessions delete", map[string]string{"deleted": id}, func() error {
				fmt.Fprintln(a.out, RenderConditional(SuccessStyle, "Deleted session "+id))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "skip the confirmation prompt")
	return cmd
}

func newSessionsSearchCommand(o *rootOptions) *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search session titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := o.app.Chat.SearchSessions(cmd.Context(), strings.Join(args, " "), api.Page{Page: page, Size: size})
			if err != nil {
				return err
			}
			return printSessionList(o, "sessions search", list.Models())
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page number, from 0")
	cmd.Flags().IntVar(&size, "size", 0, "page size")
	return cmd
}

func newSessionsPublicCommand(o *rootOptions) *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:   "public [id]",
		Short: "List public sessions, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				sess, err := o.app.Client.GetPublicSession(ctx, args[0])
				if err != nil {
					return err
				}
				return printSession(o, "sessions public", sess)
			}
			list, err := o.app.Chat.PublicSessions(ctx, api.Page{Page: page, Size: size})
			if err != nil {
				return err
			}
			return printSessionList(o, "sessions public", list.Models())
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page number, from 0")
	cmd.Flags().IntVar(&size, "size", 0, "page size")
	return cmd
}

func newSessionsCopyCommand(o *rootOptions) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "copy <public-id>",
		Short: "Copy a public session into your sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := o.app.Chat.CopyPublicSession(cmd.Context(), args[0], title)
			if err != nil {
				return err
			}
			return printSession(o, "sessions copy", sess)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title for the copy")
	return cmd
}

func newSessionsPickCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pick",
		Short: "Choose a session interactively and show it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := o.app
			if err := a.Chat.RefreshSessions(ctx); err != nil {
				return err
			}
			id, err := pickSession(a.in, a.out, a.Store.Sessions(), a.State.Projects(), a.Store.Current())
			if err != nil || id == "" {
				return err
			}
			if _, err := a.Chat.SelectSession(ctx, id); err != nil {
				return err
			}
			printTranscript(a.out, a.Store.Messages())
			return nil
		},
	}
}
