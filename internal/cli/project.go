// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jeranaias/g4chat/internal/util"
)

// =============================================================================
// PROJECT COMMAND
// =============================================================================

// Projects are a client-side grouping of sessions. The backend never sees
// them.
func newProjectCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Group sessions under local project names",
	}
	cmd.AddCommand(newProjectLinkCommand(o), newProjectUnlinkCommand(o), newProjectListCommand(o))
	return cmd
}

func newProjectLinkCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link <session-id> <project>",
		Short: "Put a session in a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			if err := a.State.LinkProject(args[0], args[1]); err != nil {
				return err
			}
			project, _ := a.State.Project(args[0])
			return o.emit(a.out, "project link", map[string]string{"session_id": args[0], "project": project}, func() error {
				fmt.Fprintf(a.out, "%s %s -> %s\n", RenderConditional(SuccessStyle, "Linked"), args[0], project)
				return nil
			})
		},
	}
}

func newProjectUnlinkCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <session-id>",
		Short: "Take a session out of its project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			removed, err := a.State.UnlinkProject(args[0])
			if err != nil {
				return err
			}
			return o.emit(a.out, "project unlink", map[string]any{"session_id": args[0], "removed": removed}, func() error {
				if removed {
					fmt.Fprintf(a.out, "%s %s\n", RenderConditional(SuccessStyle, "Unlinked"), args[0])
				} else {
					fmt.Fprintf(a.out, "Session %s is not in a project.\n", args[0])
				}
				return nil
			})
		},
	}
}

func newProjectListCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list [project]",
		Aliases: []string{"ls"},
		Short:   "List projects, or the sessions of one project",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			if len(args) == 1 {
				ids := a.State.ProjectSessions(args[0])
				return o.emit(a.out, "project list", ids, func() error {
					for _, id := range ids {
						fmt.Fprintln(a.out, id)
					}
					return nil
				})
			}

			grouped := map[string][]string{}
			for id, project := range a.State.Projects() {
				grouped[project] = append(grouped[project], id)
			}
			names := make([]string, 0, len(grouped))
			for name, ids := range grouped {
				sort.Strings(ids)
				names = append(names, name)
			}
			sort.Strings(names)

			return o.emit(a.out, "project list", grouped, func() error {
				if len(names) == 0 {
					fmt.Fprintln(a.out, RenderConditional(DimStyle, "No projects."))
					return nil
				}
				for _, name := range names {
					fmt.Fprintf(a.out, "%s %d sessions\n", util.PadWidth(name, 24), len(grouped[name]))
				}
				return nil
			})
		},
	}
}
