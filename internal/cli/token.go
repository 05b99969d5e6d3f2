// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// =============================================================================
// TOKEN COMMAND
// =============================================================================

func newTokenCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored bearer token",
		Long: `Manage the bearer token sent to the backend.

The token is kept in the state file with owner-only permissions. A
running chat picks up a changed token without restarting.`,
	}
	cmd.AddCommand(newTokenSetCommand(o), newTokenShowCommand(o), newTokenClearCommand(o))
	return cmd
}

func newTokenSetCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set [token]",
		Short: "Store a token (prompted for, or read from stdin, when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			token := argOrFlag(args, "")
			if token == "" {
				var err error
				token, err = readSecret(a.in, a.errOut, "Token: ")
				if err != nil {
					return fmt.Errorf("read token: %w", err)
				}
			}
			if err := a.State.SetToken(token); err != nil {
				return err
			}
			fp := a.Client.CredentialFingerprint()
			return o.emit(a.out, "token set", map[string]string{"fingerprint": fp}, func() error {
				fmt.Fprintf(a.out, "%s (%s)\n", RenderConditional(SuccessStyle, "Token stored"), fp)
				return nil
			})
		},
	}
}

func newTokenShowCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored token's fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			data := map[string]any{
				"stored":      a.State.HasToken(),
				"fingerprint": "",
				"state_path":  a.State.Path(),
			}
			if a.State.HasToken() {
				data["fingerprint"] = a.Client.CredentialFingerprint()
			}
			return o.emit(a.out, "token show", data, func() error {
				if !a.State.HasToken() {
					fmt.Fprintln(a.out, RenderConditional(WarningStyle, "No token stored."))
				} else {
					fmt.Fprintf(a.out, "%s%s\n", RenderLabel("Fingerprint"), data["fingerprint"])
				}
				fmt.Fprintf(a.out, "%s%s\n", RenderLabel("State file"), a.State.Path())
				return nil
			})
		},
	}
}

func newTokenClearCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			if err := a.State.ClearToken(); err != nil {
				return err
			}
			return o.emit(a.out, "token clear", map[string]bool{"stored": false}, func() error {
				fmt.Fprintln(a.out, RenderConditional(SuccessStyle, "Token cleared"))
				return nil
			})
		},
	}
}
