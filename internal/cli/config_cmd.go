// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jeranaias/g4chat/internal/config"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func newConfigCommand(o *rootOptions) *cobra.Command {
	noApp := map[string]string{annotationNoApp: "true"}
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Show and edit the configuration",
		Annotations: noApp,
	}

	path := func() string {
		if o.configPath != "" {
			return o.configPath
		}
		return config.ConfigPath()
	}

	show := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Args:        cobra.NoArgs,
		Annotations: noApp,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromPath(path())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return o.emit(w, "config show", cfg, func() error {
				text := cfg.String()
				if isTerminalWriter(w) && ColorsEnabled() {
					text = highlightCode(text, "toml")
				}
				fmt.Fprint(w, text)
				return nil
			})
		},
	}

	pathCmd := &cobra.Command{
		Use:         "path",
		Short:       "Print the config file path",
		Args:        cobra.NoArgs,
		Annotations: noApp,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			return o.emit(w, "config path", map[string]string{"path": path()}, func() error {
				fmt.Fprintln(w, path())
				return nil
			})
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a config file with the defaults",
		Args:        cobra.NoArgs,
		Annotations: noApp,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := path()
			if _, err := os.Stat(p); err == nil && !force {
				return &ValidationError{Field: "config", Value: p, Reason: "file exists", Example: "g4chat config init --force"}
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Save(config.Default(), p); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return o.emit(w, "config init", map[string]string{"path": p}, func() error {
				fmt.Fprintf(w, "%s %s\n", RenderConditional(SuccessStyle, "Wrote"), p)
				return nil
			})
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	get := &cobra.Command{
		Use:         "get <key>",
		Short:       "Print one effective setting",
		Args:        cobra.ExactArgs(1),
		Annotations: noApp,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromPath(path())
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return &ValidationError{Field: "key", Value: args[0], Reason: err.Error()}
			}
			w := cmd.OutOrStdout()
			return o.emit(w, "config get", map[string]any{"key": args[0], "value": v}, func() error {
				fmt.Fprintln(w, v)
				return nil
			})
		},
	}

	set := &cobra.Command{
		Use:         "set <key> <value>",
		Short:       "Change one setting in the config file",
		Args:        cobra.ExactArgs(2),
		Annotations: noApp,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := path()
			// Only the file's own values are rewritten, not env overrides.
			cfg := config.Default()
			if _, err := os.Stat(p); err == nil {
				if err := config.LoadTOML(cfg, p); err != nil {
					return err
				}
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return &ValidationError{Field: args[0], Value: args[1], Reason: err.Error()}
			}
			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg, p); err != nil {
				return err
			}
			v, _ := cfg.Get(args[0])
			w := cmd.OutOrStdout()
			return o.emit(w, "config set", map[string]any{"key": args[0], "value": v}, func() error {
				fmt.Fprintf(w, "%s %s = %v\n", RenderConditional(SuccessStyle, "Set"), args[0], v)
				return nil
			})
		},
	}

	keys := &cobra.Command{
		Use:         "keys",
		Short:       "List settings and their environment variables",
		Args:        cobra.NoArgs,
		Annotations: noApp,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			envByKey := config.EnvByKey()
			names := config.Keys()
			sort.Strings(names)
			return o.emit(w, "config keys", envByKey, func() error {
				for _, k := range names {
					fmt.Fprintf(w, "%s%s\n", RenderLabel(k), RenderConditional(DimStyle, envByKey[k]))
				}
				return nil
			})
		},
	}

	cmd.AddCommand(show, pathCmd, initCmd, get, set, keys)
	return cmd
}
