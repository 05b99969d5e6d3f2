// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/g4chat/internal/api"
	"github.com/jeranaias/g4chat/internal/config"
	"github.com/jeranaias/g4chat/internal/logging"
)

// Version information (set via ldflags at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// annotationNoApp marks commands that run without the client stack, so a
// broken config or backend never blocks fixing it.
const annotationNoApp = "g4chat/no-app"

// rootOptions holds the persistent flags and the app built from them.
type rootOptions struct {
	configPath string
	verbose    bool
	jsonMode   bool
	baseURL    string

	app    *App
	logger *zap.Logger
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

func newRoot() (*cobra.Command, *rootOptions) {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:   "g4chat",
		Short: "Terminal client for a G4 chat backend",
		Long: `g4chat talks to a G4 chat backend from the terminal.

Replies stream token by token. Conversations are kept on the backend;
a local archive keeps the transcripts you have opened for offline reading.

Run without arguments to start an interactive chat.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: o.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			o.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, o, "")
		},
	}

	root.PersistentFlags().StringVar(&o.configPath, "config", "", "config file (default "+config.ConfigPath()+")")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "debug logging on stderr")
	root.PersistentFlags().BoolVar(&o.jsonMode, "json", false, "JSON output")
	root.PersistentFlags().StringVar(&o.baseURL, "base-url", "", "backend URL, overrides config")

	root.AddCommand(
		newChatCommand(o),
		newSendCommand(o),
		newSessionsCommand(o),
		newMessagesCommand(o),
		newTokenCommand(o),
		newProjectCommand(o),
		newHistoryCommand(o),
		newExportCommand(o),
		newConfigCommand(o),
		newDoctorCommand(o),
		newVersionCommand(o),
	)
	return root, o
}

// setup loads config and builds the app for commands that need it.
func (o *rootOptions) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[annotationNoApp] == "true" {
		return nil
	}

	path := o.configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return err
	}
	if o.baseURL != "" {
		cfg.API.BaseURL = o.baseURL
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --base-url: %w", err)
		}
	}

	if f := cmd.Flags().Lookup("no-stream"); f != nil && f.Changed && f.Value.String() == "true" {
		cfg.Chat.Streaming = false
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		Verbose:     o.verbose,
	})
	if err != nil {
		return err
	}
	o.logger = logger
	logger.Debug("config loaded",
		zap.String("path", path),
		zap.String("base_url", cfg.API.BaseURL),
		zap.Bool("streaming", cfg.Chat.Streaming))

	app, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	app.out = cmd.OutOrStdout()
	app.errOut = cmd.ErrOrStderr()
	app.in = cmd.InOrStdin()
	app.jsonMode = o.jsonMode
	o.app = app
	return nil
}

// close releases the app. Safe to call more than once.
func (o *rootOptions) close() {
	if o.app != nil {
		if err := o.app.Close(); err != nil && o.logger != nil {
			o.logger.Warn("close failed", zap.Error(err))
		}
		o.app = nil
	}
	if o.logger != nil {
		_ = o.logger.Sync()
		o.logger = nil
	}
}

// emit writes data as a JSON envelope in --json mode, otherwise calls human.
func (o *rootOptions) emit(w io.Writer, command string, data any, human func() error) error {
	if o.jsonMode {
		return NewJSONResponse(command, data).Write(w)
	}
	return human()
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	api.UserAgent = "g4chat/" + Version

	root, o := newRoot()
	err := root.ExecuteContext(context.Background())
	o.close()
	if err != nil {
		DisplayError(os.Stderr, err, o.jsonMode)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// argOrFlag returns the first positional argument, trimmed, or fallback.
func argOrFlag(args []string, fallback string) string {
	if len(args) > 0 {
		return strings.TrimSpace(args[0])
	}
	return fallback
}

// =============================================================================
// VERSION COMMAND
// =============================================================================

func newVersionCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":    Version,
				"git_commit": GitCommit,
				"build_date": BuildDate,
			}
			w := cmd.OutOrStdout()
			return o.emit(w, "version", info, func() error {
				fmt.Fprintf(w, "g4chat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
				return nil
			})
		},
	}
}
