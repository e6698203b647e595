// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/morpheus-tui/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// GLOBAL OPTIONS
// =============================================================================

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigPath string
	BaseURL    string
	LogLevel   string
	JSON       bool
	Quiet      bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// LoadConfig reads the config file named by --config (or the default one)
// and applies flag overrides on top.
func (o *Options) LoadConfig() (*config.Config, error) {
	path := o.ConfigPath
	if path == "" {
		var err error
		if path, err = config.ConfigPath(); err != nil {
			return nil, &configError{err: err}
		}
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, &configError{err: err}
	}

	if o.BaseURL != "" {
		cfg.Server.BaseURL = o.BaseURL
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, &configError{err: err}
	}
	return cfg, nil
}

func (o *Options) configFile() (string, error) {
	if o.ConfigPath != "" {
		return o.ConfigPath, nil
	}
	return config.ConfigPath()
}

// openApp loads config and builds the client stack.
func (o *Options) openApp(fullScreen bool) (*App, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewApp(cfg, fullScreen)
}

// printf writes human-readable output unless --quiet or --json is set.
func (o *Options) printf(format string, args ...any) {
	if o.Quiet || o.JSON {
		return
	}
	fmt.Fprintf(o.Stdout, format, args...)
}

// emit writes data as a JSON envelope in --json mode, or calls human.
func (o *Options) emit(command string, data any, human func()) error {
	if o.JSON {
		return NewJSONResponse(command, data).Write(o.Stdout)
	}
	if human != nil && !o.Quiet {
		human()
	}
	return nil
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the morpheus command tree. Without a subcommand it
// starts the full-screen client.
func NewRootCommand(o *Options) *cobra.Command {
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}

	root := &cobra.Command{
		Use:   "morpheus",
		Short: "Streaming chat client for the Morpheus assistant",
		Long: `morpheus talks to a Morpheus server: replies stream in as they are
written, conversations are kept on the server, and story replies can be
narrated.

Examples:
  morpheus                          Full-screen chat
  morpheus chat                     Line-mode chat
  morpheus ask "tell me a bedtime story"
  morpheus conversations list
  morpheus signin --token $TOKEN`,
		Version:       fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), o, tuiFlags{})
		},
	}
	root.SetIn(o.Stdin)
	root.SetOut(o.Stdout)
	root.SetErr(o.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Message: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&o.ConfigPath, "config", "", "config file (default ~/.morpheus/config.toml)")
	pf.StringVar(&o.BaseURL, "base-url", "", "server base URL, overrides server.base_url")
	pf.StringVar(&o.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&o.JSON, "json", false, "machine-readable output where supported")
	pf.BoolVarP(&o.Quiet, "quiet", "q", false, "minimal output")

	root.AddCommand(
		newTUICommand(o),
		newChatCommand(o),
		newAskCommand(o),
		newConversationsCommand(o),
		newAudioCommand(o),
		newSigninCommand(o),
		newSignoutCommand(o),
		newConfigCommand(o),
		newVersionCommand(o),
	)
	return root
}

func newVersionCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			data := VersionData{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
			}
			return o.emit("version", data, func() {
				fmt.Fprintf(o.Stdout, "morpheus %s\n", Version)
				fmt.Fprintln(o.Stdout, RenderField("Commit:", GitCommit))
				fmt.Fprintln(o.Stdout, RenderField("Built:", BuildDate))
				fmt.Fprintln(o.Stdout, RenderField("Go:", data.GoVersion))
			})
		},
	}
}

// =============================================================================
// EXECUTION
// =============================================================================

// Execute runs the command line and returns the process exit code.
func Execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	return Run(ctx, &Options{}, args)
}

// Run executes args against a fresh command tree bound to o.
func Run(ctx context.Context, o *Options, args []string) int {
	root := NewRootCommand(o)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	if strings.HasPrefix(err.Error(), "unknown command") || strings.HasPrefix(err.Error(), "accepts ") {
		err = &UsageError{Message: err.Error()}
	}
	w := o.Stderr
	if o.JSON {
		w = o.Stdout
	}
	DisplayError(w, err, o.JSON)
	return GetExitCode(err)
}
