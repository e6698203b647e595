// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat.
//
// Command: chat
// Short:   Chat in the terminal without the full-screen UI
//
// Examples:
//   morpheus chat                      Resume the last conversation
//   morpheus chat --new                Start fresh
//   morpheus chat -c 3f2a...           Open a specific conversation
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /new, /n            Start a new conversation
//   /list, /ls          List conversations
//   /switch <n|id>      Open a conversation
//   /edit <text>        Rewrite your last message and regenerate
//   /audio [n]          Narrate a story reply
//   /quit, /q           Exit chat
//   Ctrl+C              Stop the reply in progress
//   Ctrl+D              Exit chat

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/commands"
	"github.com/jeranaias/morpheus-tui/internal/config"
	"github.com/jeranaias/morpheus-tui/internal/coordinator"
	"github.com/jeranaias/morpheus-tui/internal/model"
	"github.com/jeranaias/morpheus-tui/internal/ui/styles"
)

type chatFlags struct {
	newConversation bool
	conversation    string
}

func newChatCommand(o *Options) *cobra.Command {
	var f chatFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal without the full-screen UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := o.openApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			in := newLineReader(o)
			defer in.Close()
			return newREPL(o, app, in).run(cmd.Context(), f)
		},
	}
	cmd.Flags().BoolVar(&f.newConversation, "new", false, "start a new conversation instead of resuming")
	cmd.Flags().StringVarP(&f.conversation, "conversation", "c", "", "open this conversation id")
	return cmd
}

// =============================================================================
// INPUT
// =============================================================================

type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// newLineReader uses liner on a real terminal and a plain scanner
// otherwise, so piped input and tests work.
func newLineReader(o *Options) lineReader {
	if f, ok := o.Stdin.(*os.File); ok && f == os.Stdin && IsTTY() {
		dir, err := config.ConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		return NewChatCLI(filepath.Join(dir, "chat_history"))
	}
	return &plainReader{scanner: bufio.NewScanner(o.Stdin), out: o.Stdout}
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor whose history lives in historyFile.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return c
}

// ReadInput reads one line, recording non-empty input in the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists the history readable only by the owner.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

type plainReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (r *plainReader) ReadInput(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *plainReader) Close() {}

// =============================================================================
// REPL
// =============================================================================

type repl struct {
	o        *Options
	app      *App
	in       lineReader
	registry *commands.Registry
	env      *commands.Env
	follower *follower
	theme    *styles.Theme
}

func newREPL(o *Options, app *App, in lineReader) *repl {
	registry := commands.NewRegistry()
	return &repl{
		o:        o,
		app:      app,
		in:       in,
		registry: registry,
		env: &commands.Env{
			Controller: app.Coordinator,
			Registry:   registry,
			AudioURL:   app.AudioURL,
		},
		follower: newFollower(app.Coordinator),
		theme:    styles.NewTheme(app.Config.UI.Theme),
	}
}

func (r *repl) run(ctx context.Context, f chatFlags) error {
	if err := r.open(ctx, f); err != nil {
		return err
	}
	r.printWelcome()

	prompt := PromptStyle.Render("you>") + " "
	for {
		input, err := r.in.ReadInput(prompt)
		if err != nil {
			fmt.Fprintln(r.o.Stdout)
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		quit, err := r.handle(ctx, input)
		if err != nil {
			r.printError(err)
		}
		if quit {
			return nil
		}
	}
}

// open picks the starting conversation.
func (r *repl) open(ctx context.Context, f chatFlags) error {
	coord := r.app.Coordinator
	switch {
	case f.conversation != "":
		return coord.SwitchConversation(ctx, f.conversation)
	case f.newConversation:
		coord.NewConversation()
		return nil
	}
	if _, err := coord.Restore(ctx); err != nil {
		// An unreachable server should not stop the user from typing.
		r.printError(err)
	}
	return nil
}

func (r *repl) handle(ctx context.Context, input string) (quit bool, err error) {
	if commands.IsCommand(input) {
		res, err := r.registry.Execute(ctx, r.env, input)
		if err != nil {
			return false, err
		}
		if res.Text != "" {
			fmt.Fprintln(r.o.Stdout, res.Text)
		}
		if res.Turn != nil {
			if err := r.followTurn(ctx, res.Turn); err != nil {
				return res.Quit, err
			}
		}
		return res.Quit, nil
	}

	if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
		return true, nil
	}

	turn, err := r.app.Coordinator.Submit(input)
	if err != nil {
		return false, err
	}
	return false, r.followTurn(ctx, turn)
}

// followTurn streams the reply to stdout. Ctrl+C stops the reply instead
// of killing the process.
func (r *repl) followTurn(ctx context.Context, turn *coordinator.Turn) error {
	release := stopOnInterrupt(r.app.Coordinator)
	defer release()

	fmt.Fprint(r.o.Stdout, AssistantStyle.Render("morpheus>")+" ")
	msg, err := r.follower.Follow(ctx, turn, r.o.Stdout)
	fmt.Fprintln(r.o.Stdout)

	if chaterr.IsCancelled(err) {
		fmt.Fprintln(r.o.Stdout, WarningStyle.Render("[stopped]"))
		err = nil
	}
	if err != nil {
		return err
	}
	r.printFooter(msg)
	return nil
}

// stopOnInterrupt turns SIGINT into Stop until the returned func is called.
func stopOnInterrupt(c *coordinator.Coordinator) func() {
	sig := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sig, os.Interrupt)
	go func() {
		select {
		case <-sig:
			c.Stop()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sig)
		close(done)
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *repl) printWelcome() {
	if r.o.Quiet {
		return
	}
	snap := r.app.Coordinator.Snapshot()
	fmt.Fprintln(r.o.Stdout, TitleStyle.Render("morpheus"))
	if snap.ConversationID != "" {
		fmt.Fprintf(r.o.Stdout, "Resumed %q (%d messages).\n", snap.DisplayTitle(), len(snap.Messages))
	} else {
		fmt.Fprintln(r.o.Stdout, "New conversation.")
	}
	fmt.Fprintln(r.o.Stdout, DimStyle.Render("Type /help for commands, Ctrl+C to stop a reply, Ctrl+D to exit."))
	fmt.Fprintln(r.o.Stdout)
}

func (r *repl) printFooter(msg model.Message) {
	if r.o.Quiet {
		return
	}
	if r.app.Config.UI.ShowSafety {
		if badges := r.theme.SafetyBadges(msg.Annotations); badges != "" {
			fmt.Fprintln(r.o.Stdout, badges)
		}
	}
	if msg.AudioEligible && r.app.Audio != nil && !msg.HasAudio() {
		fmt.Fprintln(r.o.Stdout, DimStyle.Render(fmt.Sprintf("%s story reply, /audio %d to narrate", styles.StatusIndicators.Audio, msg.Ordinal)))
	}
}

func (r *repl) printError(err error) {
	DisplayError(r.o.Stderr, err, false)
}
