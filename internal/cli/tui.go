// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Full-screen chat.
//
// Command: tui (also the default when no command is given)
//
// Examples:
//   morpheus                           Resume the last conversation
//   morpheus tui --new                 Start a fresh conversation
//   morpheus tui -c 2                  Open conversation #2 from the list
//
// Logs go to log.file (default ~/.morpheus/morpheus.log) so they do not
// draw over the screen.

package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jeranaias/morpheus-tui/internal/auth"
	"github.com/jeranaias/morpheus-tui/internal/ui/chat"
)

type tuiFlags struct {
	newConversation bool
	conversation    string
}

func newTUICommand(o *Options) *cobra.Command {
	var f tuiFlags
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Full-screen chat (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), o, f)
		},
	}
	cmd.Flags().BoolVar(&f.newConversation, "new", false, "start a new conversation instead of resuming")
	cmd.Flags().StringVarP(&f.conversation, "conversation", "c", "", "open this conversation (number or id)")
	return cmd
}

func runTUI(ctx context.Context, o *Options, f tuiFlags) error {
	if err := RequiresTTY("morpheus tui"); err != nil {
		return err
	}
	app, err := o.openApp(true)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := chat.Options{
		Coordinator: app.Coordinator,
		AudioURL:    app.AudioURL,
		Theme:       app.Config.UI.Theme,
		Markdown:    app.Config.UI.Markdown,
		ShowSafety:  app.Config.UI.ShowSafety,
		Logger:      app.Log,
	}
	switch {
	case f.conversation != "":
		id, err := resolveConversationArg(ctx, app, f.conversation)
		if err != nil {
			return err
		}
		opts.Startup, opts.ConversationID = chat.StartupSwitch, id
	case f.newConversation:
		opts.Startup = chat.StartupNew
	}

	// Signing out from another terminal ends this session too.
	err = auth.WatchSignOut(ctx, app.Config.Auth.TokenFile, app.Log, func() {
		if err := app.Coordinator.SignOut(ctx); err != nil {
			app.Log.Warn().Err(err).Msg("sign-out cleanup failed")
		}
	})
	if err != nil {
		app.Log.Warn().Err(err).Str("path", app.Config.Auth.TokenFile).Msg("not watching token file")
	}

	return chat.Run(ctx, opts)
}
