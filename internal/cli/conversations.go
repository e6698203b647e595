// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// conversations.go - Manage conversations stored on the server.
//
// Command: conversations (alias: conv)
//
// Examples:
//   morpheus conversations list
//   morpheus conv show 2
//   morpheus conv rename 2 "Fox stories"
//   morpheus conv delete 3f2a... --yes
//   morpheus conv recover

package cli

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/morpheus-tui/internal/commands"
	"github.com/jeranaias/morpheus-tui/internal/model"
)

func newConversationsCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "convs"},
		Short:   "List, show, rename, delete and recover conversations",
	}
	cmd.AddCommand(
		newConvListCommand(o),
		newConvShowCommand(o),
		newConvRenameCommand(o),
		newConvDeleteCommand(o),
		newConvRecoverCommand(o),
	)
	return cmd
}

// withApp opens the client stack for the duration of fn.
func (o *Options) withApp(fn func(app *App) error) error {
	app, err := o.openApp(false)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func newConvListCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(func(app *App) error {
				list, err := app.Directory.List(cmd.Context())
				if err != nil {
					return err
				}
				if list == nil {
					list = []model.ConversationSummary{}
				}
				active := activeConversation(cmd.Context(), app)
				return o.emit("conversations list", ConversationListData{Conversations: list}, func() {
					fmt.Fprintln(o.Stdout, commands.FormatConversationList(list, active, time.Now()))
				})
			})
		},
	}
}

func newConvShowCommand(o *Options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "show <n|id>",
		Short: "Print a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(func(app *App) error {
				ctx := cmd.Context()
				id, err := resolveConversationArg(ctx, app, args[0])
				if err != nil {
					return err
				}
				msgs, err := app.Directory.FetchMessages(ctx, id)
				if err != nil {
					return err
				}
				title := model.DefaultTitle
				if s, ok := app.Directory.Lookup(id); ok {
					title = s.DisplayTitle()
				}
				if limit > 0 && len(msgs) > limit {
					msgs = msgs[len(msgs)-limit:]
				}

				data := ConversationData{ID: id, Title: title, Messages: msgs}
				return o.emit("conversations show", data, func() {
					printTranscript(o, app, data)
				})
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "last", "n", 0, "only the last N messages")
	return cmd
}

func printTranscript(o *Options, app *App, data ConversationData) {
	fmt.Fprintln(o.Stdout, TitleStyle.Render(data.Title))
	for _, m := range data.Messages {
		label := PromptStyle.Render(m.Role.DisplayName())
		if m.IsAssistant() {
			label = AssistantStyle.Render(m.Role.DisplayName())
			if agent := m.Annotations.SourceAgent; agent != "" {
				label += DimStyle.Render(" (" + agent + ")")
			}
		}
		fmt.Fprintf(o.Stdout, "%s %s\n", DimStyle.Render(fmt.Sprintf("#%d", m.Ordinal)), label)
		fmt.Fprintln(o.Stdout, WrapText(m.Content, app.Config.UI.WordWrap))
		if m.HasAudio() {
			fmt.Fprintln(o.Stdout, DimStyle.Render("narration: "+app.AudioURL(m.Attachments.AudioRef)))
		}
		fmt.Fprintln(o.Stdout)
	}
}

func newConvRenameCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <n|id> <title...>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(func(app *App) error {
				ctx := cmd.Context()
				id, err := resolveConversationArg(ctx, app, args[0])
				if err != nil {
					return err
				}
				title := strings.Join(args[1:], " ")
				if err := app.Coordinator.Rename(ctx, id, title); err != nil {
					return err
				}
				title = strings.TrimSpace(title)
				return o.emit("conversations rename", map[string]string{"id": id, "title": title}, func() {
					fmt.Fprintf(o.Stdout, "%s renamed to %q\n", SuccessStyle.Render("[OK]"), title)
				})
			})
		},
	}
}

func newConvDeleteCommand(o *Options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <n|id>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(func(app *App) error {
				ctx := cmd.Context()
				id, err := resolveConversationArg(ctx, app, args[0])
				if err != nil {
					return err
				}
				if !yes {
					ok, err := o.confirm(fmt.Sprintf("Delete conversation %s?", id))
					if err != nil {
						return err
					}
					if !ok {
						o.printf("Cancelled.\n")
						return nil
					}
				}
				if err := app.Coordinator.Delete(ctx, id); err != nil {
					return err
				}
				if activeConversation(ctx, app) == id {
					if err := app.State.Clear(ctx); err != nil {
						app.Log.Warn().Err(err).Msg("could not clear session state")
					}
				}
				return o.emit("conversations delete", map[string]string{"id": id}, func() {
					fmt.Fprintf(o.Stdout, "%s deleted %s\n", SuccessStyle.Render("[OK]"), id)
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newConvRecoverCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Ask the server to rebuild conversations it lost track of",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(func(app *App) error {
				n, err := app.Directory.Recover(cmd.Context())
				if err != nil {
					return err
				}
				return o.emit("conversations recover", RecoverData{Recovered: n}, func() {
					fmt.Fprintf(o.Stdout, "Recovered %d conversation(s).\n", n)
				})
			})
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveConversationArg maps a 1-based list position or an id to an id.
func resolveConversationArg(ctx context.Context, app *App, arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	list, err := app.Directory.List(ctx)
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(list) {
		return "", usageErrorf("no conversation #%d (there are %d)", n, len(list))
	}
	return list[n-1].ID, nil
}

func activeConversation(ctx context.Context, app *App) string {
	st, ok, err := app.State.Load(ctx)
	if err != nil || !ok {
		return ""
	}
	return st.ConversationID
}

// confirm asks a yes/no question on stdin. Non-interactive callers must
// pass --yes.
func (o *Options) confirm(question string) (bool, error) {
	if o.JSON {
		return false, usageErrorf("refusing to ask for confirmation in --json mode; pass --yes")
	}
	fmt.Fprintf(o.Stderr, "%s [y/N] ", question)
	line, err := bufio.NewReader(o.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false, usageErrorf("no answer on stdin; pass --yes")
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
