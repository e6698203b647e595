// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// audio_cmd.go - Narrate story replies.
//
// Command: audio [message-number]
//
// Examples:
//   morpheus audio                     Narrate the last reply of the active conversation
//   morpheus audio 5 -c 3f2a...        Narrate message #5 of a conversation
//   morpheus audio --out story.mp3     Also download the audio

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/morpheus-tui/internal/coordinator"
	"github.com/jeranaias/morpheus-tui/internal/model"
	"github.com/jeranaias/morpheus-tui/internal/util"
)

func newAudioCommand(o *Options) *cobra.Command {
	var (
		conversation string
		out          string
	)
	cmd := &cobra.Command{
		Use:     "audio [message-number]",
		Aliases: []string{"narrate"},
		Short:   "Generate narration for a reply",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(func(app *App) error {
				if app.Audio == nil {
					return coordinator.ErrAudioDisabled
				}
				ctx := cmd.Context()
				coord := app.Coordinator

				if conversation != "" {
					id, err := resolveConversationArg(ctx, app, conversation)
					if err != nil {
						return err
					}
					if err := coord.SwitchConversation(ctx, id); err != nil {
						return err
					}
				} else if ok, err := coord.Restore(ctx); err != nil {
					return err
				} else if !ok {
					return usageErrorf("no active conversation; pass --conversation")
				}

				ordinal, err := pickReply(coord.Messages(), args)
				if err != nil {
					return err
				}
				id, err := coord.GenerateAudio(ctx, ordinal)
				if err != nil {
					return err
				}

				data := AudioData{AudioID: id, URL: app.AudioURL(id)}
				if out != "" {
					path, err := validateOutputPath(out)
					if err != nil {
						return err
					}
					token, err := app.Tokens.Token()
					if err != nil {
						return err
					}
					var buf bytes.Buffer
					if data.Bytes, err = app.Audio.Download(ctx, token, id, &buf); err != nil {
						return err
					}
					if err := util.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
						return fmt.Errorf("saving audio: %w", err)
					}
					data.File = path
				}

				return o.emit("audio", data, func() {
					fmt.Fprintln(o.Stdout, RenderField("Narration:", data.URL))
					if data.File != "" {
						fmt.Fprintln(o.Stdout, RenderField("Saved:", fmt.Sprintf("%s (%s)", data.File, formatBytes(data.Bytes))))
					}
				})
			})
		},
	}
	cmd.Flags().StringVarP(&conversation, "conversation", "c", "", "conversation number or id (default: active)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "download the audio to this file")
	return cmd
}

// pickReply returns the ordinal named in args, or the last reply.
func pickReply(msgs []model.Message, args []string) (int, error) {
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, usageErrorf("not a message number: %s", args[0])
		}
		return n, nil
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsAssistant() {
			return msgs[i].Ordinal, nil
		}
	}
	return 0, errors.New("conversation has no replies to narrate")
}
