// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot questions.
//
// Command: ask
// Short:   Send one message and print the reply
//
// Examples:
//   morpheus ask "tell me a bedtime story about a fox"
//   echo "how do I sleep better?" | morpheus ask
//   morpheus ask --resume "and the next night?"
//   morpheus ask --json --audio "story about the sea"
//
// Flags:
//   -c, --conversation ID  Continue this conversation
//   --resume               Continue the last active conversation
//   --audio                Narrate the reply if it is a story
//   --no-stream            Wait for the whole reply and render markdown

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/model"
)

type askFlags struct {
	conversation string
	resume       bool
	audio        bool
	noStream     bool
}

func newAskCommand(o *Options) *cobra.Command {
	var f askFlags
	cmd := &cobra.Command{
		Use:   "ask [message...]",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the reply. With no arguments the message is
read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := askText(o.Stdin, args)
			if err != nil {
				return err
			}
			app, err := o.openApp(false)
			if err != nil {
				return err
			}
			defer app.Close()
			return runAsk(cmd.Context(), o, app, f, text)
		},
	}
	cmd.Flags().StringVarP(&f.conversation, "conversation", "c", "", "continue this conversation id")
	cmd.Flags().BoolVar(&f.resume, "resume", false, "continue the last active conversation")
	cmd.Flags().BoolVar(&f.audio, "audio", false, "narrate the reply if it is a story")
	cmd.Flags().BoolVar(&f.noStream, "no-stream", false, "wait for the whole reply and render markdown")
	cmd.MarkFlagsMutuallyExclusive("conversation", "resume")
	return cmd
}

func askText(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	if f, ok := stdin.(*os.File); ok && f == os.Stdin && IsTTY() {
		return "", usageErrorf("no message given; pass it as arguments or pipe it on stdin")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", usageErrorf("message is empty")
	}
	return text, nil
}

func runAsk(ctx context.Context, o *Options, app *App, f askFlags, text string) error {
	coord := app.Coordinator
	switch {
	case f.conversation != "":
		if err := coord.SwitchConversation(ctx, f.conversation); err != nil {
			return err
		}
	case f.resume:
		if _, err := coord.Restore(ctx); err != nil {
			return err
		}
	}

	start := time.Now()
	turn, err := coord.Submit(text)
	if err != nil {
		return err
	}

	release := stopOnInterrupt(coord)
	defer release()

	fw := newFollower(coord)
	streaming := !o.JSON && !f.noStream
	var msg model.Message
	if streaming {
		msg, err = fw.Follow(ctx, turn, o.Stdout)
		fmt.Fprintln(o.Stdout)
	} else {
		msg, err = fw.Wait(ctx, turn)
	}
	if err != nil && !(chaterr.IsCancelled(err) && !msg.IsEmpty()) {
		return err
	}

	data := AskData{
		Reply:         msg.Content,
		Agent:         msg.Annotations.SourceAgent,
		AudioEligible: msg.AudioEligible,
		DurationMs:    time.Since(start).Milliseconds(),
	}
	if !msg.Annotations.IsZero() {
		ann := msg.Annotations.Clone()
		data.Annotations = &ann
	}
	snap := coord.Snapshot()
	data.ConversationID = snap.ConversationID
	data.Title = snap.Title

	if f.audio && msg.AudioEligible {
		id, aerr := coord.GenerateAudio(ctx, msg.Ordinal)
		if aerr != nil {
			return fmt.Errorf("narration failed: %w", aerr)
		}
		data.AudioID = id
	}

	if o.Quiet && !o.JSON && !streaming {
		fmt.Fprintln(o.Stdout, msg.Content)
	}
	return o.emit("ask", data, func() {
		if !streaming {
			displayResponse(o.Stdout, app.Config.UI.Theme, app.Config.UI.WordWrap, app.Config.UI.Markdown, msg.Content)
		}
		if data.AudioID != "" {
			fmt.Fprintf(o.Stdout, "%s %s\n", SuccessStyle.Render("Narration:"), app.AudioURL(data.AudioID))
		} else if data.AudioEligible && app.Audio != nil {
			fmt.Fprintln(o.Stdout, DimStyle.Render("Story reply; add --audio to narrate it."))
		}
		if data.ConversationID != "" {
			elapsed := formatDurationShort(time.Duration(data.DurationMs) * time.Millisecond)
			fmt.Fprintln(o.Stdout, DimStyle.Render("conversation "+data.ConversationID+" ("+elapsed+")"))
		}
	})
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// newMarkdownRenderer builds a glamour renderer for the configured theme.
func newMarkdownRenderer(theme string, wrap int) (*glamour.TermRenderer, error) {
	style := glamour.WithAutoStyle()
	switch theme {
	case "dark", "light":
		style = glamour.WithStandardStyle(theme)
	}
	if wrap <= 0 {
		wrap = DefaultTerminalWidth
	}
	return glamour.NewTermRenderer(style, glamour.WithWordWrap(wrap))
}

// renderMarkdown renders content, returning it unchanged if rendering
// fails.
func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse renders markdown only when stdout is a terminal, so
// piped output stays plain.
func displayResponse(w io.Writer, theme string, wrap int, markdown bool, response string) {
	if markdown && IsStdoutTTY() {
		if r, err := newMarkdownRenderer(theme, wrap); err == nil {
			fmt.Fprint(w, renderMarkdown(r, response))
			return
		}
	}
	fmt.Fprint(w, response)
	if !strings.HasSuffix(response, "\n") {
		fmt.Fprintln(w)
	}
}
