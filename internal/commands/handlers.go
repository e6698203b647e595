// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/morpheus-tui/internal/coordinator"
	"github.com/jeranaias/morpheus-tui/internal/model"
)

// =============================================================================
// HANDLER ENVIRONMENT
// =============================================================================

// Controller is the part of the coordinator the commands drive.
type Controller interface {
	Snapshot() coordinator.Snapshot
	NewConversation()
	Refresh(ctx context.Context) ([]model.ConversationSummary, error)
	SwitchConversation(ctx context.Context, id string) error
	Rename(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
	Edit(ordinal int, text string) (*coordinator.Turn, error)
	Stop() bool
	GenerateAudio(ctx context.Context, ordinal int) (string, error)
}

// Env provides access to application state for command handlers.
type Env struct {
	Controller Controller
	Registry   *Registry

	// AudioURL turns an audio id into something the user can open.
	// Optional.
	AudioURL func(id string) string

	// Now is used for relative timestamps. Defaults to time.Now.
	Now func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

var errNoController = errors.New("no active session")

func (e *Env) controller() (Controller, error) {
	if e == nil || e.Controller == nil {
		return nil, errNoController
	}
	return e.Controller, nil
}

// =============================================================================
// NAVIGATION
// =============================================================================

// HandleHelp shows help information.
func HandleHelp(_ context.Context, env *Env, args []string) (Result, error) {
	topic := ""
	if len(args) > 0 {
		topic = args[0]
	}
	return Result{Text: GenerateHelpText(env.Registry, topic)}, nil
}

// HandleQuit exits the application.
func HandleQuit(_ context.Context, env *Env, _ []string) (Result, error) {
	if c, err := env.controller(); err == nil {
		c.Stop()
	}
	return Result{Quit: true}, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// HandleNew starts a new conversation.
func HandleNew(_ context.Context, env *Env, _ []string) (Result, error) {
	c, err := env.controller()
	if err != nil {
		return Result{}, err
	}
	c.NewConversation()
	return Result{Text: "Started a new conversation.", Reload: true}, nil
}

// HandleList refreshes and prints the conversation list.
func HandleList(ctx context.Context, env *Env, _ []string) (Result, error) {
	c, err := env.controller()
	if err != nil {
		return Result{}, err
	}
	list, err := c.Refresh(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: FormatConversationList(list, c.Snapshot().ConversationID, env.now())}, nil
}

// FormatConversationList renders a numbered list, marking the active
// conversation.
func FormatConversationList(list []model.ConversationSummary, activeID string, now time.Time) string {
	if len(list) == 0 {
		return "No conversations yet. Send a message to start one."
	}

	var sb strings.Builder
	sb.WriteString("Conversations\n")
	sb.WriteString("=============\n")
	for i, s := range list {
		marker := " "
		if s.ID == activeID {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %2d. %-40s %8s  %s\n", marker, i+1, truncate(s.DisplayTitle(), 40), s.FormatAge(now), s.ID)
	}
	sb.WriteString("\nUse /switch <n> to open one.")
	return sb.String()
}

// HandleSwitch opens a conversation by list number or id.
func HandleSwitch(ctx context.Context, env *Env, args []string) (Result, error) {
	c, err := env.controller()
	if err != nil {
		return Result{}, err
	}
	id, err := resolveConversation(c.Snapshot(), args[0])
	if err != nil {
		return Result{}, err
	}
	if err := c.SwitchConversation(ctx, id); err != nil {
		return Result{}, err
	}
	snap := c.Snapshot()
	return Result{
		Text:   fmt.Sprintf("Opened %q (%d messages).", snap.DisplayTitle(), len(snap.Messages)),
		Reload: true,
	}, nil
}

// HandleRename renames the current conversation.
func HandleRename(ctx context.Context, env *Env, args []string) (Result, error) {
	c, err := env.controller()
	if err != nil {
		return Result{}, err
	}
	id := c.Snapshot().ConversationID
	if id == "" {
		return Result{}, errors.New("this conversation has not been saved yet")
	}
	title := strings.Join(args, " ")
	if err := c.Rename(ctx, id, title); err != nil {
		return Result{}, err
	}
	return Result{Text: fmt.Sprintf("Renamed to %q.", strings.TrimSpace(title))}, nil
}

// HandleDelete deletes a conversation, the current one by default.
func HandleDelete(ctx context.Context, env *Env, args []string) (Result, error) {
	c, err := env.controller()
	if err != nil {
		return Result{}, err
	}
	snap := c.Snapshot()

	id := snap.ConversationID
	if len(args) > 0 {
		if id, err = resolveConversation(snap, args[0]); err != nil {
			return Result{}, err
		}
	}
	if id == "" {
		return Result{}, errors.New("this conversation has not been saved yet")
	}

	if err := c.Delete(ctx, id); err != nil {
		return Result{}, err
	}
	return Result{Text: "Conversation deleted.", Reload: id == snap.ConversationID}, nil
}

// resolveConversation maps a 1-based list number or an id to an id.
func resolveConversation(snap coordinator.Snapshot, arg string) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(snap.Conversations) {
			return "", fmt.Errorf("no conversation #%d, run /list first", n)
		}
		return snap.Conversations[n-1].ID, nil
	}
	return arg, nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// HandleEdit rewrites the latest user message and regenerates the reply.
func HandleEdit(_ context.Context, env *Env, args []string) (Result, error) {
	c, err := env.controller()
	if err != nil {
		return Result{}, err
	}
	ordinal := lastOrdinal(c.Snapshot().Messages, model.RoleUser)
	if ordinal < 0 {
		return Result{}, errors.New("there is no message to edit")
	}
	turn, err := c.Edit(ordinal, strings.Join(args, " "))
	if err != nil {
		return Result{}, err
	}
	return Result{Turn: turn, Reload: true}, nil
}

// HandleStop stops the reply in progress.
func HandleStop(_ context.Context, env *Env, _ []string) (Result, error) {
	c, err := env.controller()
	if err != nil {
		return Result{}, err
	}
	if !c.Stop() {
		return Result{Text: "Nothing to stop."}, nil
	}
	return Result{Text: "Stopped."}, nil
}

// HandleAudio requests narration for a reply.
func HandleAudio(ctx context.Context, env *Env, args []string) (Result, error) {
	c, err := env.controller()
	if err != nil {
		return Result{}, err
	}

	var ordinal int
	if len(args) > 0 {
		if ordinal, err = strconv.Atoi(args[0]); err != nil {
			return Result{}, fmt.Errorf("not a message number: %s", args[0])
		}
	} else if ordinal = lastOrdinal(c.Snapshot().Messages, model.RoleAssistant); ordinal < 0 {
		return Result{}, errors.New("there is no reply to narrate")
	}

	id, err := c.GenerateAudio(ctx, ordinal)
	if err != nil {
		return Result{}, err
	}
	where := id
	if env.AudioURL != nil {
		where = env.AudioURL(id)
	}
	return Result{Text: "Narration ready: " + where}, nil
}

func lastOrdinal(msgs []model.Message, role model.Role) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			return msgs[i].Ordinal
		}
	}
	return -1
}

// =============================================================================
// HELP TEXT
// =============================================================================

var categoryOrder = []string{"Navigation", "Conversation", "Messages"}

// GenerateHelpText returns help for one command, or for all of them.
func GenerateHelpText(r *Registry, topic string) string {
	if r == nil {
		r = NewRegistry()
	}

	if topic != "" {
		if !strings.HasPrefix(topic, "/") {
			topic = "/" + topic
		}
		cmd := r.Get(topic)
		if cmd == nil {
			return fmt.Sprintf("Unknown command: %s\n\nTry /help to see all commands.", topic)
		}
		return commandHelp(cmd)
	}

	var sb strings.Builder
	sb.WriteString("Available Commands\n")
	sb.WriteString("==================\n\n")

	categories := r.ByCategory()
	for _, category := range categoryOrder {
		cmds := categories[category]
		if len(cmds) == 0 {
			continue
		}
		sb.WriteString(category + "\n")
		sb.WriteString(strings.Repeat("-", len(category)) + "\n")
		for _, cmd := range cmds {
			sb.WriteString(commandLine(cmd))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Keyboard Shortcuts\n")
	sb.WriteString("------------------\n")
	sb.WriteString("  Ctrl+C          Stop reply / Quit\n")
	sb.WriteString("  Tab             Auto-complete\n")
	sb.WriteString("  PgUp/PgDn       Scroll transcript\n")
	return sb.String()
}

func commandLine(cmd *Command) string {
	line := "  " + cmd.Name
	if len(cmd.Aliases) > 0 {
		line += " (" + strings.Join(cmd.Aliases, ", ") + ")"
	}
	for len(line) < 30 {
		line += " "
	}
	return line + " " + cmd.Description + "\n"
}

func commandHelp(cmd *Command) string {
	var sb strings.Builder
	sb.WriteString(commandLine(cmd))
	if cmd.Usage != "" {
		sb.WriteString("\n  Usage: " + cmd.Usage + "\n")
	}
	for _, a := range cmd.Args {
		req := "optional"
		if a.Required {
			req = "required"
		}
		fmt.Fprintf(&sb, "    %-14s %s (%s)\n", a.Name, a.Description, req)
	}
	return sb.String()
}
