// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jeranaias/morpheus-tui/internal/coordinator"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/switch <n|id>")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Handler is the function that executes the command
	Handler Handler

	// Hidden commands don't appear in help
	Hidden bool

	// Category for grouping in help display
	Category string
}

// Handler executes a command against env. The same handlers serve the
// line-mode REPL and the full-screen UI.
type Handler func(ctx context.Context, env *Env, args []string) (Result, error)

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string

	// Values for enum types
	Values []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString       ArgType = iota // Free-form string
	ArgTypeConversation                // Conversation number or id
	ArgTypeOrdinal                     // Message ordinal
	ArgTypeEnum                        // One of predefined values
	ArgTypeCommand                     // Command name
)

// Result is what a command hands back to the front end.
type Result struct {
	// Text is shown to the user as a system message.
	Text string

	// Quit asks the front end to exit.
	Quit bool

	// Turn is set when the command started a reply the front end should
	// follow, as /edit does.
	Turn *coordinator.Turn

	// Reload asks the front end to redraw the whole transcript.
	Reload bool
}

var (
	// ErrNotCommand is returned by Execute for input without a leading slash.
	ErrNotCommand = errors.New("not a command")

	// ErrUnknownCommand is returned for an unregistered command name.
	ErrUnknownCommand = errors.New("unknown command")
)

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias. Lookup is case-insensitive.
func (r *Registry) Get(name string) *Command {
	name = strings.ToLower(name)
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Names returns every command name and alias.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands)+len(r.aliases))
	for name := range r.commands {
		names = append(names, name)
	}
	for alias := range r.aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

// ByCategory returns commands grouped by category.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = "General"
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// Execute parses input and runs the matching command.
func (r *Registry) Execute(ctx context.Context, env *Env, input string) (Result, error) {
	parsed := r.Parse(input)
	if !parsed.IsCommand {
		return Result{}, ErrNotCommand
	}
	if parsed.Command == nil {
		if s := r.Suggest(parsed.Name); s != "" {
			return Result{}, fmt.Errorf("%w %s (did you mean %s?)", ErrUnknownCommand, parsed.Name, s)
		}
		return Result{}, fmt.Errorf("%w %s, try /help", ErrUnknownCommand, parsed.Name)
	}

	cmd := parsed.Command
	required := 0
	for _, a := range cmd.Args {
		if a.Required {
			required++
		}
	}
	if len(parsed.Args) < required {
		return Result{}, fmt.Errorf("usage: %s", cmd.Usage)
	}

	if env == nil {
		env = &Env{}
	}
	if env.Registry == nil {
		env.Registry = r
	}
	return cmd.Handler(ctx, env, parsed.Args)
}

// Suggest returns the closest command name to a mistyped one, or "".
func (r *Registry) Suggest(name string) string {
	name = strings.ToLower(name)
	best, bestDist := "", 3
	for _, candidate := range r.Names() {
		if d := levenshtein(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	// Navigation commands
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show help and available commands",
		Usage:       "/help [command]",
		Args: []ArgDef{
			{Name: "command", Type: ArgTypeCommand, Description: "Command to describe"},
		},
		Category: "Navigation",
		Handler:  HandleHelp,
	})

	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit morpheus",
		Category:    "Navigation",
		Handler:     HandleQuit,
	})

	// Conversation commands
	r.Register(&Command{
		Name:        "/new",
		Aliases:     []string{"/n"},
		Description: "Start a new conversation",
		Category:    "Conversation",
		Handler:     HandleNew,
	})

	r.Register(&Command{
		Name:        "/list",
		Aliases:     []string{"/ls", "/conversations"},
		Description: "List your conversations",
		Category:    "Conversation",
		Handler:     HandleList,
	})

	r.Register(&Command{
		Name:        "/switch",
		Aliases:     []string{"/open", "/load"},
		Description: "Open a conversation from the list",
		Usage:       "/switch <n|id>",
		Args: []ArgDef{
			{Name: "conversation", Required: true, Type: ArgTypeConversation, Description: "Number from /list or conversation id"},
		},
		Category: "Conversation",
		Handler:  HandleSwitch,
	})

	r.Register(&Command{
		Name:        "/rename",
		Description: "Rename the current conversation",
		Usage:       "/rename <title>",
		Args: []ArgDef{
			{Name: "title", Required: true, Type: ArgTypeString, Description: "New title"},
		},
		Category: "Conversation",
		Handler:  HandleRename,
	})

	r.Register(&Command{
		Name:        "/delete",
		Aliases:     []string{"/rm"},
		Description: "Delete a conversation (default: the current one)",
		Usage:       "/delete [n|id]",
		Args: []ArgDef{
			{Name: "conversation", Type: ArgTypeConversation, Description: "Number from /list or conversation id"},
		},
		Category: "Conversation",
		Handler:  HandleDelete,
	})

	// Message commands
	r.Register(&Command{
		Name:        "/edit",
		Aliases:     []string{"/e"},
		Description: "Rewrite your last message and regenerate the reply",
		Usage:       "/edit <text>",
		Args: []ArgDef{
			{Name: "text", Required: true, Type: ArgTypeString, Description: "Replacement text"},
		},
		Category: "Messages",
		Handler:  HandleEdit,
	})

	r.Register(&Command{
		Name:        "/stop",
		Description: "Stop the reply in progress, keeping what arrived",
		Category:    "Messages",
		Handler:     HandleStop,
	})

	r.Register(&Command{
		Name:        "/audio",
		Aliases:     []string{"/narrate"},
		Description: "Generate narration for a reply (default: the latest)",
		Usage:       "/audio [ordinal]",
		Args: []ArgDef{
			{Name: "ordinal", Type: ArgTypeOrdinal, Description: "Message number"},
		},
		Category: "Messages",
		Handler:  HandleAudio,
	})
}

// =============================================================================
// COMPLETION TYPES
// =============================================================================

// Completion represents a single completion suggestion.
type Completion struct {
	// Value to insert
	Value string

	// Display text (may include formatting)
	Display string

	// Description shown alongside
	Description string

	// Score for ranking (higher = better match)
	Score int
}
