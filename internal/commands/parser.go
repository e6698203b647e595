// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strings"
	"unicode"
)

// Invocation is one line of input split into a command name and arguments.
type Invocation struct {
	IsCommand bool

	// Command is nil when Name matches nothing in the registry.
	Command *Command

	// Name is the command word as typed, e.g. "/SW".
	Name string
	Args []string

	// RawArgs is everything after Name, trimmed.
	RawArgs string
}

// Parse splits input and resolves the command name against r.
func (r *Registry) Parse(input string) Invocation {
	input = strings.TrimSpace(input)
	if !IsCommand(input) {
		return Invocation{}
	}

	name := ExtractCommandName(input)
	raw := strings.TrimSpace(input[len(name):])
	return Invocation{
		IsCommand: true,
		Command:   r.Get(name),
		Name:      name,
		Args:      splitArgs(raw),
		RawArgs:   raw,
	}
}

// splitArgs tokenizes on whitespace. Single or double quotes group words,
// and inside quotes a backslash escapes a quote or another backslash.
func splitArgs(s string) []string {
	var (
		args    []string
		cur     strings.Builder
		quote   rune
		started bool
	)
	flush := func() {
		if cur.Len() > 0 || started {
			args = append(args, cur.String())
		}
		cur.Reset()
		started = false
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case quote != 0 && c == '\\' && i+1 < len(runes) && strings.ContainsRune(`"'\`, runes[i+1]):
			i++
			cur.WriteRune(runes[i])
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '"' || c == '\''):
			quote, started = c, true
		case quote == 0 && unicode.IsSpace(c):
			flush()
		default:
			cur.WriteRune(c)
		}
	}
	flush()
	return args
}

// IsCommand reports whether input is a slash command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// ExtractCommandName returns the leading command word: "/switch 3" gives
// "/switch". Input that is not a command gives "".
func ExtractCommandName(input string) string {
	input = strings.TrimSpace(input)
	if !IsCommand(input) {
		return ""
	}
	if end := strings.IndexFunc(input, unicode.IsSpace); end >= 0 {
		return input[:end]
	}
	return input
}
