// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"

	"github.com/jeranaias/morpheus-tui/internal/commands"
	"github.com/jeranaias/morpheus-tui/internal/coordinator"
	"github.com/jeranaias/morpheus-tui/internal/model"
	"github.com/jeranaias/morpheus-tui/internal/ui/components"
	"github.com/jeranaias/morpheus-tui/internal/ui/styles"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Coordinator is what the view needs from the coordinator.
type Coordinator interface {
	commands.Controller
	OnUpdate(fn func())
	Submit(text string) (*coordinator.Turn, error)
	Restore(ctx context.Context) (bool, error)
	ClearError()
}

// Startup selects what the view shows first.
type Startup int

const (
	// StartupRestore reopens the conversation that was active last time.
	StartupRestore Startup = iota
	// StartupNew starts an empty conversation.
	StartupNew
	// StartupSwitch opens Options.ConversationID.
	StartupSwitch
)

// Options configures a chat view.
type Options struct {
	Coordinator Coordinator
	Registry    *commands.Registry

	// AudioURL turns an audio id into a link. Optional.
	AudioURL func(id string) string

	Startup        Startup
	ConversationID string

	Theme      string
	Markdown   bool
	ShowSafety bool
	MaxFPS     int

	Logger zerolog.Logger
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view. All conversation state
// lives in the coordinator; the model keeps the latest snapshot and the
// widgets around it.
type Model struct {
	ctx   context.Context
	coord Coordinator
	opts  Options
	log   zerolog.Logger

	registry   *commands.Registry
	env        *commands.Env
	completer  *commands.Completer
	completion *commands.CompletionState
	pump       *updatePump

	keys     KeyMap
	theme    *styles.Theme
	header   *components.Header
	status   *components.StatusBar
	popup    *components.CompletionPopup
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model

	md *markdownCache

	snap coordinator.Snapshot
	// output is the text of the last slash command, shown under the
	// transcript until the next input.
	output   string
	notice   string
	showHelp bool
	width    int
	height   int
	ready    bool
}

// New builds a chat view. ctx bounds every network call the view makes
// and stops the redraw pump.
func New(ctx context.Context, opts Options) Model {
	if opts.Registry == nil {
		opts.Registry = commands.NewRegistry()
	}
	theme := styles.NewTheme(opts.Theme)

	ta := textarea.New()
	ta.Placeholder = "Type a message, or / for commands"
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = theme.StateBusy

	// Scrolling is driven by KeyMap; letters belong to the input.
	vp := viewport.New(80, 20)
	vp.KeyMap = viewport.KeyMap{}

	h := help.New()
	h.ShowAll = true

	m := Model{
		ctx:        ctx,
		coord:      opts.Coordinator,
		opts:       opts,
		log:        opts.Logger.With().Str("component", "tui").Logger(),
		registry:   opts.Registry,
		completer:  commands.NewCompleter(opts.Registry),
		completion: commands.NewCompletionState(),
		pump:       newUpdatePump(opts.MaxFPS),
		keys:       DefaultKeyMap(),
		theme:      theme,
		header:     components.NewHeader(theme),
		status:     components.NewStatusBar(theme),
		popup:      components.NewCompletionPopup(theme),
		viewport:   vp,
		input:      ta,
		spinner:    sp,
		help:       h,
		md:         newMarkdownCache(opts.Markdown, opts.Theme),
	}
	m.env = &commands.Env{
		Controller: opts.Coordinator,
		Registry:   opts.Registry,
		AudioURL:   opts.AudioURL,
		Now:        time.Now,
	}
	m.completer.ConversationsFn = func() []model.ConversationSummary {
		return m.coord.Snapshot().Conversations
	}
	m.status.Shortcuts = shortcuts(m.keys.ShortHelp())

	m.coord.OnUpdate(m.pump.poke)
	m.snap = m.coord.Snapshot()
	return m
}

// Snapshot returns the coordinator state the view last rendered.
func (m Model) Snapshot() coordinator.Snapshot {
	return m.snap
}

func shortcuts(bindings []key.Binding) []components.Shortcut {
	out := make([]components.Shortcut, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		out = append(out, components.Shortcut{Key: h.Key, Desc: h.Desc})
	}
	return out
}

// =============================================================================
// MARKDOWN
// =============================================================================

type mdKey struct {
	ordinal int
	width   int
	content string
}

// markdownCache renders finished replies once per width. Streaming
// replies are shown as plain text.
type markdownCache struct {
	enabled  bool
	style    string
	width    int
	renderer *glamour.TermRenderer
	entries  map[mdKey]string
}

func newMarkdownCache(enabled bool, theme string) *markdownCache {
	style := theme
	if style != "dark" && style != "light" {
		style = ""
	}
	return &markdownCache{enabled: enabled, style: style, entries: make(map[mdKey]string)}
}

func (c *markdownCache) render(msg model.Message, width int) (string, bool) {
	if !c.enabled || msg.IsStreaming || !msg.IsAssistant() || width < 20 {
		return "", false
	}
	k := mdKey{ordinal: msg.Ordinal, width: width, content: msg.Content}
	if out, ok := c.entries[k]; ok {
		return out, true
	}
	if c.renderer == nil || c.width != width {
		opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
		if c.style != "" {
			opts = append(opts, glamour.WithStandardStyle(c.style))
		} else {
			opts = append(opts, glamour.WithAutoStyle())
		}
		r, err := glamour.NewTermRenderer(opts...)
		if err != nil {
			c.enabled = false
			return "", false
		}
		c.renderer, c.width = r, width
		c.entries = make(map[mdKey]string)
	}
	out, err := c.renderer.Render(msg.Content)
	if err != nil {
		return "", false
	}
	c.entries[k] = out
	return out, true
}
