// Package chat provides the interactive terminal front end for the camp
// assistant. The functionality is split across files:
//   - model.go: types, construction, Init, event plumbing (this file)
//   - update.go: the Update loop and slash command handling
//   - view.go: rendering
//
// The Model is a thin presentation layer; all conversation semantics live in
// internal/session and arrive here as engine events.
package chat

import (
	"context"
	"time"

	"campchat/cmd/campchat/ui"
	"campchat/internal/config"
	"campchat/internal/markdown"
	"campchat/internal/relay"
	"campchat/internal/roster"
	"campchat/internal/session"
	"campchat/internal/stream"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// engineEventMsg wraps a session event for the bubbletea loop.
type engineEventMsg struct {
	event session.Event
}

// statusExpiredMsg dismisses a transient status line after its TTL.
type statusExpiredMsg struct {
	seq int
}

// entry is one rendered transcript row.
type entry struct {
	role      string // "user", "bot", "notice"
	text      string
	blocks    []markdown.Block
	citations []stream.Citation
	thinking  bool
}

// Model is the bubbletea model for the chat widget.
type Model struct {
	engine *session.Engine
	cfg    config.Config

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   ui.Styles

	width  int
	height int
	ready  bool

	camps       []relay.Camp
	headerTitle string
	welcome     string
	transcript  []entry
	campers     []roster.Camper
	schema      []roster.SegmentOption
	suggestions []string

	instructionsText string

	status    string
	statusOK  bool
	statusSeq int

	awaiting bool
	quitting bool
}

// New constructs the chat model around a running engine.
func New(engine *session.Engine, cfg config.Config) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about the camp..."
	ta.Prompt = "> "
	ta.CharLimit = 2000
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		engine:      engine,
		cfg:         cfg,
		textarea:    ta,
		spinner:     sp,
		styles:      ui.DefaultStyles(),
		headerTitle: "Camp AI",
	}
}

// Init starts the engine and the event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.initializeEngine(),
		m.waitForEvent(),
	)
}

// waitForEvent blocks on the engine's event channel and feeds the result
// back into Update. Re-issued after every engine event.
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return engineEventMsg{event: <-m.engine.Events()}
	}
}

func (m Model) initializeEngine() tea.Cmd {
	return func() tea.Msg {
		m.engine.Initialize(context.Background())
		return nil
	}
}

func (m Model) submit(text string) tea.Cmd {
	return func() tea.Msg {
		m.engine.Submit(context.Background(), text)
		return nil
	}
}

// expireStatus schedules dismissal of the current status line. The sequence
// number keeps a stale timer from wiping a newer status.
func (m Model) expireStatus() tea.Cmd {
	seq := m.statusSeq
	return tea.Tick(m.cfg.StatusTTL(), func(time.Time) tea.Msg {
		return statusExpiredMsg{seq: seq}
	})
}
