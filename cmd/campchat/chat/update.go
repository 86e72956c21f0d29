package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"campchat/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Update is the bubbletea update loop.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 1
		footerHeight := m.textarea.Height() + 4
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.textarea.SetWidth(msg.Width - 4)
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			m.engine.Close()
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.textarea.Value())
			if text == "" {
				return m, nil
			}
			m.textarea.Reset()
			if strings.HasPrefix(text, "/") {
				return m.handleCommand(text)
			}
			if m.awaiting {
				return m, nil
			}
			return m, m.submit(text)
		default:
			// Digit keys pick a suggestion while the chips are visible and
			// the input line is otherwise empty.
			if len(m.suggestions) > 0 && m.textarea.Value() == "" {
				if n, err := strconv.Atoi(msg.String()); err == nil && n >= 1 && n <= len(m.suggestions) {
					if m.awaiting {
						return m, nil
					}
					return m, m.submit(m.suggestions[n-1])
				}
			}
		}

	case engineEventMsg:
		cmd := m.applyEngineEvent(msg.event)
		cmds = append(cmds, m.waitForEvent())
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case statusExpiredMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(taCmd, vpCmd)
}

// applyEngineEvent folds one session event into the view state.
func (m *Model) applyEngineEvent(ev session.Event) tea.Cmd {
	switch ev := ev.(type) {
	case session.StateChanged:
		m.awaiting = ev.To == session.AwaitingResponse

	case session.CampsLoaded:
		m.camps = ev.Camps

	case session.CampSwitched:
		m.headerTitle = ev.Title

	case session.TranscriptCleared:
		m.transcript = nil
		m.refreshViewport()

	case session.WelcomeChanged:
		m.welcome = ev.Text
		m.refreshViewport()

	case session.UserTurnAdded:
		m.transcript = append(m.transcript, entry{role: "user", text: ev.Text})
		m.refreshViewport()

	case session.ThinkingPhrase:
		if n := len(m.transcript); n > 0 && m.transcript[n-1].thinking {
			m.transcript[n-1].text = ev.Text
		} else {
			m.transcript = append(m.transcript, entry{role: "bot", text: ev.Text, thinking: true})
		}
		m.refreshViewport()

	case session.ThinkingStopped:
		if n := len(m.transcript); n > 0 && m.transcript[n-1].thinking {
			m.transcript = m.transcript[:n-1]
		}
		m.refreshViewport()

	case session.AssistantStarted:
		m.transcript = append(m.transcript, entry{role: "bot"})
		m.refreshViewport()

	case session.AssistantUpdated:
		if n := len(m.transcript); n > 0 && m.transcript[n-1].role == "bot" {
			m.transcript[n-1].text = ev.Text
			m.transcript[n-1].blocks = ev.Blocks
		}
		m.refreshViewport()

	case session.AssistantCompleted:
		if n := len(m.transcript); n > 0 && m.transcript[n-1].role == "bot" {
			m.transcript[n-1].citations = ev.Citations
		}
		m.refreshViewport()

	case session.AssistantFailed:
		// The failure text already streamed in as the synthetic delta; keep
		// it on screen.
		m.refreshViewport()

	case session.Notice:
		m.transcript = append(m.transcript, entry{role: "notice", text: ev.Text})
		m.refreshViewport()

	case session.SchemaLoaded:
		m.schema = ev.Schema

	case session.RosterChanged:
		m.campers = ev.Campers

	case session.SuggestionsShown:
		m.suggestions = ev.Questions
		m.refreshViewport()

	case session.SuggestionsHidden:
		m.suggestions = nil
		m.refreshViewport()

	case session.InstructionStatus:
		m.status = ev.Text
		m.statusOK = ev.OK
		m.statusSeq++
		return m.expireStatus()

	case session.InstructionsLoaded:
		m.instructionsText = ev.Text
	}
	return nil
}

// handleCommand dispatches a /command line.
func (m Model) handleCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		m.quitting = true
		m.engine.Close()
		return m, tea.Quit

	case "/help":
		return m.notify(helpText, true)

	case "/reset":
		return m, func() tea.Msg {
			m.engine.Reset(context.Background())
			return nil
		}

	case "/camps":
		var sb strings.Builder
		sb.WriteString("Available camps:")
		for i, c := range m.camps {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, c.Name))
		}
		if len(m.camps) == 0 {
			sb.WriteString(" none")
		}
		return m.notice(sb.String())

	case "/camp":
		if len(args) == 0 {
			return m.notify("usage: /camp <number|id|none>", false)
		}
		id := args[0]
		if id == "none" {
			m.engine.ClearCamp()
			return m, nil
		}
		if n, err := strconv.Atoi(id); err == nil && n >= 1 && n <= len(m.camps) {
			id = m.camps[n-1].ID
		}
		return m, func() tea.Msg {
			m.engine.SwitchCamp(context.Background(), id)
			return nil
		}

	case "/camper":
		return m.handleCamperCommand(args)

	case "/instructions":
		return m.handleInstructionsCommand(args)

	default:
		return m.notify("Unknown command "+cmd+" (try /help)", false)
	}
}

func (m Model) handleCamperCommand(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m.notice(m.renderRoster())
	}
	switch args[0] {
	case "add":
		m.engine.AddCamper()
		return m, nil
	case "remove":
		if len(args) < 2 {
			return m.notify("usage: /camper remove <id>", false)
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return m.notify("camper id must be a number", false)
		}
		return m, func() tea.Msg {
			m.engine.RemoveCamper(context.Background(), id)
			return nil
		}
	case "name":
		if len(args) == 2 {
			// Offer the known registrant names when none is given.
			var sb strings.Builder
			sb.WriteString("Known registrants:")
			for _, n := range m.cfg.Engine.CamperNames {
				sb.WriteString("\n  " + n)
			}
			return m.notice(sb.String())
		}
		if len(args) < 3 {
			return m.notify("usage: /camper name <id> <full name>", false)
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return m.notify("camper id must be a number", false)
		}
		name := strings.Join(args[2:], " ")
		return m, func() tea.Msg {
			m.engine.SetCamperName(context.Background(), id, name)
			return nil
		}
	case "segment":
		// /camper segment <id> <label>=<value>; empty value clears.
		if len(args) < 3 {
			return m.notify("usage: /camper segment <id> <label>=<value>", false)
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return m.notify("camper id must be a number", false)
		}
		pair := strings.Join(args[2:], " ")
		label, value, found := strings.Cut(pair, "=")
		if !found {
			return m.notify("usage: /camper segment <id> <label>=<value>", false)
		}
		return m, func() tea.Msg {
			m.engine.SetCamperSegment(context.Background(), id, strings.TrimSpace(label), strings.TrimSpace(value))
			return nil
		}
	default:
		return m.notify("usage: /camper [add|remove|name|segment]", false)
	}
}

func (m Model) handleInstructionsCommand(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 || args[0] == "show" {
		if m.instructionsText == "" {
			return m.notice("No custom instructions configured for this camp.")
		}
		return m.notice("Custom instructions:\n" + m.instructionsText)
	}
	switch args[0] {
	case "set":
		text := strings.TrimSpace(strings.TrimPrefix(strings.Join(args, " "), "set"))
		if text == "" {
			return m.notify("usage: /instructions set <text>", false)
		}
		return m, func() tea.Msg {
			m.engine.SaveInstructions(context.Background(), text)
			return nil
		}
	case "delete":
		// Deletion is destructive, so it requires the explicit confirm word.
		if len(args) < 2 || args[1] != "confirm" {
			return m.notify("deleting removes the camp's custom instructions; run /instructions delete confirm", false)
		}
		return m, func() tea.Msg {
			m.engine.DeleteInstructions(context.Background())
			return nil
		}
	case "reload":
		return m, func() tea.Msg {
			m.engine.LoadInstructions(context.Background())
			return nil
		}
	default:
		return m.notify("usage: /instructions [show|set|delete|reload]", false)
	}
}

func (m Model) renderRoster() string {
	var sb strings.Builder
	sb.WriteString("Campers:")
	for _, c := range m.campers {
		name := c.Name
		if name == "" {
			name = "(unnamed)"
		}
		sb.WriteString(fmt.Sprintf("\n  %d. %s", c.ID, name))
		for _, opt := range m.schema {
			if v, ok := c.Segments[opt.Label]; ok {
				sb.WriteString(fmt.Sprintf(" [%s: %s]", opt.Label, v))
			}
		}
	}
	return sb.String()
}

// notice appends an informational transcript row locally.
func (m Model) notice(text string) (tea.Model, tea.Cmd) {
	m.transcript = append(m.transcript, entry{role: "notice", text: text})
	m.refreshViewport()
	return m, nil
}

// notify shows a transient status line.
func (m Model) notify(text string, ok bool) (tea.Model, tea.Cmd) {
	m.status = text
	m.statusOK = ok
	m.statusSeq++
	return m, m.expireStatus()
}

const helpText = `Commands: /camps, /camp <n|none>, /camper [add|remove|name|segment], /instructions [show|set|delete|reload], /reset, /quit`
