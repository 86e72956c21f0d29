package chat

import (
	"fmt"
	"strings"

	"campchat/internal/markdown"

	"github.com/charmbracelet/lipgloss"
)

// View renders the full widget frame.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading camps...\n"
	}

	header := m.styles.Header.Render(m.headerTitle)

	var footer strings.Builder
	if m.status != "" {
		style := m.styles.StatusErr
		if m.statusOK {
			style = m.styles.StatusOK
		}
		footer.WriteString(style.Render(m.status) + "\n")
	}
	footer.WriteString(m.styles.InputFrame.Render(m.textarea.View()))
	footer.WriteString("\n" + m.styles.Muted.Render("enter to send · /help for commands · esc to quit"))

	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), footer.String())
}

// refreshViewport rebuilds the transcript pane and pins it to the bottom.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	var sb strings.Builder

	if m.welcome != "" {
		sb.WriteString(m.styles.BotLabel.Render("Assistant") + "\n")
		sb.WriteString(m.welcome + "\n")
	}

	for _, e := range m.transcript {
		switch e.role {
		case "user":
			sb.WriteString(m.styles.UserLabel.Render("You") + "\n")
			sb.WriteString(m.styles.UserText.Render(e.text) + "\n")
		case "notice":
			sb.WriteString(m.styles.Muted.Render(e.text) + "\n")
		default: // bot
			if e.thinking {
				sb.WriteString(m.spinner.View() + " " + m.styles.Thinking.Render(e.text) + "\n")
				continue
			}
			sb.WriteString(m.styles.BotLabel.Render("Assistant") + "\n")
			if len(e.blocks) > 0 {
				sb.WriteString(m.renderBlocks(e.blocks))
			} else if e.text != "" {
				sb.WriteString(e.text + "\n")
			}
			for _, c := range e.citations {
				sb.WriteString(m.styles.Citation.Render(fmt.Sprintf("source: %s (%.2f)", c.Source, c.Score)) + "\n")
			}
		}
	}

	if len(m.suggestions) > 0 {
		sb.WriteString("\n" + m.styles.Muted.Render("Suggested questions:") + "\n")
		for i, q := range m.suggestions {
			sb.WriteString(m.styles.Suggestion.Render(fmt.Sprintf("  %d. %s", i+1, q)) + "\n")
		}
	}

	return sb.String()
}

// renderBlocks turns the markdown tree into styled terminal text. The tree
// arrives prefix-stable during streaming, so re-rendering on every delta
// only ever extends what was previously on screen.
func (m Model) renderBlocks(blocks []markdown.Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		switch b.Kind {
		case markdown.BlockHeading:
			sb.WriteString(m.styles.Heading.Render(m.renderSpans(b.Spans)) + "\n")
		case markdown.BlockList:
			for _, item := range b.Items {
				sb.WriteString("  • " + m.renderSpans(item) + "\n")
			}
		default:
			sb.WriteString(m.renderSpans(b.Spans) + "\n")
		}
	}
	return sb.String()
}

func (m Model) renderSpans(spans []markdown.Span) string {
	var sb strings.Builder
	for _, s := range spans {
		switch s.Kind {
		case markdown.SpanStrong:
			sb.WriteString(m.styles.Strong.Render(s.Text))
		case markdown.SpanEm:
			sb.WriteString(m.styles.Em.Render(s.Text))
		default:
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}
