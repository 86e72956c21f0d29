// Package ui provides the visual styling for the campchat terminal widget.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Forest palette, matching the embeddable widget's web theme.
	Primary   = lipgloss.Color("#2E7D32") // green
	Accent    = lipgloss.Color("#FF8F00") // amber
	Muted     = lipgloss.Color("#8a9199")
	Border    = lipgloss.Color("#3a4149")
	ErrorRed  = lipgloss.Color("#e53935")
	SuccessOK = lipgloss.Color("#66BB6A")
)

// Styles bundles the lipgloss styles the chat view renders with.
type Styles struct {
	Header     lipgloss.Style
	UserLabel  lipgloss.Style
	BotLabel   lipgloss.Style
	UserText   lipgloss.Style
	Muted      lipgloss.Style
	Thinking   lipgloss.Style
	Suggestion lipgloss.Style
	StatusOK   lipgloss.Style
	StatusErr  lipgloss.Style
	Heading    lipgloss.Style
	Strong     lipgloss.Style
	Em         lipgloss.Style
	Citation   lipgloss.Style
	InputFrame lipgloss.Style
}

// DefaultStyles builds the style set. Styling degrades gracefully on dumb
// terminals via lipgloss's own profile detection.
func DefaultStyles() Styles {
	return Styles{
		Header:     lipgloss.NewStyle().Bold(true).Foreground(Primary).Padding(0, 1),
		UserLabel:  lipgloss.NewStyle().Bold(true).Foreground(Accent).MarginTop(1),
		BotLabel:   lipgloss.NewStyle().Bold(true).Foreground(Primary).MarginTop(1),
		UserText:   lipgloss.NewStyle().PaddingLeft(2),
		Muted:      lipgloss.NewStyle().Foreground(Muted),
		Thinking:   lipgloss.NewStyle().Italic(true).Foreground(Muted),
		Suggestion: lipgloss.NewStyle().Foreground(Accent),
		StatusOK:   lipgloss.NewStyle().Foreground(SuccessOK),
		StatusErr:  lipgloss.NewStyle().Foreground(ErrorRed),
		Heading:    lipgloss.NewStyle().Bold(true).Foreground(Primary),
		Strong:     lipgloss.NewStyle().Bold(true),
		Em:         lipgloss.NewStyle().Italic(true),
		Citation:   lipgloss.NewStyle().Foreground(Muted).PaddingLeft(2),
		InputFrame: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(Border).Padding(0, 1),
	}
}

// NoColor reports whether the NO_COLOR convention is set.
func NoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}
