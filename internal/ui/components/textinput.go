package components

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/lexiz/internal/ui/theme"
)

// AnswerInput is a single-line answer field that shows a pass or fail
// mark once graded.
type AnswerInput struct {
	Model  textinput.Model
	graded bool
	passed bool
}

// NewAnswerInput creates a focused input capped at limit characters.
func NewAnswerInput(placeholder string, limit int) AnswerInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	if limit > 0 {
		ti.CharLimit = limit
	}
	ti.Focus()
	return AnswerInput{Model: ti}
}

func (a AnswerInput) Init() tea.Cmd {
	return a.Model.Focus()
}

// Update forwards msg to the input. A graded input ignores typing until
// Reset.
func (a AnswerInput) Update(msg tea.Msg) (AnswerInput, tea.Cmd) {
	if a.graded {
		return a, nil
	}
	var cmd tea.Cmd
	a.Model, cmd = a.Model.Update(msg)
	return a, cmd
}

func (a AnswerInput) View() string {
	view := a.Model.View()
	if !a.graded {
		return view
	}
	if a.passed {
		return view + " " + lipgloss.NewStyle().Foreground(theme.Success).Render("✓")
	}
	return view + " " + lipgloss.NewStyle().Foreground(theme.Error).Render("✗")
}

// Value returns the trimmed input.
func (a AnswerInput) Value() string {
	return strings.TrimSpace(a.Model.Value())
}

// Grade freezes the input and records the result.
func (a *AnswerInput) Grade(passed bool) {
	a.graded, a.passed = true, passed
}

// Graded reports whether Grade was called since the last Reset.
func (a AnswerInput) Graded() bool {
	return a.graded
}

// Reset clears the input for the next card.
func (a *AnswerInput) Reset() {
	a.Model.Reset()
	a.graded, a.passed = false, false
}
