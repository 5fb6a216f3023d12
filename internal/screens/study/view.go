package study

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/lexiz/internal/session"
	"github.com/abhisek/lexiz/internal/ui/components"
	"github.com/abhisek/lexiz/internal/ui/layout"
	"github.com/abhisek/lexiz/internal/ui/theme"
)

var ratingLabels = []string{"1 Again", "2 Hard", "3 Good", "4 Easy"}

func (s *StudyScreen) View(width, height int) string {
	switch s.stage {
	case stageLoading:
		return layout.Center(theme.Dim.Render("\n\n\nPreparing your session..."), width)
	case stageFailed:
		return layout.Center(theme.Incorrect.Render(
			fmt.Sprintf("\n\n\nCould not study %s\n\n%s", s.deckID, s.errMsg)), width)
	case stageConfirmQuit:
		return renderQuitConfirm(width)
	case stageSentiment:
		return s.withWarning(s.renderSentiment(width), width)
	}
	return s.withWarning(s.renderCard(width), width)
}

func (s *StudyScreen) withWarning(body string, width int) string {
	if s.warn == "" {
		return body
	}
	return layout.Center(lipgloss.NewStyle().Foreground(theme.Accent).Render("! "+s.warn), width) + "\n" + body
}

func (s *StudyScreen) renderCard(width int) string {
	c := s.card
	if c == nil {
		return ""
	}

	var b strings.Builder

	label := "Cards"
	if c.Phase == session.PhaseRepeat {
		label = "Repeats"
	}
	bar := components.ProgressBar{Label: label, Done: c.Position - 1, Total: c.Total, Width: min(width-8, 60)}
	b.WriteString(layout.Center(bar.View(), width))
	b.WriteString("\n\n")

	prompt := theme.Card.Width(min(width-8, 50)).Align(lipgloss.Center).Render(
		lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render(c.Prompt) + "\n" +
			theme.Dim.Render(c.PromptLocale+" → "+c.AnswerLocale))
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, prompt))
	b.WriteString("\n\n")

	if c.Hint != "" {
		b.WriteString(layout.Center(theme.Hint.Render("Hint: "+c.Hint), width))
		b.WriteString("\n\n")
	}

	b.WriteString(layout.Center("Answer: "+s.input.View(), width))
	b.WriteString("\n\n")

	if s.stage == stageRating && s.answer != nil {
		b.WriteString(s.renderFeedback(width))
	}
	return b.String()
}

func (s *StudyScreen) renderFeedback(width int) string {
	var b strings.Builder
	if s.answer.Correct {
		b.WriteString(layout.Center(theme.Correct.Render("Correct!"), width))
	} else {
		b.WriteString(layout.Center(theme.Incorrect.Render("Not quite"), width))
		b.WriteString("\n")
		b.WriteString(layout.Center(theme.Dim.Render(
			fmt.Sprintf("Expected: %s  (match %d%%)", s.answer.Expected, s.answer.Score)), width))
	}
	b.WriteString("\n\n")
	b.WriteString(layout.Center(theme.Dim.Render("How hard was that?"), width))
	b.WriteString("\n")

	parts := make([]string, len(ratingLabels))
	for i, l := range ratingLabels {
		parts[i] = theme.Ratings[i].Render(l)
	}
	b.WriteString(layout.Center(strings.Join(parts, "    "), width))
	return b.String()
}

func (s *StudyScreen) renderSentiment(width int) string {
	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(layout.Center(theme.Title.Render("All cards done!"), width))
	b.WriteString("\n\n")
	if s.rated != nil && s.rated.Outcome != nil && s.rated.Outcome.Transition != nil {
		t := s.rated.Outcome.Transition
		b.WriteString(layout.Center(theme.Correct.Render(
			fmt.Sprintf("Last word moved %s → %s", t.From, t.To)), width))
		b.WriteString("\n\n")
	}
	b.WriteString(layout.Center(theme.Body.Render("How did this session feel? (1 = rough, 5 = great)"), width))
	b.WriteString("\n")
	b.WriteString(layout.Center(theme.Dim.Render("Press Enter to skip."), width))
	return b.String()
}

func renderQuitConfirm(width int) string {
	var b strings.Builder
	b.WriteString("\n\n\n")
	b.WriteString(layout.Center(theme.Body.Bold(true).Render("End session early?"), width))
	b.WriteString("\n")
	b.WriteString(layout.Center(theme.Dim.Render("Answers so far are kept."), width))
	b.WriteString("\n\n")
	b.WriteString(layout.Center(lipgloss.NewStyle().Foreground(theme.Success).Render("[Y] Yes, end session"), width))
	b.WriteString("\n")
	b.WriteString(layout.Center(lipgloss.NewStyle().Foreground(theme.Primary).Render("[N] No, keep going"), width))
	return b.String()
}
