package summary

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/lexiz/internal/router"
	"github.com/abhisek/lexiz/internal/screen"
	"github.com/abhisek/lexiz/internal/session"
	"github.com/abhisek/lexiz/internal/spacedrep"
	"github.com/abhisek/lexiz/internal/ui/layout"
	"github.com/abhisek/lexiz/internal/ui/theme"
)

// SummaryScreen displays a completed session.
type SummaryScreen struct {
	summary *session.SessionSummary
}

var _ screen.Screen = (*SummaryScreen)(nil)
var _ screen.KeyHintProvider = (*SummaryScreen)(nil)

// New creates a new SummaryScreen.
func New(summary *session.SessionSummary) *SummaryScreen {
	return &SummaryScreen{summary: summary}
}

func (s *SummaryScreen) Init() tea.Cmd {
	return nil
}

func (s *SummaryScreen) Title() string {
	return "Session Summary"
}

func (s *SummaryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Continue"},
		{Key: "Esc", Description: "Decks"},
	}
}

func (s *SummaryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}
	}
	return s, nil
}

func (s *SummaryScreen) View(width, height int) string {
	sum := s.summary
	if sum == nil {
		return ""
	}
	st := sum.Session

	var b strings.Builder
	b.WriteString(layout.Center(theme.Title.Render("Session complete!"), width))
	b.WriteString("\n\n")

	mins := int(sum.Duration.Minutes())
	secs := int(sum.Duration.Seconds()) % 60
	b.WriteString(layout.Center(theme.Dim.Render(fmt.Sprintf("Duration: %d:%02d", mins, secs)), width))
	b.WriteString("\n\n")

	stats := fmt.Sprintf("Answers: %d      Correct: %d      Accuracy: %.0f%%",
		st.TotalAnswers, st.CorrectAnswers, st.AccuracyPercent)
	b.WriteString(layout.Center(theme.Body.Render(stats), width))
	b.WriteString("\n")
	b.WriteString(layout.Center(theme.Dim.Render(fmt.Sprintf("Cards: %d      Repeated: %d",
		st.TotalOriginalCards, st.TotalRepeatedCards)), width))
	b.WriteString("\n")
	if st.UnsyncedEvents > 0 {
		b.WriteString(layout.Center(lipgloss.NewStyle().Foreground(theme.Accent).Render(
			fmt.Sprintf("%d updates could not be saved", st.UnsyncedEvents)), width))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(sum.ItemResults) == 0 {
		return b.String()
	}

	divider := lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", min(width-8, 60)))
	b.WriteString(layout.Center(theme.Dim.Render("Words"), width))
	b.WriteString("\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, divider))
	b.WriteString("\n\n")

	for _, r := range sum.ItemResults {
		line := fmt.Sprintf("%-20s  %d/%d correct   %s", r.Prompt, r.Correct, r.Attempted, ratingLabel(r.LastRating))
		if r.RepeatCount > 0 {
			line += fmt.Sprintf("   repeated %dx", r.RepeatCount)
		}
		style := theme.Body
		if r.Attempted > 0 && r.Correct == r.Attempted {
			style = lipgloss.NewStyle().Foreground(theme.Success)
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(line)))
		b.WriteString("\n")
	}
	return b.String()
}

func ratingLabel(r spacedrep.Rating) string {
	for i, v := range spacedrep.Ratings {
		if v == r {
			return theme.Ratings[i].Render(string(r))
		}
	}
	return theme.Dim.Render("unrated")
}
