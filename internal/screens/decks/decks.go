// Package decks is the home screen: the learner's decks with what is due
// in each.
package decks

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/lexiz/internal/mastery"
	"github.com/abhisek/lexiz/internal/router"
	"github.com/abhisek/lexiz/internal/screen"
	"github.com/abhisek/lexiz/internal/screens/study"
	"github.com/abhisek/lexiz/internal/ui/components"
	"github.com/abhisek/lexiz/internal/ui/layout"
	"github.com/abhisek/lexiz/internal/ui/theme"
	"github.com/abhisek/lexiz/internal/vocab"
)

// Lister loads deck summaries. *vocab.Repo implements it.
type Lister interface {
	Decks(ctx context.Context, userID string, asOf civil.Date) ([]vocab.DeckSummary, error)
}

type loadedMsg struct {
	decks []vocab.DeckSummary
	err   error
}

// DecksScreen lists decks and opens a study session on the selected one.
type DecksScreen struct {
	lister Lister
	engine study.Engine
	userID string
	loc    *time.Location

	decks  []vocab.DeckSummary
	menu   components.Menu
	loaded bool
	errMsg string
}

var _ screen.Screen = (*DecksScreen)(nil)
var _ screen.KeyHintProvider = (*DecksScreen)(nil)

// New creates the deck list for userID. Due dates are judged in loc.
func New(lister Lister, engine study.Engine, userID string, loc *time.Location) *DecksScreen {
	if loc == nil {
		loc = time.Local
	}
	return &DecksScreen{lister: lister, engine: engine, userID: userID, loc: loc}
}

// Init reloads the list, so due counts are fresh after each session.
func (s *DecksScreen) Init() tea.Cmd {
	lister, userID := s.lister, s.userID
	today := civil.DateOf(time.Now().In(s.loc))
	return func() tea.Msg {
		decks, err := lister.Decks(context.Background(), userID, today)
		return loadedMsg{decks: decks, err: err}
	}
}

func (s *DecksScreen) Title() string {
	return "Decks"
}

func (s *DecksScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Select"},
		{Key: "Enter", Description: "Study"},
		{Key: "q", Description: "Quit"},
	}
}

func (s *DecksScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		s.loaded = true
		if msg.err != nil {
			s.errMsg = msg.err.Error()
			return s, nil
		}
		s.errMsg = ""
		s.setDecks(msg.decks)
		return s, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc":
			return s, tea.Quit
		case "r":
			return s, s.Init()
		}
		var cmd tea.Cmd
		s.menu, cmd = s.menu.Update(msg)
		return s, cmd
	}
	return s, nil
}

// Due returns the number of due items across all decks.
func (s *DecksScreen) Due() int {
	n := 0
	for _, d := range s.decks {
		n += d.Due
	}
	return n
}

func (s *DecksScreen) setDecks(decks []vocab.DeckSummary) {
	selected := ""
	if s.menu.Selected >= 0 && s.menu.Selected < len(s.decks) {
		selected = s.decks[s.menu.Selected].DeckID
	}

	s.decks = decks
	items := make([]components.MenuItem, len(decks))
	for i, d := range decks {
		deckID := d.DeckID
		items[i] = components.MenuItem{
			Label:  deckID,
			Detail: detail(d),
			Action: func() tea.Cmd {
				return func() tea.Msg {
					return router.PushScreenMsg{Screen: study.New(s.engine, s.userID, deckID)}
				}
			},
		}
	}
	s.menu = components.NewMenu(items)
	for i, d := range decks {
		if d.DeckID == selected {
			s.menu.Selected = i
		}
	}
}

func detail(d vocab.DeckSummary) string {
	return fmt.Sprintf("%d words · %d due · %d mastered",
		d.Total, d.Due, d.ByStatus[mastery.StatusMastered])
}

func (s *DecksScreen) View(width, height int) string {
	switch {
	case !s.loaded:
		return layout.Center(theme.Dim.Render("\n\nLoading decks..."), width)
	case s.errMsg != "":
		return layout.Center(theme.Incorrect.Render("\n\nCould not load decks: "+s.errMsg), width)
	case len(s.decks) == 0:
		return layout.Center(theme.Body.Render("\n\nNo decks yet.")+"\n"+
			theme.Dim.Render("Import some words with: lexiz import <file.csv> --deck <name>"), width)
	}
	return "\n" + theme.Subtitle.Width(width).Render("Pick a deck to study") + "\n\n" + s.menu.View()
}
