package decks

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lexiz/internal/mastery"
	"github.com/abhisek/lexiz/internal/router"
	"github.com/abhisek/lexiz/internal/vocab"
)

type fakeLister struct {
	decks []vocab.DeckSummary
	err   error
	calls int
}

func (f *fakeLister) Decks(context.Context, string, civil.Date) ([]vocab.DeckSummary, error) {
	f.calls++
	return f.decks, f.err
}

func loaded(t *testing.T, l *fakeLister) *DecksScreen {
	t.Helper()
	s := New(l, nil, "ana", time.UTC)
	out, _ := s.Update(s.Init()())
	return out.(*DecksScreen)
}

func TestDecksScreen_ListsDecks(t *testing.T) {
	l := &fakeLister{decks: []vocab.DeckSummary{
		{DeckID: "french", Total: 10, Due: 2, ByStatus: map[mastery.Status]int{mastery.StatusMastered: 3}},
		{DeckID: "spanish", Total: 4, Due: 4},
	}}
	s := loaded(t, l)

	view := s.View(80, 24)
	assert.Contains(t, view, "french")
	assert.Contains(t, view, "10 words · 2 due · 3 mastered")
	assert.Equal(t, 6, s.Due())
}

func TestDecksScreen_EnterPushesStudy(t *testing.T) {
	s := loaded(t, &fakeLister{decks: []vocab.DeckSummary{{DeckID: "french"}, {DeckID: "spanish"}}})

	s.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	require.NotNil(t, cmd)

	push, ok := cmd().(router.PushScreenMsg)
	require.True(t, ok)
	assert.Equal(t, "Study · spanish", push.Screen.Title())
}

func TestDecksScreen_ReloadKeepsSelection(t *testing.T) {
	l := &fakeLister{decks: []vocab.DeckSummary{{DeckID: "french"}, {DeckID: "spanish"}}}
	s := loaded(t, l)
	s.Update(tea.KeyPressMsg{Code: tea.KeyDown})

	s.Update(s.Init()())
	assert.Equal(t, 2, l.calls)
	assert.Equal(t, 1, s.menu.Selected)
}

func TestDecksScreen_Empty(t *testing.T) {
	s := loaded(t, &fakeLister{})
	assert.Contains(t, s.View(80, 24), "No decks yet.")
}

func TestDecksScreen_LoadError(t *testing.T) {
	s := loaded(t, &fakeLister{err: assert.AnError})
	assert.Contains(t, s.View(80, 24), "Could not load decks")
}
