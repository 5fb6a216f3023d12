package study

import (
	"context"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lexiz/internal/apperr"
	"github.com/abhisek/lexiz/internal/router"
	"github.com/abhisek/lexiz/internal/screen"
	"github.com/abhisek/lexiz/internal/session"
	"github.com/abhisek/lexiz/internal/spacedrep"
	"github.com/abhisek/lexiz/internal/vocab"
)

// fakeEngine serves a fixed list of cards.
type fakeEngine struct {
	cards     []session.Card
	pos       int
	answers   []string
	ratings   []spacedrep.Rating
	sentiment *int
	abandoned bool
	startErr  error
	writeErr  error
}

func (f *fakeEngine) StartSession(_ context.Context, userID, deckID string) (*session.StudySession, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &session.StudySession{SessionID: "s1", UserID: userID, DeckID: deckID, Status: session.StatusInProgress}, nil
}

func (f *fakeEngine) current() *session.Card {
	if f.pos >= len(f.cards) {
		return nil
	}
	c := f.cards[f.pos]
	return &c
}

func (f *fakeEngine) CurrentCard(context.Context, string) (*session.Card, error) {
	return f.current(), nil
}

func (f *fakeEngine) SubmitAnswer(_ context.Context, _, itemID string, _ vocab.Modality, raw string) (*session.AnswerResult, error) {
	f.answers = append(f.answers, raw)
	return &session.AnswerResult{ItemID: itemID, Expected: "gato", Score: 100, Correct: raw == "gato"}, f.writeErr
}

func (f *fakeEngine) SubmitDifficultyRating(_ context.Context, _, itemID string, r spacedrep.Rating) (*session.RatingResult, error) {
	f.ratings = append(f.ratings, r)
	f.pos++
	return &session.RatingResult{ItemID: itemID, Rating: r, Next: f.current()}, nil
}

func (f *fakeEngine) CompleteSession(_ context.Context, id string, sentiment *int) (*session.SessionSummary, error) {
	f.sentiment = sentiment
	return &session.SessionSummary{Session: session.StudySession{SessionID: id, Status: session.StatusCompleted}}, nil
}

func (f *fakeEngine) AbandonSession(_ context.Context, id string) (*session.StudySession, error) {
	f.abandoned = true
	return &session.StudySession{SessionID: id, Status: session.StatusAbandoned}, nil
}

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func specialKey(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

// run feeds msg to the screen and then every message its commands produce.
func run(t *testing.T, s screen.Screen, msg tea.Msg) (screen.Screen, []tea.Msg) {
	t.Helper()
	var out []tea.Msg
	queue := []tea.Msg{msg}
	for len(queue) > 0 {
		var cmd tea.Cmd
		s, cmd = s.Update(queue[0])
		queue = queue[1:]
		for _, m := range drain(cmd) {
			switch m.(type) {
			case startedMsg, answeredMsg, ratedMsg, completedMsg, abandonedMsg:
				queue = append(queue, m)
			default:
				out = append(out, m)
			}
		}
	}
	return s, out
}

func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// typeText sends keys straight to Update, dropping the input's cursor
// commands.
func typeText(s screen.Screen, text string) screen.Screen {
	for _, r := range text {
		s, _ = s.Update(keyPress(r))
	}
	return s
}

func started(t *testing.T, f *fakeEngine) *StudyScreen {
	t.Helper()
	s := New(f, "ana", "spanish")
	out, _ := run(t, s, drain(s.start())[0])
	return out.(*StudyScreen)
}

func twoCards() *fakeEngine {
	return &fakeEngine{cards: []session.Card{
		{ItemID: "cat", Prompt: "cat", PromptLocale: "en", AnswerLocale: "es", Phase: session.PhasePrimary, Position: 1, Total: 2},
		{ItemID: "dog", Prompt: "dog", PromptLocale: "en", AnswerLocale: "es", Phase: session.PhasePrimary, Position: 2, Total: 2},
	}}
}

func TestStudyScreen_FullSession(t *testing.T) {
	f := twoCards()
	s := started(t, f)
	assert.Equal(t, stageAnswering, s.stage)
	assert.Equal(t, "s1", s.SessionID())
	assert.Contains(t, s.View(80, 24), "cat")

	var out screen.Screen = s
	out = typeText(out, "gato")
	out, _ = run(t, out, specialKey(tea.KeyEnter))
	assert.Equal(t, stageRating, s.stage)
	assert.Contains(t, s.View(80, 24), "Correct!")

	out, _ = run(t, out, keyPress('3'))
	assert.Equal(t, stageAnswering, s.stage)
	assert.Equal(t, "dog", s.card.ItemID)
	assert.Empty(t, s.input.Value())

	out = typeText(out, "perro")
	out, _ = run(t, out, specialKey(tea.KeyEnter))
	assert.Contains(t, s.View(80, 24), "Expected: gato")
	out, _ = run(t, out, keyPress('1'))
	assert.Equal(t, stageSentiment, s.stage)

	_, msgs := run(t, out, keyPress('4'))
	require.Len(t, msgs, 1)
	replace, ok := msgs[0].(router.ReplaceScreenMsg)
	require.True(t, ok)
	assert.Equal(t, "Session Summary", replace.Screen.Title())

	assert.Equal(t, []string{"gato", "perro"}, f.answers)
	assert.Equal(t, []spacedrep.Rating{spacedrep.Good, spacedrep.Again}, f.ratings)
	require.NotNil(t, f.sentiment)
	assert.Equal(t, 4, *f.sentiment)
}

func TestStudyScreen_SkipSentiment(t *testing.T) {
	f := twoCards()
	f.cards = f.cards[:1]
	s := started(t, f)

	var out screen.Screen = s
	out = typeText(out, "gato")
	out, _ = run(t, out, specialKey(tea.KeyEnter))
	out, _ = run(t, out, keyPress('4'))
	_, msgs := run(t, out, specialKey(tea.KeyEnter))

	require.Len(t, msgs, 1)
	assert.IsType(t, router.ReplaceScreenMsg{}, msgs[0])
	assert.Nil(t, f.sentiment)
}

func TestStudyScreen_EmptyAnswerIgnored(t *testing.T) {
	f := twoCards()
	s := started(t, f)
	run(t, s, specialKey(tea.KeyEnter))
	assert.Equal(t, stageAnswering, s.stage)
	assert.Empty(t, f.answers)
}

func TestStudyScreen_RatingKeysIgnoredWhileAnswering(t *testing.T) {
	f := twoCards()
	s := started(t, f)
	typeText(s, "3")
	assert.Empty(t, f.ratings)
	assert.Equal(t, "3", s.input.Value())
}

func TestStudyScreen_QuitConfirm(t *testing.T) {
	f := twoCards()
	s := started(t, f)

	run(t, s, specialKey(tea.KeyEscape))
	assert.Equal(t, stageConfirmQuit, s.stage)
	assert.Contains(t, s.View(80, 24), "End session early?")

	run(t, s, keyPress('n'))
	assert.Equal(t, stageAnswering, s.stage)
	assert.False(t, f.abandoned)

	run(t, s, specialKey(tea.KeyEscape))
	_, msgs := run(t, s, keyPress('y'))
	assert.True(t, f.abandoned)
	require.Len(t, msgs, 1)
	assert.IsType(t, router.PopScreenMsg{}, msgs[0])
}

func TestStudyScreen_StoreWarningKeepsGoing(t *testing.T) {
	f := twoCards()
	f.writeErr = apperr.Store("append event", assert.AnError)
	s := started(t, f)

	var out screen.Screen = s
	out = typeText(out, "gato")
	run(t, out, specialKey(tea.KeyEnter))

	assert.Equal(t, stageRating, s.stage)
	assert.NotEmpty(t, s.warn)
	assert.Contains(t, s.View(80, 24), "Saving is behind")
}

func TestStudyScreen_StartFailure(t *testing.T) {
	f := &fakeEngine{startErr: apperr.Validation("deck %q has no items", "spanish")}
	s := started(t, f)
	assert.Equal(t, stageFailed, s.stage)
	assert.Contains(t, s.View(80, 24), "no items")

	_, msgs := run(t, s, keyPress('x'))
	require.Len(t, msgs, 1)
	assert.IsType(t, router.PopScreenMsg{}, msgs[0])
}

func TestStudyScreen_KeyHints(t *testing.T) {
	f := twoCards()
	s := started(t, f)
	assert.Len(t, s.KeyHints(), 2)
	s.stage = stageRating
	assert.Len(t, s.KeyHints(), 4)
}
