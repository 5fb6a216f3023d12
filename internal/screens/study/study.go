// Package study is the flashcard screen: it drives one study session
// from the first card to the summary.
package study

import (
	"context"
	"errors"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/lexiz/internal/apperr"
	"github.com/abhisek/lexiz/internal/router"
	"github.com/abhisek/lexiz/internal/screen"
	"github.com/abhisek/lexiz/internal/screens/summary"
	"github.com/abhisek/lexiz/internal/session"
	"github.com/abhisek/lexiz/internal/spacedrep"
	"github.com/abhisek/lexiz/internal/ui/components"
	"github.com/abhisek/lexiz/internal/ui/layout"
	"github.com/abhisek/lexiz/internal/vocab"
)

// Engine is the part of *session.Engine the screen drives.
type Engine interface {
	StartSession(ctx context.Context, userID, deckID string) (*session.StudySession, error)
	CurrentCard(ctx context.Context, sessionID string) (*session.Card, error)
	SubmitAnswer(ctx context.Context, sessionID, itemID string, m vocab.Modality, raw string) (*session.AnswerResult, error)
	SubmitDifficultyRating(ctx context.Context, sessionID, itemID string, r spacedrep.Rating) (*session.RatingResult, error)
	CompleteSession(ctx context.Context, sessionID string, sentiment *int) (*session.SessionSummary, error)
	AbandonSession(ctx context.Context, sessionID string) (*session.StudySession, error)
}

type stage int

const (
	stageLoading stage = iota
	stageAnswering
	stageRating
	stageSentiment
	stageConfirmQuit
	stageFailed
)

// ratingKeys maps the number row to difficulty ratings.
var ratingKeys = map[string]spacedrep.Rating{
	"1": spacedrep.Again,
	"2": spacedrep.Hard,
	"3": spacedrep.Good,
	"4": spacedrep.Easy,
}

// StudyScreen implements screen.Screen for an active session.
type StudyScreen struct {
	engine Engine
	userID string
	deckID string

	sess   *session.StudySession
	card   *session.Card
	answer *session.AnswerResult
	rated  *session.RatingResult
	input  components.AnswerInput

	stage     stage
	prevStage stage
	busy      bool

	// warn is shown above the card when a write is still pending.
	warn   string
	errMsg string
}

var _ screen.Screen = (*StudyScreen)(nil)
var _ screen.KeyHintProvider = (*StudyScreen)(nil)

// New creates a StudyScreen that opens a session on Init.
func New(engine Engine, userID, deckID string) *StudyScreen {
	return &StudyScreen{
		engine: engine,
		userID: userID,
		deckID: deckID,
		input:  components.NewAnswerInput("Type the answer...", 120),
	}
}

// SessionID returns the open session's ID, or "" before it starts.
func (s *StudyScreen) SessionID() string {
	if s.sess == nil {
		return ""
	}
	return s.sess.SessionID
}

func (s *StudyScreen) Init() tea.Cmd {
	if s.sess != nil {
		return nil
	}
	return tea.Batch(s.start(), s.input.Init())
}

func (s *StudyScreen) Title() string {
	return "Study · " + s.deckID
}

func (s *StudyScreen) KeyHints() []layout.KeyHint {
	switch s.stage {
	case stageAnswering:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Check"},
			{Key: "Esc", Description: "Quit"},
		}
	case stageRating:
		return []layout.KeyHint{
			{Key: "1", Description: "Again"},
			{Key: "2", Description: "Hard"},
			{Key: "3", Description: "Good"},
			{Key: "4", Description: "Easy"},
		}
	case stageSentiment:
		return []layout.KeyHint{
			{Key: "1-5", Description: "Rate session"},
			{Key: "Enter", Description: "Skip"},
		}
	case stageConfirmQuit:
		return []layout.KeyHint{
			{Key: "Y", Description: "End session"},
			{Key: "N", Description: "Keep going"},
		}
	case stageFailed:
		return []layout.KeyHint{{Key: "any key", Description: "Back"}}
	}
	return nil
}

func (s *StudyScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		return s.handleStarted(msg)
	case answeredMsg:
		return s.handleAnswered(msg)
	case ratedMsg:
		return s.handleRated(msg)
	case completedMsg:
		return s.handleCompleted(msg)
	case abandonedMsg:
		return s.handleAbandoned(msg)
	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	if s.stage == stageAnswering {
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *StudyScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()

	if s.stage == stageFailed {
		return s, popCmd
	}
	if s.busy {
		return s, nil
	}

	switch s.stage {
	case stageConfirmQuit:
		switch key {
		case "y", "Y":
			s.busy = true
			return s, s.abandon()
		case "n", "N", "esc":
			s.stage = s.prevStage
		}
		return s, nil

	case stageAnswering:
		switch key {
		case "esc":
			s.confirmQuit()
			return s, nil
		case "enter":
			if s.input.Value() == "" {
				return s, nil
			}
			s.busy = true
			return s, s.submitAnswer(s.input.Value())
		}
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd

	case stageRating:
		if key == "esc" {
			s.confirmQuit()
			return s, nil
		}
		if r, ok := ratingKeys[key]; ok {
			s.busy = true
			return s, s.rate(r)
		}

	case stageSentiment:
		switch key {
		case "esc":
			s.confirmQuit()
		case "enter":
			s.busy = true
			return s, s.complete(nil)
		case "1", "2", "3", "4", "5":
			v := int(key[0] - '0')
			s.busy = true
			return s, s.complete(&v)
		}
	}
	return s, nil
}

func (s *StudyScreen) confirmQuit() {
	s.prevStage = s.stage
	s.stage = stageConfirmQuit
}

func (s *StudyScreen) handleStarted(msg startedMsg) (screen.Screen, tea.Cmd) {
	if msg.Session == nil {
		s.fail(msg.Err)
		return s, nil
	}
	s.sess = msg.Session
	s.setWarning(msg.Err)
	if msg.Card == nil {
		s.stage = stageSentiment
		return s, nil
	}
	s.showCard(msg.Card)
	return s, nil
}

func (s *StudyScreen) handleAnswered(msg answeredMsg) (screen.Screen, tea.Cmd) {
	s.busy = false
	if msg.Result == nil {
		s.setWarning(msg.Err)
		return s, nil
	}
	s.setWarning(msg.Err)
	s.answer = msg.Result
	s.input.Grade(msg.Result.Correct)
	s.stage = stageRating
	return s, nil
}

func (s *StudyScreen) handleRated(msg ratedMsg) (screen.Screen, tea.Cmd) {
	s.busy = false
	if msg.Result == nil {
		s.setWarning(msg.Err)
		return s, nil
	}
	s.setWarning(msg.Err)
	s.rated = msg.Result
	if msg.Result.Next == nil {
		s.stage = stageSentiment
		return s, nil
	}
	s.showCard(msg.Result.Next)
	return s, nil
}

func (s *StudyScreen) handleCompleted(msg completedMsg) (screen.Screen, tea.Cmd) {
	s.busy = false
	if msg.Err != nil {
		// The session stays live; the learner can try again.
		s.setWarning(msg.Err)
		return s, nil
	}
	sum := msg.Summary
	return s, func() tea.Msg {
		return router.ReplaceScreenMsg{Screen: summary.New(sum)}
	}
}

func (s *StudyScreen) handleAbandoned(msg abandonedMsg) (screen.Screen, tea.Cmd) {
	s.busy = false
	if msg.Err != nil && !errors.Is(msg.Err, apperr.ErrInvalidState) {
		s.setWarning(msg.Err)
		s.stage = s.prevStage
		return s, nil
	}
	return s, popCmd
}

func (s *StudyScreen) showCard(c *session.Card) {
	s.card = c
	s.answer = nil
	s.input.Reset()
	s.stage = stageAnswering
}

func (s *StudyScreen) fail(err error) {
	s.stage = stageFailed
	if err == nil {
		err = errors.New("could not start a session")
	}
	s.errMsg = err.Error()
}

// setWarning shows err when set and clears the banner otherwise.
func (s *StudyScreen) setWarning(err error) {
	if err == nil {
		s.warn = ""
		return
	}
	if errors.Is(err, apperr.ErrStore) {
		s.warn = "Saving is behind; progress will sync on the next step."
		return
	}
	s.warn = err.Error()
}

func popCmd() tea.Msg {
	return router.PopScreenMsg{}
}

func (s *StudyScreen) start() tea.Cmd {
	engine, userID, deckID := s.engine, s.userID, s.deckID
	return func() tea.Msg {
		ctx := context.Background()
		sess, err := engine.StartSession(ctx, userID, deckID)
		if sess == nil {
			return startedMsg{Err: err}
		}
		card, cerr := engine.CurrentCard(ctx, sess.SessionID)
		if cerr != nil {
			err = errors.Join(err, cerr)
		}
		return startedMsg{Session: sess, Card: card, Err: err}
	}
}

func (s *StudyScreen) submitAnswer(raw string) tea.Cmd {
	engine, id, itemID := s.engine, s.sess.SessionID, s.card.ItemID
	return func() tea.Msg {
		res, err := engine.SubmitAnswer(context.Background(), id, itemID, vocab.ModalityText, raw)
		return answeredMsg{Result: res, Err: err}
	}
}

func (s *StudyScreen) rate(r spacedrep.Rating) tea.Cmd {
	engine, id, itemID := s.engine, s.sess.SessionID, s.card.ItemID
	return func() tea.Msg {
		res, err := engine.SubmitDifficultyRating(context.Background(), id, itemID, r)
		return ratedMsg{Result: res, Err: err}
	}
}

func (s *StudyScreen) complete(sentiment *int) tea.Cmd {
	engine, id := s.engine, s.sess.SessionID
	return func() tea.Msg {
		sum, err := engine.CompleteSession(context.Background(), id, sentiment)
		return completedMsg{Summary: sum, Err: err}
	}
}

func (s *StudyScreen) abandon() tea.Cmd {
	engine, id := s.engine, s.SessionID()
	return func() tea.Msg {
		if id == "" {
			return abandonedMsg{}
		}
		_, err := engine.AbandonSession(context.Background(), id)
		return abandonedMsg{Err: err}
	}
}
