package study

import (
	"github.com/abhisek/lexiz/internal/session"
)

// startedMsg carries the opened session and its first card.
type startedMsg struct {
	Session *session.StudySession
	Card    *session.Card
	Err     error
}

// answeredMsg carries the grade for the current card.
type answeredMsg struct {
	Result *session.AnswerResult
	Err    error
}

// ratedMsg carries the rating outcome and the next card.
type ratedMsg struct {
	Result *session.RatingResult
	Err    error
}

// completedMsg is sent once the session is finalized.
type completedMsg struct {
	Summary *session.SessionSummary
	Err     error
}

// abandonedMsg is sent once the session is closed early.
type abandonedMsg struct {
	Err error
}
