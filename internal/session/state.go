package session

import (
	"time"

	"github.com/abhisek/lexiz/internal/spacedrep"
	"github.com/abhisek/lexiz/internal/vocab"
)

// Status is a session's lifecycle state. Completed and abandoned are
// terminal.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// Terminal reports whether s accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Phase is which pass over the cards a session is in.
type Phase string

const (
	// PhasePrimary walks the deck once.
	PhasePrimary Phase = "primary"

	// PhaseRepeat revisits the items rated again or hard during the
	// primary pass.
	PhaseRepeat Phase = "repeat"
)

// Event kinds appended to the event log.
const (
	EventSessionStart   = "session_start"
	EventReviewAnswer   = "review_answer"
	EventReviewRating   = "review_rating"
	EventSessionEnd     = "session_end"
	EventSessionAbandon = "session_abandon"
)

// StudySession is the persisted record of one sitting.
type StudySession struct {
	SessionID       string     `json:"session_id"`
	UserID          string     `json:"user_id"`
	DeckID          string     `json:"deck_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationMs      int64      `json:"duration_ms"`
	Status          Status     `json:"status"`
	CorrectAnswers  int        `json:"correct_answers"`
	TotalAnswers    int        `json:"total_answers"`
	AccuracyPercent float64    `json:"accuracy_percent"`
	Sentiment       *int       `json:"sentiment,omitempty"`

	TotalOriginalCards int `json:"total_original_cards"`
	TotalRepeatedCards int `json:"total_repeated_cards"`

	// UnsyncedEvents counts writes that still failed when the session was
	// finalized.
	UnsyncedEvents int `json:"unsynced_events"`
}

// ReviewEvent is one answer or rating, appended to the event log and never
// mutated.
type ReviewEvent struct {
	SessionID        string           `json:"session_id"`
	ItemID           string           `json:"item_id"`
	Modality         vocab.Modality   `json:"modality,omitempty"`
	IsCorrect        bool             `json:"is_correct"`
	Similarity       int              `json:"similarity"`
	ResponseTimeMs   int64            `json:"response_time_ms"`
	DifficultyRating spacedrep.Rating `json:"difficulty_rating,omitempty"`
	Phase            Phase            `json:"phase"`
}

// Card is what the learner should see next.
type Card struct {
	ItemID       string
	Prompt       string
	PromptLocale string
	AnswerLocale string
	Phase        Phase

	// Position is 1-based within the phase; Total is the phase length.
	Position int
	Total    int

	// Answered is true once an answer was submitted for this card.
	Answered bool

	// Hint is a mnemonic for repeat cards, when one is ready.
	Hint string
}

// AnswerResult reports how one answer was graded.
type AnswerResult struct {
	ItemID   string
	Expected string
	Score    int
	Correct  bool
}

// RatingResult reports what one difficulty rating did.
type RatingResult struct {
	ItemID string
	Rating spacedrep.Rating

	// Queued is true when the rating sent the item to the repeat queue.
	Queued bool

	// Next is the following card, or nil when every card is done.
	Next *Card

	// Outcome is the tracker's update. Nil when the write is still pending.
	Outcome *RatingOutcome
}
