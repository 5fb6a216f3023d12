package vocab

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/abhisek/lexiz/internal/apperr"
	"github.com/abhisek/lexiz/internal/mastery"
	"github.com/abhisek/lexiz/internal/spacedrep"
)

// Modality is how an answer was given.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityVoice Modality = "voice"
)

// ParseModality validates a modality name.
func ParseModality(s string) (Modality, error) {
	switch m := Modality(strings.ToLower(strings.TrimSpace(s))); m {
	case ModalityText, ModalityVoice:
		return m, nil
	}
	return "", apperr.Validation("unknown modality %q", s)
}

// Item is one vocabulary unit owned by a learner.
type Item struct {
	ItemID       string `json:"item_id"`
	UserID       string `json:"user_id"`
	DeckID       string `json:"deck_id"`
	PromptText   string `json:"prompt_text"`
	AnswerText   string `json:"answer_text"`
	PromptLocale string `json:"prompt_locale,omitempty"`
	AnswerLocale string `json:"answer_locale,omitempty"`

	Interval   int            `json:"interval"`
	EaseFactor float64        `json:"ease_factor"`
	DueDate    civil.Date     `json:"due_date"`
	Status     mastery.Status `json:"status"`

	TextCorrect    int `json:"text_correct"`
	TextIncorrect  int `json:"text_incorrect"`
	VoiceCorrect   int `json:"voice_correct"`
	VoiceIncorrect int `json:"voice_incorrect"`

	LastRating     spacedrep.Rating `json:"last_rating,omitempty"`
	LastReviewedAt *time.Time       `json:"last_reviewed_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewItem creates an unstudied item that is due immediately.
func NewItem(userID, deckID, itemID, prompt, answer string, today civil.Date, now time.Time) *Item {
	return &Item{
		ItemID:     itemID,
		UserID:     userID,
		DeckID:     deckID,
		PromptText: prompt,
		AnswerText: answer,
		Interval:   spacedrep.MinInterval,
		EaseFactor: spacedrep.DefaultEase,
		DueDate:    today,
		Status:     mastery.StatusNotStarted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Record increments the counter for one graded answer.
func (it *Item) Record(m Modality, correct bool) {
	switch {
	case m == ModalityVoice && correct:
		it.VoiceCorrect++
	case m == ModalityVoice:
		it.VoiceIncorrect++
	case correct:
		it.TextCorrect++
	default:
		it.TextIncorrect++
	}
}

// Attempts returns the number of graded answers across both modalities.
func (it *Item) Attempts() int {
	return it.TextCorrect + it.TextIncorrect + it.VoiceCorrect + it.VoiceIncorrect
}

// Accuracy returns the share of correct answers in [0, 1].
func (it *Item) Accuracy() float64 {
	n := it.Attempts()
	if n == 0 {
		return 0
	}
	return float64(it.TextCorrect+it.VoiceCorrect) / float64(n)
}

// Validate checks the fields every stored item must carry.
func (it *Item) Validate() error {
	switch {
	case it.UserID == "":
		return apperr.Validation("item %q has no user", it.ItemID)
	case it.ItemID == "":
		return apperr.Validation("item has no id")
	case strings.TrimSpace(it.PromptText) == "":
		return apperr.Validation("item %q has an empty prompt", it.ItemID)
	case it.Interval < spacedrep.MinInterval:
		return apperr.Validation("item %q has interval %d", it.ItemID, it.Interval)
	case it.EaseFactor < spacedrep.MinEase || it.EaseFactor > spacedrep.MaxEase:
		return apperr.Validation("item %q has ease %v", it.ItemID, it.EaseFactor)
	case !it.Status.Valid():
		return apperr.Validation("item %q has status %q", it.ItemID, it.Status)
	}
	return nil
}
