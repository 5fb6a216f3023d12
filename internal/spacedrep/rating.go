package spacedrep

import (
	"strings"

	"github.com/abhisek/lexiz/internal/apperr"
)

// Rating is the learner's self-reported difficulty for one review.
type Rating string

const (
	Again Rating = "again"
	Hard  Rating = "hard"
	Good  Rating = "good"
	Easy  Rating = "easy"
)

// Ratings lists every rating in ascending order of confidence.
var Ratings = []Rating{Again, Hard, Good, Easy}

// Valid reports whether r is one of the four known ratings.
func (r Rating) Valid() bool {
	switch r {
	case Again, Hard, Good, Easy:
		return true
	}
	return false
}

// Struggled reports whether the learner had trouble recalling the item.
func (r Rating) Struggled() bool {
	return r == Again || r == Hard
}

// ParseRating accepts a rating name (case-insensitive) or its 1-4 key.
func ParseRating(s string) (Rating, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "again", "1":
		return Again, nil
	case "hard", "2":
		return Hard, nil
	case "good", "3":
		return Good, nil
	case "easy", "4":
		return Easy, nil
	}
	return "", apperr.Validation("unknown rating %q", s)
}
