package spacedrep

import (
	"fmt"
	"math"

	"cloud.google.com/go/civil"

	"github.com/abhisek/lexiz/internal/apperr"
)

const (
	// MinEase and MaxEase bound the ease factor after every review.
	MinEase = 1.3
	MaxEase = 2.5

	// DefaultEase is the ease factor of a newly added item.
	DefaultEase = MaxEase

	// MinInterval is the shortest review interval in days.
	MinInterval = 1

	// MaxInterval caps runaway growth from long easy streaks.
	MaxInterval = 36500

	// GraduationIntervalDays is the interval an item must exceed to count
	// as mastered.
	GraduationIntervalDays = 30
)

const (
	hardMultiplier = 1.2
	easyMultiplier = 1.3
	againEaseDelta = -0.2
	hardEaseDelta  = -0.15
	easyEaseDelta  = 0.15
)

// Result is the outcome of scheduling one rated review.
type Result struct {
	Interval int
	Ease     float64
	Due      civil.Date

	// Graduated is true when Interval exceeds GraduationIntervalDays.
	Graduated bool
}

// Validate checks scheduler input. Callers run it before Schedule, which
// treats bad input as a programming error.
func Validate(interval int, ease float64, rating Rating) error {
	if interval < MinInterval {
		return apperr.Validation("interval %d is below %d", interval, MinInterval)
	}
	if math.IsNaN(ease) || ease <= 0 {
		return apperr.Validation("ease factor %v must be positive", ease)
	}
	if !rating.Valid() {
		return apperr.Validation("unknown rating %q", rating)
	}
	return nil
}

// Schedule computes the next interval, ease factor and due date for an
// item reviewed on today.
//
//	again  interval 1                      ease -0.20
//	hard   round(interval * 1.2), min 1    ease -0.15
//	good   round(interval * ease)          ease unchanged
//	easy   round(interval * ease * 1.3)    ease +0.15
//
// Growth uses the ease factor from before the review. The new ease is
// clamped to [MinEase, MaxEase]. Schedule panics on input Validate rejects.
func Schedule(interval int, ease float64, rating Rating, today civil.Date) Result {
	if err := Validate(interval, ease, rating); err != nil {
		panic(fmt.Sprintf("spacedrep: %v", err))
	}

	var next int
	var delta float64
	switch rating {
	case Again:
		next, delta = MinInterval, againEaseDelta
	case Hard:
		next, delta = roundDays(float64(interval)*hardMultiplier), hardEaseDelta
	case Good:
		next = roundDays(float64(interval) * ease)
	case Easy:
		next, delta = roundDays(float64(interval)*ease*easyMultiplier), easyEaseDelta
	}

	return Result{
		Interval:  next,
		Ease:      ClampEase(ease + delta),
		Due:       today.AddDays(next),
		Graduated: next > GraduationIntervalDays,
	}
}

// ClampEase bounds e to [MinEase, MaxEase], rounded to two decimals so
// repeated deltas do not accumulate float drift.
func ClampEase(e float64) float64 {
	e = math.Round(e*100) / 100
	return math.Min(MaxEase, math.Max(MinEase, e))
}

// roundDays rounds half away from zero into [MinInterval, MaxInterval].
func roundDays(d float64) int {
	d = math.Round(d)
	switch {
	case d < MinInterval:
		return MinInterval
	case d > MaxInterval:
		return MaxInterval
	}
	return int(d)
}
