// Package tracker applies answers and difficulty ratings to a learner's
// items: accuracy counters, the spaced-repetition schedule and the mastery
// status.
package tracker

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"

	"github.com/abhisek/lexiz/internal/apperr"
	"github.com/abhisek/lexiz/internal/keylock"
	"github.com/abhisek/lexiz/internal/logger"
	"github.com/abhisek/lexiz/internal/mastery"
	"github.com/abhisek/lexiz/internal/reminders"
	"github.com/abhisek/lexiz/internal/similarity"
	"github.com/abhisek/lexiz/internal/spacedrep"
	"github.com/abhisek/lexiz/internal/store"
	"github.com/abhisek/lexiz/internal/vocab"
)

// ReminderScheduler queues a short-term practice nudge after a struggled
// rating. *reminders.Queue implements it.
type ReminderScheduler interface {
	Schedule(ctx context.Context, userID, itemID string, r spacedrep.Rating, now time.Time) (*reminders.Reminder, error)
}

// Options configures a Tracker. Zero values take defaults.
type Options struct {
	Locker    keylock.Locker
	Reminders ReminderScheduler
	Grader    similarity.Grader
	Policy    mastery.Policy

	// Location decides which calendar day "today" is for scheduling.
	Location *time.Location

	Log *logger.Logger
}

// RatingOutcome describes what one difficulty rating changed.
type RatingOutcome struct {
	Item             *vocab.Item
	PreviousInterval int
	PreviousEase     float64
	Transition       *mastery.Transition
	ReminderAt       *time.Time
}

// Tracker is the Word Performance Tracker.
type Tracker struct {
	items *vocab.Repo
	opts  Options
	log   *logger.Logger
	now   func() time.Time
}

// New creates a Tracker over items.
func New(items *vocab.Repo, opts Options) *Tracker {
	if opts.Locker == nil {
		opts.Locker = keylock.NewLocal()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Tracker{
		items: items,
		opts:  opts,
		log:   logger.OrNop(opts.Log).With("service", "Tracker"),
		now:   time.Now,
	}
}

// RecordAnswer increments the counter matching modality and correctness.
func (t *Tracker) RecordAnswer(ctx context.Context, userID, itemID string, m vocab.Modality, correct bool) (*vocab.Item, error) {
	if _, err := vocab.ParseModality(string(m)); err != nil {
		return nil, err
	}

	var out *vocab.Item
	err := t.update(ctx, userID, itemID, func(it *vocab.Item, now time.Time) error {
		it.Record(m, correct)
		it.UpdatedAt = now
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordSpokenAnswer grades a transcribed answer against the item's
// expected text and records the result as a voice answer.
func (t *Tracker) RecordSpokenAnswer(ctx context.Context, userID, itemID, detected string) (similarity.Grade, error) {
	var g similarity.Grade
	err := t.update(ctx, userID, itemID, func(it *vocab.Item, now time.Time) error {
		g = t.opts.Grader.Voice(detected, it.AnswerText)
		it.Record(vocab.ModalityVoice, g.Passed)
		it.UpdatedAt = now
		return nil
	})
	return g, err
}

// RecordDifficultyRating reschedules the item from rating r as of now and
// updates its mastery status. Struggled ratings also queue a practice
// reminder; a failed reminder is logged and never fails the rating.
func (t *Tracker) RecordDifficultyRating(ctx context.Context, userID, itemID string, r spacedrep.Rating, now time.Time) (*RatingOutcome, error) {
	if !r.Valid() {
		return nil, apperr.Validation("unknown rating %q", r)
	}

	var out *RatingOutcome
	err := t.update(ctx, userID, itemID, func(it *vocab.Item, _ time.Time) error {
		if err := spacedrep.Validate(it.Interval, it.EaseFactor, r); err != nil {
			return err
		}

		today := civil.DateOf(now.In(t.opts.Location))
		res := spacedrep.Schedule(it.Interval, it.EaseFactor, r, today)
		tr := t.opts.Policy.Next(it.ItemID, it.Status, r, res)

		out = &RatingOutcome{
			PreviousInterval: it.Interval,
			PreviousEase:     it.EaseFactor,
			Transition:       tr,
		}

		it.Interval = res.Interval
		it.EaseFactor = res.Ease
		it.DueDate = res.Due
		if tr != nil {
			it.Status = tr.To
		}
		it.LastRating = r
		reviewed := now
		it.LastReviewedAt = &reviewed
		it.UpdatedAt = now
		out.Item = it
		return nil
	})
	if err != nil {
		return nil, err
	}

	if tr := out.Transition; tr != nil {
		t.log.Info("status changed", "user", userID, "item", itemID, "from", tr.From, "to", tr.To, "trigger", tr.Trigger)
	}

	if t.opts.Reminders != nil && r.Struggled() {
		rem, err := t.opts.Reminders.Schedule(ctx, userID, itemID, r, now)
		if err != nil {
			t.log.Warn("schedule reminder failed", "user", userID, "item", itemID, "error", err)
		} else if rem != nil {
			at := rem.DueAt
			out.ReminderAt = &at
		}
	}
	return out, nil
}

// update runs fn on the stored item under the item's lock and saves it.
func (t *Tracker) update(ctx context.Context, userID, itemID string, fn func(*vocab.Item, time.Time) error) error {
	release, err := t.opts.Locker.Lock(ctx, store.Key(userID, itemID))
	if err != nil {
		return apperr.Store("lock item", err)
	}
	defer release()

	it, err := t.items.Get(ctx, userID, itemID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound("item %s for user %s", itemID, userID)
	}
	if err != nil {
		return apperr.Store("load item", err)
	}

	if err := fn(it, t.now()); err != nil {
		return err
	}
	if err := t.items.Save(ctx, it); err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			return err
		}
		return apperr.Store("save item", err)
	}
	return nil
}
