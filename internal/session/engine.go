// Package session runs study sessions: one pass over a deck, an optional
// repeat pass over the items the learner struggled with, and the
// bookkeeping that follows every answer and rating.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/abhisek/lexiz/internal/activity"
	"github.com/abhisek/lexiz/internal/apperr"
	"github.com/abhisek/lexiz/internal/keylock"
	"github.com/abhisek/lexiz/internal/logger"
	"github.com/abhisek/lexiz/internal/similarity"
	"github.com/abhisek/lexiz/internal/spacedrep"
	"github.com/abhisek/lexiz/internal/store"
	"github.com/abhisek/lexiz/internal/tracker"
	"github.com/abhisek/lexiz/internal/vocab"
)

// RatingOutcome is the tracker's view of one rating.
type RatingOutcome = tracker.RatingOutcome

// Recorder applies answers and ratings to items. *tracker.Tracker
// implements it.
type Recorder interface {
	RecordAnswer(ctx context.Context, userID, itemID string, m vocab.Modality, correct bool) (*vocab.Item, error)
	RecordDifficultyRating(ctx context.Context, userID, itemID string, r spacedrep.Rating, now time.Time) (*tracker.RatingOutcome, error)
}

// ActivityRecorder rolls session events into daily activity.
// *activity.Aggregator implements it.
type ActivityRecorder interface {
	Record(ctx context.Context, userID string, date civil.Date, ev activity.EventType, extra activity.Extra) (*activity.DailyActivity, error)
}

// HintSource produces mnemonics for items that enter the repeat queue.
type HintSource interface {
	// Request starts generating a hint. It must not block.
	Request(ctx context.Context, it *vocab.Item)
	Lookup(itemID string) (string, bool)
}

// Config tunes an Engine.
type Config struct {
	// MaxCards caps the primary pass (0 = whole deck).
	MaxCards int

	// Location decides the calendar day activity is recorded under.
	Location *time.Location

	Retry RetryConfig
}

// Deps are the collaborators an Engine needs. Hints and Locker are
// optional.
type Deps struct {
	Items    *vocab.Repo
	Sessions *Repo
	Tracker  Recorder
	Activity ActivityRecorder
	Events   store.EventLog
	Hints    HintSource
	Locker   keylock.Locker
	Grader   similarity.Grader
	Log      *logger.Logger
}

// Engine owns the sessions live in this process. Each session serializes
// its own operations; different sessions proceed independently.
type Engine struct {
	items    *vocab.Repo
	sessions *Repo
	tracker  Recorder
	activity ActivityRecorder
	events   store.EventLog
	hints    HintSource
	locker   keylock.Locker
	grader   similarity.Grader
	cfg      Config
	log      *logger.Logger

	now   func() time.Time
	newID func() string

	mu   sync.Mutex
	live map[string]*liveSession
}

// NewEngine creates an Engine.
func NewEngine(d Deps, cfg Config) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if d.Locker == nil {
		d.Locker = keylock.NewLocal()
	}
	return &Engine{
		items:    d.Items,
		sessions: d.Sessions,
		tracker:  d.Tracker,
		activity: d.Activity,
		events:   d.Events,
		hints:    d.Hints,
		locker:   d.Locker,
		grader:   d.Grader,
		cfg:      cfg,
		log:      logger.OrNop(d.Log).With("service", "SessionEngine"),
		now:      time.Now,
		newID:    uuid.NewString,
		live:     make(map[string]*liveSession),
	}
}

type pendingWrite struct {
	desc string
	fn   func(ctx context.Context) error
}

type liveSession struct {
	mu sync.Mutex
	s  StudySession

	items  map[string]*vocab.Item
	order  []string
	queue  *RepeatQueue
	repeat []string
	phase  Phase
	pos    int

	answered bool
	shownAt  time.Time

	results     map[string]*ItemResult
	resultOrder []string

	// pending holds writes that have not reached the store yet, in the
	// order they were issued.
	pending []pendingWrite

	// finalRecorded is set once the end or abandon activity was applied,
	// so a retried finalization does not count it twice.
	finalRecorded bool
	finalUnsynced int
}

func (ls *liveSession) cards() []string {
	if ls.phase == PhaseRepeat {
		return ls.repeat
	}
	return ls.order
}

func (ls *liveSession) current() string {
	cards := ls.cards()
	if ls.pos >= len(cards) {
		return ""
	}
	return cards[ls.pos]
}

func (ls *liveSession) exhausted() bool { return ls.current() == "" }

func (ls *liveSession) card(hints HintSource) *Card {
	id := ls.current()
	if id == "" {
		return nil
	}
	it := ls.items[id]
	c := &Card{
		ItemID:       id,
		Prompt:       it.PromptText,
		PromptLocale: it.PromptLocale,
		AnswerLocale: it.AnswerLocale,
		Phase:        ls.phase,
		Position:     ls.pos + 1,
		Total:        len(ls.cards()),
		Answered:     ls.answered,
	}
	if ls.phase == PhaseRepeat && hints != nil {
		if h, ok := hints.Lookup(id); ok {
			c.Hint = h
		}
	}
	return c
}

func (ls *liveSession) checkCurrent(itemID string) error {
	if ls.s.Status.Terminal() {
		return apperr.InvalidState("session %s is %s", ls.s.SessionID, ls.s.Status)
	}
	cur := ls.current()
	if cur == "" {
		return apperr.InvalidState("session %s has no cards left", ls.s.SessionID)
	}
	if cur != itemID {
		return apperr.InvalidState("item %s is not the current card (%s)", itemID, cur)
	}
	return nil
}

func (ls *liveSession) advance(now time.Time) {
	ls.pos++
	ls.answered = false
	ls.shownAt = now
	if ls.phase == PhasePrimary && ls.pos >= len(ls.order) && ls.queue.Len() > 0 {
		ls.phase = PhaseRepeat
		ls.repeat = ls.queue.ItemIDs()
		ls.pos = 0
		ls.s.TotalRepeatedCards = len(ls.repeat)
	}
}

func (ls *liveSession) result(itemID string) *ItemResult {
	r, ok := ls.results[itemID]
	if !ok {
		r = &ItemResult{ItemID: itemID, Prompt: ls.items[itemID].PromptText}
		ls.results[itemID] = r
		ls.resultOrder = append(ls.resultOrder, itemID)
	}
	return r
}

func (e *Engine) today(t time.Time) civil.Date {
	return civil.DateOf(t.In(e.cfg.Location))
}

// StartSession opens a session over the user's deck. Cards are ordered by
// due date, then item ID.
func (e *Engine) StartSession(ctx context.Context, userID, deckID string) (*StudySession, error) {
	if userID == "" || deckID == "" {
		return nil, apperr.Validation("a session needs a user and a deck")
	}

	items, err := e.items.Deck(ctx, userID, deckID)
	if err != nil {
		return nil, apperr.Store("load deck", err)
	}
	if len(items) == 0 {
		return nil, apperr.Validation("deck %q has no items for user %q", deckID, userID)
	}
	vocab.SortByDue(items)
	if e.cfg.MaxCards > 0 && len(items) > e.cfg.MaxCards {
		items = items[:e.cfg.MaxCards]
	}

	now := e.now()
	ls := &liveSession{
		s: StudySession{
			SessionID:          e.newID(),
			UserID:             userID,
			DeckID:             deckID,
			StartedAt:          now,
			Status:             StatusInProgress,
			TotalOriginalCards: len(items),
		},
		items:   make(map[string]*vocab.Item, len(items)),
		order:   make([]string, 0, len(items)),
		queue:   NewRepeatQueue(),
		phase:   PhasePrimary,
		shownAt: now,
		results: make(map[string]*ItemResult),
	}
	for _, it := range items {
		ls.items[it.ItemID] = it
		ls.order = append(ls.order, it.ItemID)
	}

	if err := e.sessions.Save(ctx, &ls.s); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.live[ls.s.SessionID] = ls
	e.mu.Unlock()

	ls.mu.Lock()
	defer ls.mu.Unlock()

	date := e.today(now)
	ls.pending = append(ls.pending,
		pendingWrite{desc: "activity " + string(activity.SessionStart), fn: func(ctx context.Context) error {
			_, err := e.activity.Record(ctx, userID, date, activity.SessionStart, activity.Extra{})
			return err
		}},
		e.eventWrite(ls.s.SessionID, userID, EventSessionStart, map[string]any{"deck_id": deckID, "cards": ls.order}, now),
	)
	err = e.flush(ctx, ls)

	e.log.Info("session started", "session", ls.s.SessionID, "user", userID, "deck", deckID, "cards", len(ls.order))
	out := ls.s
	return &out, err
}

// CurrentCard returns the card to show next, or nil once every card in
// both passes is done.
func (e *Engine) CurrentCard(ctx context.Context, sessionID string) (*Card, error) {
	ls, err := e.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.s.Status.Terminal() {
		return nil, apperr.InvalidState("session %s is %s", sessionID, ls.s.Status)
	}
	return ls.card(e.hints), nil
}

// SubmitAnswer grades an answer for the current card. The card stays
// current until it is rated.
//
// When a write fails the in-memory progress still advances: the result is
// returned together with an error wrapping apperr.ErrStore and the write
// is retried before the next one.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID, itemID string, m vocab.Modality, raw string) (*AnswerResult, error) {
	m, err := vocab.ParseModality(string(m))
	if err != nil {
		return nil, err
	}
	ls, err := e.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := ls.checkCurrent(itemID); err != nil {
		return nil, err
	}
	if ls.answered {
		return nil, apperr.InvalidState("item %s was already answered", itemID)
	}

	it := ls.items[itemID]
	var g similarity.Grade
	if m == vocab.ModalityVoice {
		g = e.grader.Voice(raw, it.AnswerText)
	} else {
		g = e.grader.Text(raw, it.AnswerText)
	}

	now := e.now()
	ls.answered = true
	ls.s.TotalAnswers++
	r := ls.result(itemID)
	r.Attempted++
	if g.Passed {
		ls.s.CorrectAnswers++
		r.Correct++
	}

	userID := ls.s.UserID
	ev := ReviewEvent{
		SessionID:      sessionID,
		ItemID:         itemID,
		Modality:       m,
		IsCorrect:      g.Passed,
		Similarity:     g.Score,
		ResponseTimeMs: now.Sub(ls.shownAt).Milliseconds(),
		Phase:          ls.phase,
	}
	ls.pending = append(ls.pending,
		pendingWrite{desc: "answer " + itemID, fn: func(ctx context.Context) error {
			_, err := e.tracker.RecordAnswer(ctx, userID, itemID, m, g.Passed)
			return err
		}},
		e.eventWrite(sessionID, userID, EventReviewAnswer, ev, now),
	)

	res := &AnswerResult{ItemID: itemID, Expected: it.AnswerText, Score: g.Score, Correct: g.Passed}
	return res, e.flush(ctx, ls)
}

// SubmitDifficultyRating rates the current card and moves to the next
// one. During the primary pass, again and hard queue the item for the
// repeat pass. Write failures behave as in SubmitAnswer.
func (e *Engine) SubmitDifficultyRating(ctx context.Context, sessionID, itemID string, r spacedrep.Rating) (*RatingResult, error) {
	if !r.Valid() {
		return nil, apperr.Validation("unknown rating %q", r)
	}
	ls, err := e.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := ls.checkCurrent(itemID); err != nil {
		return nil, err
	}
	if !ls.answered {
		return nil, apperr.InvalidState("item %s has not been answered", itemID)
	}

	now := e.now()
	queued := false
	if ls.phase == PhasePrimary && r.Struggled() {
		if ls.queue.Add(itemID) && e.hints != nil {
			e.hints.Request(ctx, ls.items[itemID])
		}
		queued = true
	}
	ls.result(itemID).LastRating = r

	userID := ls.s.UserID
	var outcome *RatingOutcome
	ls.pending = append(ls.pending,
		pendingWrite{desc: "rating " + itemID, fn: func(ctx context.Context) error {
			out, err := e.tracker.RecordDifficultyRating(ctx, userID, itemID, r, now)
			if err != nil {
				return err
			}
			outcome = out
			return nil
		}},
		e.eventWrite(sessionID, userID, EventReviewRating, ReviewEvent{
			SessionID:        sessionID,
			ItemID:           itemID,
			ResponseTimeMs:   now.Sub(ls.shownAt).Milliseconds(),
			DifficultyRating: r,
			Phase:            ls.phase,
		}, now),
	)

	ls.advance(now)
	err = e.flush(ctx, ls)

	return &RatingResult{
		ItemID:  itemID,
		Rating:  r,
		Queued:  queued,
		Next:    ls.card(e.hints),
		Outcome: outcome,
	}, err
}

// CompleteSession finalizes a session whose cards are all done. sentiment
// is optional and must be 1-5. Pending writes and the session record are
// retried with backoff; if the record still cannot be saved the session
// stays live so the call can be repeated.
func (e *Engine) CompleteSession(ctx context.Context, sessionID string, sentiment *int) (*SessionSummary, error) {
	if sentiment != nil && (*sentiment < 1 || *sentiment > 5) {
		return nil, apperr.Validation("sentiment %d is outside 1-5", *sentiment)
	}
	ls, err := e.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.s.Status.Terminal() {
		return nil, apperr.InvalidState("session %s is %s", sessionID, ls.s.Status)
	}
	if !ls.exhausted() {
		left := len(ls.cards()) - ls.pos
		return nil, apperr.InvalidState("session %s has %d cards left", sessionID, left)
	}

	now := e.now()
	s := ls.s
	s.Status = StatusCompleted
	ended := now
	s.EndedAt = &ended
	s.DurationMs = max(now.Sub(s.StartedAt).Milliseconds(), 0)
	s.AccuracyPercent = Accuracy(s.CorrectAnswers, s.TotalAnswers)
	if sentiment != nil {
		v := *sentiment
		s.Sentiment = &v
	}

	extra := activity.Extra{DurationMs: s.DurationMs, ItemsCount: len(ls.order)}
	if err := e.finalize(ctx, ls, &s, activity.SessionEnd, extra, EventSessionEnd); err != nil {
		return nil, err
	}

	e.log.Info("session completed",
		"session", sessionID, "answers", s.TotalAnswers, "accuracy", s.AccuracyPercent,
		"repeated", s.TotalRepeatedCards, "unsynced", s.UnsyncedEvents)
	return buildSummary(ls, s), nil
}

// AbandonSession ends an in-progress session early. It also finalizes
// sessions left in progress by a process that is gone.
func (e *Engine) AbandonSession(ctx context.Context, sessionID string) (*StudySession, error) {
	e.mu.Lock()
	ls := e.live[sessionID]
	e.mu.Unlock()
	if ls == nil {
		return e.abandonOrphan(ctx, sessionID)
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.s.Status.Terminal() {
		return nil, apperr.InvalidState("session %s is %s", sessionID, ls.s.Status)
	}

	now := e.now()
	s := ls.s
	s.Status = StatusAbandoned
	ended := now
	s.EndedAt = &ended
	s.DurationMs = max(now.Sub(s.StartedAt).Milliseconds(), 0)

	if err := e.finalize(ctx, ls, &s, activity.SessionAbandon, activity.Extra{}, EventSessionAbandon); err != nil {
		return nil, err
	}

	e.log.Info("session abandoned", "session", sessionID, "answers", s.TotalAnswers)
	return &s, nil
}

// finalize drains pending writes, records the closing activity and saves
// s. On success the session leaves the live registry.
func (e *Engine) finalize(ctx context.Context, ls *liveSession, s *StudySession, ev activity.EventType, extra activity.Extra, kind string) error {
	if err := retry(ctx, e.cfg.Retry, func() error { return e.flush(ctx, ls) }); err != nil {
		e.log.Warn("pending writes not synced", "session", s.SessionID, "pending", len(ls.pending), "error", err)
	}

	if !ls.finalRecorded {
		date := e.today(*s.EndedAt)
		err := retry(ctx, e.cfg.Retry, func() error {
			_, err := e.activity.Record(ctx, s.UserID, date, ev, extra)
			return err
		})
		if err != nil {
			e.log.Warn("record activity failed", "session", s.SessionID, "event", ev, "error", err)
			ls.finalUnsynced = 1
		}
		ls.finalRecorded = true
	}
	s.UnsyncedEvents = len(ls.pending) + ls.finalUnsynced

	if err := retry(ctx, e.cfg.Retry, func() error { return e.sessions.Save(ctx, s) }); err != nil {
		return apperr.Store("persist session", err)
	}

	ls.s = *s
	e.mu.Lock()
	delete(e.live, s.SessionID)
	e.mu.Unlock()

	e.appendEvent(ctx, kind, s, *s.EndedAt)
	return nil
}

func (e *Engine) abandonOrphan(ctx context.Context, sessionID string) (*StudySession, error) {
	release, err := e.locker.Lock(ctx, "session/"+sessionID)
	if err != nil {
		return nil, apperr.Store("lock session", err)
	}
	defer release()

	s, err := e.sessions.Get(ctx, sessionID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("session %s", sessionID)
	}
	if err != nil {
		return nil, err
	}
	if s.Status.Terminal() {
		return nil, apperr.InvalidState("session %s is %s", sessionID, s.Status)
	}

	now := e.now()
	s.Status = StatusAbandoned
	ended := now
	s.EndedAt = &ended
	s.DurationMs = max(now.Sub(s.StartedAt).Milliseconds(), 0)

	if err := retry(ctx, e.cfg.Retry, func() error { return e.sessions.Save(ctx, s) }); err != nil {
		return nil, apperr.Store("persist session", err)
	}
	if _, err := e.activity.Record(ctx, s.UserID, e.today(now), activity.SessionAbandon, activity.Extra{}); err != nil {
		e.log.Warn("record activity failed", "session", sessionID, "error", err)
	}
	e.appendEvent(ctx, EventSessionAbandon, s, now)

	e.log.Info("orphaned session abandoned", "session", sessionID, "user", s.UserID)
	return s, nil
}

// Orphans returns a user's persisted in-progress sessions that are not
// live in this engine.
func (e *Engine) Orphans(ctx context.Context, userID string) ([]*StudySession, error) {
	all, err := e.sessions.InProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := all[:0]
	for _, s := range all {
		if _, ok := e.live[s.SessionID]; !ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// AbandonOrphans abandons orphaned sessions started more than olderThan
// ago and returns how many were closed.
func (e *Engine) AbandonOrphans(ctx context.Context, userID string, olderThan time.Duration) (int, error) {
	orphans, err := e.Orphans(ctx, userID)
	if err != nil {
		return 0, err
	}
	cutoff := e.now().Add(-olderThan)
	n := 0
	for _, s := range orphans {
		if s.StartedAt.After(cutoff) {
			continue
		}
		if _, err := e.AbandonSession(ctx, s.SessionID); err != nil {
			if errors.Is(err, apperr.ErrInvalidState) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// Shutdown abandons every session still live in this engine, e.g. when
// the study UI exits mid-session. It returns how many were closed.
func (e *Engine) Shutdown(ctx context.Context) (int, error) {
	e.mu.Lock()
	ids := make([]string, 0, len(e.live))
	for id := range e.live {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	sort.Strings(ids)

	var errs []error
	n := 0
	for _, id := range ids {
		if _, err := e.AbandonSession(ctx, id); err != nil {
			if !errors.Is(err, apperr.ErrInvalidState) {
				errs = append(errs, err)
			}
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// GetDueItems returns the user's items due on or before asOf across every
// deck.
func (e *Engine) GetDueItems(ctx context.Context, userID string, asOf civil.Date) ([]*vocab.Item, error) {
	if userID == "" {
		return nil, apperr.Validation("due items need a user")
	}
	items, err := e.items.Due(ctx, userID, "", asOf)
	if err != nil {
		return nil, apperr.Store("load due items", err)
	}
	return items, nil
}

// Snapshot returns the current state of a live or persisted session.
func (e *Engine) Snapshot(ctx context.Context, sessionID string) (*StudySession, error) {
	e.mu.Lock()
	ls := e.live[sessionID]
	e.mu.Unlock()
	if ls != nil {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		out := ls.s
		return &out, nil
	}
	s, err := e.sessions.Get(ctx, sessionID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("session %s", sessionID)
	}
	return s, err
}

func (e *Engine) lookup(ctx context.Context, sessionID string) (*liveSession, error) {
	e.mu.Lock()
	ls := e.live[sessionID]
	e.mu.Unlock()
	if ls != nil {
		return ls, nil
	}

	s, err := e.sessions.Get(ctx, sessionID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("session %s", sessionID)
	}
	if err != nil {
		return nil, err
	}
	if s.Status.Terminal() {
		return nil, apperr.InvalidState("session %s is %s", sessionID, s.Status)
	}
	return nil, apperr.InvalidState("session %s is not active in this process", sessionID)
}

// flush runs pending writes in order. It stops at the first store failure,
// leaving that write and the ones after it pending. Writes that fail for
// any other reason cannot succeed on retry and are dropped.
func (e *Engine) flush(ctx context.Context, ls *liveSession) error {
	var dropped error
	for len(ls.pending) > 0 {
		w := ls.pending[0]
		err := w.fn(ctx)
		if err != nil && (errors.Is(err, apperr.ErrStore) || ctx.Err() != nil) {
			return apperr.Store(w.desc, err)
		}
		ls.pending = ls.pending[1:]
		if err != nil {
			e.log.Warn("dropping write", "session", ls.s.SessionID, "write", w.desc, "error", err)
			dropped = errors.Join(dropped, fmt.Errorf("%s: %w", w.desc, err))
		}
	}
	return dropped
}

func (e *Engine) eventWrite(sessionID, owner, kind string, v any, at time.Time) pendingWrite {
	data, err := json.Marshal(v)
	return pendingWrite{desc: kind, fn: func(ctx context.Context) error {
		if err != nil {
			return fmt.Errorf("encode %s: %w", kind, err)
		}
		ev := &store.Event{Kind: kind, SessionID: sessionID, Owner: owner, Data: data, CreatedAt: at}
		if err := e.events.Append(ctx, ev); err != nil {
			return apperr.Store("append "+kind, err)
		}
		return nil
	}}
}

// appendEvent writes a closing event outside the pending list. Failures
// are logged.
func (e *Engine) appendEvent(ctx context.Context, kind string, s *StudySession, at time.Time) {
	if err := e.eventWrite(s.SessionID, s.UserID, kind, s, at).fn(ctx); err != nil {
		e.log.Warn("append event failed", "session", s.SessionID, "kind", kind, "error", err)
	}
}
