// Package activity rolls study sessions up into one row per learner per
// calendar day.
package activity

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"

	"github.com/abhisek/lexiz/internal/apperr"
	"github.com/abhisek/lexiz/internal/keylock"
	"github.com/abhisek/lexiz/internal/logger"
	"github.com/abhisek/lexiz/internal/store"
)

// EventType is a session lifecycle event the aggregator counts.
type EventType string

const (
	SessionStart   EventType = "session_start"
	SessionEnd     EventType = "session_end"
	SessionAbandon EventType = "session_abandon"
)

// Extra carries the totals of a finished session.
type Extra struct {
	DurationMs int64
	ItemsCount int
}

// DailyActivity is one learner's rollup for one date.
type DailyActivity struct {
	UserID                string     `json:"user_id"`
	Date                  civil.Date `json:"date"`
	SessionsStarted       int        `json:"sessions_started"`
	SessionsCompleted     int        `json:"sessions_completed"`
	SessionsAbandoned     int        `json:"sessions_abandoned"`
	TotalStudyTimeMs      int64      `json:"total_study_time_ms"`
	ItemsPracticed        int        `json:"items_practiced"`
	LastActivityTimestamp time.Time  `json:"last_activity_timestamp"`
}

// Aggregator updates daily rollups. Each (user, date) row is updated under
// its own lock; Record is not idempotent.
type Aggregator struct {
	rs     store.RecordStore
	locker keylock.Locker
	log    *logger.Logger
	now    func() time.Time
}

// New creates an Aggregator. A nil locker means an in-process one.
func New(rs store.RecordStore, locker keylock.Locker, log *logger.Logger) *Aggregator {
	if locker == nil {
		locker = keylock.NewLocal()
	}
	return &Aggregator{rs: rs, locker: locker, log: logger.OrNop(log).With("service", "Activity"), now: time.Now}
}

func rowKey(userID string, date civil.Date) string {
	return store.Key(userID, store.DateKey(date))
}

// Record applies one event to the (userID, date) row, creating it if
// needed.
func (a *Aggregator) Record(ctx context.Context, userID string, date civil.Date, ev EventType, extra Extra) (*DailyActivity, error) {
	switch ev {
	case SessionStart, SessionEnd, SessionAbandon:
	default:
		return nil, apperr.Validation("unknown activity event %q", ev)
	}
	if userID == "" || !date.IsValid() {
		return nil, apperr.Validation("activity needs a user and a valid date")
	}

	key := rowKey(userID, date)
	release, err := a.locker.Lock(ctx, "activity/"+key)
	if err != nil {
		return nil, apperr.Store("lock activity", err)
	}
	defer release()

	row, err := a.get(ctx, userID, date)
	if errors.Is(err, apperr.ErrNotFound) {
		row = &DailyActivity{UserID: userID, Date: date}
	} else if err != nil {
		return nil, err
	}

	switch ev {
	case SessionStart:
		row.SessionsStarted++
	case SessionEnd:
		row.SessionsCompleted++
		row.TotalStudyTimeMs += max(extra.DurationMs, 0)
		row.ItemsPracticed += max(extra.ItemsCount, 0)
	case SessionAbandon:
		row.SessionsAbandoned++
	}
	row.LastActivityTimestamp = a.now().UTC()

	rec, err := store.Encode(key, userID, store.DateKey(date), row)
	if err != nil {
		return nil, err
	}
	if err := a.rs.Put(ctx, store.CollectionActivity, rec); err != nil {
		return nil, apperr.Store("save activity", err)
	}

	a.log.Debug("activity recorded", "user", userID, "date", date.String(), "event", ev)
	return row, nil
}

// Get returns the row for (userID, date), or an error wrapping
// apperr.ErrNotFound.
func (a *Aggregator) Get(ctx context.Context, userID string, date civil.Date) (*DailyActivity, error) {
	return a.get(ctx, userID, date)
}

func (a *Aggregator) get(ctx context.Context, userID string, date civil.Date) (*DailyActivity, error) {
	rec, err := a.rs.Get(ctx, store.CollectionActivity, rowKey(userID, date))
	if err != nil {
		return nil, apperr.Store("load activity", err)
	}
	return store.Decode[DailyActivity](*rec)
}

// Range returns the rows between from and to inclusive, oldest first. Days
// without activity are omitted.
func (a *Aggregator) Range(ctx context.Context, userID string, from, to civil.Date) ([]*DailyActivity, error) {
	recs, err := a.rs.Query(ctx, store.CollectionActivity, store.Query{
		Owner:    userID,
		SortFrom: store.DateKey(from),
		SortTo:   store.DateKey(to),
	})
	if err != nil {
		return nil, apperr.Store("query activity", err)
	}
	return store.DecodeAll[DailyActivity](recs)
}

// Streak counts consecutive days ending at asOf with at least one completed
// session. A day without one yet (asOf itself) does not break the streak.
func (a *Aggregator) Streak(ctx context.Context, userID string, asOf civil.Date) (int, error) {
	recs, err := a.rs.Query(ctx, store.CollectionActivity, store.Query{
		Owner:  userID,
		SortTo: store.DateKey(asOf),
		Desc:   true,
	})
	if err != nil {
		return 0, apperr.Store("query activity", err)
	}
	rows, err := store.DecodeAll[DailyActivity](recs)
	if err != nil {
		return 0, err
	}

	completed := make(map[civil.Date]bool, len(rows))
	for _, r := range rows {
		if r.SessionsCompleted > 0 {
			completed[r.Date] = true
		}
	}

	day := asOf
	if !completed[day] {
		day = day.AddDays(-1)
	}
	streak := 0
	for completed[day] {
		streak++
		day = day.AddDays(-1)
	}
	return streak, nil
}
