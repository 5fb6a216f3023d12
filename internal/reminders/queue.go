// Package reminders keeps short-term practice nudges for items the learner
// struggled with. They never change an item's due date.
package reminders

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/lexiz/internal/apperr"
	"github.com/abhisek/lexiz/internal/spacedrep"
	"github.com/abhisek/lexiz/internal/store"
)

// Delays after a struggled rating.
const (
	AgainDelay = 4 * time.Hour
	HardDelay  = 12 * time.Hour
)

// Reminder is one pending nudge. There is at most one per (user, item).
type Reminder struct {
	UserID    string           `json:"user_id"`
	ItemID    string           `json:"item_id"`
	Rating    spacedrep.Rating `json:"rating"`
	DueAt     time.Time        `json:"due_at"`
	CreatedAt time.Time        `json:"created_at"`
}

// Delay returns how long to wait before nudging after r, or zero when r
// needs no nudge.
func Delay(r spacedrep.Rating) time.Duration {
	switch r {
	case spacedrep.Again:
		return AgainDelay
	case spacedrep.Hard:
		return HardDelay
	}
	return 0
}

// Queue stores reminders in the reminders collection, sorted by due time.
type Queue struct {
	rs store.RecordStore
}

// NewQueue creates a Queue over rs.
func NewQueue(rs store.RecordStore) *Queue {
	return &Queue{rs: rs}
}

// Schedule records a reminder for a struggled rating, replacing any pending
// one for the same item. It returns nil for ratings that need no nudge.
func (q *Queue) Schedule(ctx context.Context, userID, itemID string, r spacedrep.Rating, now time.Time) (*Reminder, error) {
	d := Delay(r)
	if d == 0 {
		return nil, nil
	}
	rem := &Reminder{
		UserID:    userID,
		ItemID:    itemID,
		Rating:    r,
		DueAt:     now.Add(d).UTC(),
		CreatedAt: now.UTC(),
	}
	rec, err := store.Encode(store.Key(userID, itemID), userID, store.TimeKey(rem.DueAt), rem)
	if err != nil {
		return nil, err
	}
	if err := q.rs.Put(ctx, store.CollectionReminders, rec); err != nil {
		return nil, apperr.Store("schedule reminder", err)
	}
	return rem, nil
}

// Due returns every user's reminders due at or before asOf, oldest first.
func (q *Queue) Due(ctx context.Context, asOf time.Time) ([]*Reminder, error) {
	return q.query(ctx, store.Query{SortTo: store.TimeKey(asOf)})
}

// Pending returns a user's reminders, oldest first.
func (q *Queue) Pending(ctx context.Context, userID string) ([]*Reminder, error) {
	return q.query(ctx, store.Query{Owner: userID})
}

// Ack removes a delivered reminder. A reminder rescheduled since rem was
// read is left in place.
func (q *Queue) Ack(ctx context.Context, rem *Reminder) error {
	key := store.Key(rem.UserID, rem.ItemID)
	rec, err := q.rs.Get(ctx, store.CollectionReminders, key)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Store("ack reminder", err)
	}
	cur, err := store.Decode[Reminder](*rec)
	if err != nil {
		return err
	}
	if !cur.DueAt.Equal(rem.DueAt) {
		return nil
	}
	if err := q.rs.Delete(ctx, store.CollectionReminders, key); err != nil {
		return apperr.Store("ack reminder", err)
	}
	return nil
}

func (q *Queue) query(ctx context.Context, sq store.Query) ([]*Reminder, error) {
	recs, err := q.rs.Query(ctx, store.CollectionReminders, sq)
	if err != nil {
		return nil, apperr.Store("query reminders", err)
	}
	return store.DecodeAll[Reminder](recs)
}
