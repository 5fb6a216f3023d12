package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// sequenceCounter hands out the global sequence number shared by every
// event kind, so events stay totally ordered across sessions and users.
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	s  *Store
}

// newSequenceCounter seeds the counter row if it does not exist yet.
func newSequenceCounter(ctx context.Context, s *Store) (*sequenceCounter, error) {
	query, args := s.builder().Insert(sequenceTable).
		Columns("id", "next_val").
		Values(1, 1).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}
	return &sequenceCounter{s: s}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.s.db.QueryRowContext(ctx,
		`UPDATE event_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

type eventRow struct {
	Sequence  int64  `db:"seq"`
	Kind      string `db:"kind"`
	SessionID string `db:"session_id"`
	Owner     string `db:"owner"`
	Data      string `db:"data"`
	CreatedAt int64  `db:"created_at"`
}

func (s *Store) Append(ctx context.Context, ev *Event) error {
	seq, err := s.seq.Next(ctx)
	if err != nil {
		return err
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	data := ev.Data
	if data == nil {
		data = json.RawMessage("{}")
	}

	query, args := s.builder().Insert(eventsTable).
		Columns(colSequence, colKind, colSessionID, colOwner, colData, colCreatedAt).
		Values(seq, ev.Kind, ev.SessionID, ev.Owner, string(data), ev.CreatedAt.UnixMilli()).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append %s event: %w", ev.Kind, err)
	}
	ev.Sequence = seq
	return nil
}

func (s *Store) Events(ctx context.Context, q EventQuery) ([]Event, error) {
	b := s.builder()
	t := b.Table(eventsTable)
	sel := b.Select(
		t.C(colSequence), t.C(colKind), t.C(colSessionID), t.C(colOwner), t.C(colData), t.C(colCreatedAt),
	).From(t)

	preds := []*entsql.Predicate{entsql.GT(t.C(colSequence), q.After)}
	if q.Kind != "" {
		preds = append(preds, entsql.EQ(t.C(colKind), q.Kind))
	}
	if q.SessionID != "" {
		preds = append(preds, entsql.EQ(t.C(colSessionID), q.SessionID))
	}
	if q.Owner != "" {
		preds = append(preds, entsql.EQ(t.C(colOwner), q.Owner))
	}
	sel.Where(entsql.And(preds...)).OrderBy(t.C(colSequence))
	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}

	query, args := sel.Query()
	var rows []eventRow
	if err := s.x.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	out := make([]Event, len(rows))
	for i, r := range rows {
		out[i] = Event{
			Sequence:  r.Sequence,
			Kind:      r.Kind,
			SessionID: r.SessionID,
			Owner:     r.Owner,
			Data:      json.RawMessage(r.Data),
			CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		}
	}
	return out, nil
}
