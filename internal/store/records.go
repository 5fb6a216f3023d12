package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/lexiz/internal/apperr"
)

// recordRow is the scan target for the records table.
type recordRow struct {
	Key       string `db:"record_key"`
	Owner     string `db:"owner"`
	SortKey   string `db:"sort_key"`
	Data      string `db:"data"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r recordRow) record() Record {
	return Record{
		Key:       r.Key,
		Owner:     r.Owner,
		SortKey:   r.SortKey,
		Data:      json.RawMessage(r.Data),
		UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
	}
}

func recordSelect(b *entsql.DialectBuilder) (*entsql.Selector, *entsql.SelectTable) {
	t := b.Table(recordsTable)
	sel := b.Select(
		t.C(colKey), t.C(colOwner), t.C(colSortKey), t.C(colData), t.C(colUpdatedAt),
	).From(t)
	return sel, t
}

func (s *Store) Get(ctx context.Context, collection, key string) (*Record, error) {
	sel, t := recordSelect(s.builder())
	query, args := sel.Where(entsql.And(
		entsql.EQ(t.C(colCollection), collection),
		entsql.EQ(t.C(colKey), key),
	)).Query()

	var row recordRow
	if err := s.x.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", collection, key, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	rec := row.record()
	return &rec, nil
}

func (s *Store) Put(ctx context.Context, collection string, rec Record) error {
	if rec.Key == "" {
		return apperr.Validation("record in %s has no key", collection)
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	query, args := s.builder().Insert(recordsTable).
		Columns(colCollection, colKey, colOwner, colSortKey, colData, colUpdatedAt).
		Values(collection, rec.Key, rec.Owner, rec.SortKey, string(rec.Data), updated.UnixMilli()).
		OnConflict(
			entsql.ConflictColumns(colCollection, colKey),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, rec.Key, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	sel, t := recordSelect(s.builder())

	preds := []*entsql.Predicate{entsql.EQ(t.C(colCollection), collection)}
	if q.Owner != "" {
		preds = append(preds, entsql.EQ(t.C(colOwner), q.Owner))
	}
	if q.SortFrom != "" {
		preds = append(preds, entsql.GTE(t.C(colSortKey), q.SortFrom))
	}
	if q.SortTo != "" {
		preds = append(preds, entsql.LTE(t.C(colSortKey), q.SortTo))
	}
	sel.Where(entsql.And(preds...))

	if q.Desc {
		sel.OrderBy(entsql.Desc(t.C(colSortKey)), entsql.Desc(t.C(colKey)))
	} else {
		sel.OrderBy(t.C(colSortKey), t.C(colKey))
	}
	// With a Match predicate the limit is applied after filtering.
	if q.Limit > 0 && q.Match == nil {
		sel.Limit(q.Limit)
	}

	query, args := sel.Query()
	var rows []recordRow
	if err := s.x.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		rec := r.record()
		if q.Match != nil && !q.Match(rec) {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	query, args := s.builder().Delete(recordsTable).
		Where(entsql.And(
			entsql.EQ(colCollection, collection),
			entsql.EQ(colKey, key),
		)).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}
