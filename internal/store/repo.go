package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Collections used by the study core.
const (
	CollectionItems     = "items"
	CollectionSessions  = "sessions"
	CollectionActivity  = "daily_activity"
	CollectionReminders = "reminders"
)

// Record is one stored document. Owner and SortKey are indexed; Data is
// opaque JSON owned by the caller.
type Record struct {
	Key       string
	Owner     string
	SortKey   string
	Data      json.RawMessage
	UpdatedAt time.Time
}

// Query selects records from one collection. Empty bounds are unbounded.
type Query struct {
	// Owner restricts results to one user. Empty matches every owner.
	Owner string

	// SortFrom and SortTo are inclusive bounds on SortKey.
	SortFrom string
	SortTo   string

	// Limit caps the number of results (0 = unlimited). It applies after
	// Match.
	Limit int

	// Desc returns results in descending SortKey order.
	Desc bool

	// Match refines the indexed scan with an arbitrary predicate.
	Match func(Record) bool
}

// RecordStore is the persistence contract the study core depends on.
// Results of Query are ordered by SortKey, then Key.
type RecordStore interface {
	// Get returns the record or an error wrapping apperr.ErrNotFound.
	Get(ctx context.Context, collection, key string) (*Record, error)

	// Put inserts or replaces the record stored under rec.Key.
	Put(ctx context.Context, collection string, rec Record) error

	// Query returns the records matching q.
	Query(ctx context.Context, collection string, q Query) ([]Record, error)

	// Delete removes a record. Deleting a missing key is not an error.
	Delete(ctx context.Context, collection, key string) error
}

// Event is one append-only log entry.
type Event struct {
	Sequence  int64
	Kind      string
	SessionID string
	Owner     string
	Data      json.RawMessage
	CreatedAt time.Time
}

// EventQuery configures event queries with filtering and pagination.
type EventQuery struct {
	Kind      string
	SessionID string
	Owner     string
	After     int64 // sequence > After
	Limit     int   // max results (0 = unlimited)
}

// EventLog provides append and query access to domain events. Sequence
// numbers are global and strictly increasing.
type EventLog interface {
	// Append assigns the next sequence number and stores ev.
	Append(ctx context.Context, ev *Event) error

	// Events returns matching events in sequence order.
	Events(ctx context.Context, q EventQuery) ([]Event, error)
}

// Key joins key parts with "/".
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

// TimeKey formats t as a fixed-width UTC sort key.
func TimeKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

// DateKey formats d as a sort key.
func DateKey(d civil.Date) string {
	return d.String()
}

// Encode marshals v into a Record.
func Encode(key, owner, sortKey string, v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s: %w", key, err)
	}
	return Record{Key: key, Owner: owner, SortKey: sortKey, Data: data}, nil
}

// Decode unmarshals the record's data into a new T.
func Decode[T any](rec Record) (*T, error) {
	var v T
	if err := json.Unmarshal(rec.Data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", rec.Key, err)
	}
	return &v, nil
}

// DecodeAll unmarshals every record, stopping at the first failure.
func DecodeAll[T any](recs []Record) ([]*T, error) {
	out := make([]*T, 0, len(recs))
	for _, r := range recs {
		v, err := Decode[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
