package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/lexiz/internal/apperr"
)

// Memory is an in-process RecordStore and EventLog. It backs tests and
// --ephemeral runs; nothing survives the process.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string]Record
	events  []Event
	nextSeq int64
}

var (
	_ RecordStore = (*Memory)(nil)
	_ EventLog    = (*Memory)(nil)
)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string]Record), nextSeq: 1}
}

func (m *Memory) Get(_ context.Context, collection, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[collection][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, key, apperr.ErrNotFound)
	}
	rec.Data = slices.Clone(rec.Data)
	return &rec, nil
}

func (m *Memory) Put(_ context.Context, collection string, rec Record) error {
	if rec.Key == "" {
		return apperr.Validation("record in %s has no key", collection)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC().Truncate(time.Millisecond)
	rec.Data = slices.Clone(rec.Data)

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.records[collection]
	if !ok {
		c = make(map[string]Record)
		m.records[collection] = c
	}
	c[rec.Key] = rec
	return nil
}

func (m *Memory) Query(_ context.Context, collection string, q Query) ([]Record, error) {
	m.mu.RLock()
	var out []Record
	for _, rec := range m.records[collection] {
		if q.Owner != "" && rec.Owner != q.Owner {
			continue
		}
		if q.SortFrom != "" && rec.SortKey < q.SortFrom {
			continue
		}
		if q.SortTo != "" && rec.SortKey > q.SortTo {
			continue
		}
		rec.Data = slices.Clone(rec.Data)
		out = append(out, rec)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b Record) int {
		c := strings.Compare(a.SortKey, b.SortKey)
		if c == 0 {
			c = strings.Compare(a.Key, b.Key)
		}
		if q.Desc {
			return -c
		}
		return c
	})

	if q.Match != nil {
		out = slices.DeleteFunc(out, func(r Record) bool { return !q.Match(r) })
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records[collection], key)
	return nil
}

func (m *Memory) Append(_ context.Context, ev *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.Sequence = m.nextSeq
	m.nextSeq++
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	stored := *ev
	stored.Data = slices.Clone(ev.Data)
	if stored.Data == nil {
		stored.Data = []byte("{}")
	}
	m.events = append(m.events, stored)
	return nil
}

func (m *Memory) Events(_ context.Context, q EventQuery) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Event
	for _, ev := range m.events {
		if ev.Sequence <= q.After {
			continue
		}
		if q.Kind != "" && ev.Kind != q.Kind {
			continue
		}
		if q.SessionID != "" && ev.SessionID != q.SessionID {
			continue
		}
		if q.Owner != "" && ev.Owner != q.Owner {
			continue
		}
		out = append(out, ev)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}
