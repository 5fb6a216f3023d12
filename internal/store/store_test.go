package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lexiz/internal/apperr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s, err := Open(DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends runs fn against every RecordStore implementation.
func backends(t *testing.T, fn func(t *testing.T, rs RecordStore, log EventLog)) {
	t.Run("sqlite", func(t *testing.T) {
		s := openTestStore(t)
		fn(t, s, s)
	})
	t.Run("memory", func(t *testing.T) {
		m := NewMemory()
		fn(t, m, m)
	})
}

type word struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
}

func putWord(t *testing.T, rs RecordStore, owner, key, sortKey string, w word) {
	t.Helper()
	rec, err := Encode(key, owner, sortKey, w)
	require.NoError(t, err)
	require.NoError(t, rs.Put(context.Background(), CollectionItems, rec))
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
		{"busy_timeout", "5000"},
	}

	for _, tt := range tests {
		var got string
		if err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got); err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestOpen_FileDatabaseReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexiz.db")
	ctx := context.Background()

	s, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	putWord(t, s, "u1", "u1/a", "2025-01-01", word{Prompt: "hund", Answer: "dog"})
	require.NoError(t, s.Append(ctx, &Event{Kind: "session_start"}))
	require.NoError(t, s.Close())

	s, err = Open(DriverSQLite, path)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Get(ctx, CollectionItems, "u1/a")
	require.NoError(t, err)
	w, err := Decode[word](*rec)
	require.NoError(t, err)
	assert.Equal(t, "dog", w.Answer)

	// The sequence continues where it left off.
	ev := &Event{Kind: "session_end"}
	require.NoError(t, s.Append(ctx, ev))
	assert.Equal(t, int64(2), ev.Sequence)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	assert.Error(t, err)
}

func TestGetPutRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, rs RecordStore, _ EventLog) {
		ctx := context.Background()

		_, err := rs.Get(ctx, CollectionItems, "u1/missing")
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		putWord(t, rs, "u1", "u1/a", "2025-01-02", word{Prompt: "katze", Answer: "cat"})
		rec, err := rs.Get(ctx, CollectionItems, "u1/a")
		require.NoError(t, err)
		assert.Equal(t, "u1", rec.Owner)
		assert.Equal(t, "2025-01-02", rec.SortKey)
		assert.False(t, rec.UpdatedAt.IsZero())

		// Put replaces.
		putWord(t, rs, "u1", "u1/a", "2025-01-09", word{Prompt: "katze", Answer: "the cat"})
		rec, err = rs.Get(ctx, CollectionItems, "u1/a")
		require.NoError(t, err)
		assert.Equal(t, "2025-01-09", rec.SortKey)
		w, err := Decode[word](*rec)
		require.NoError(t, err)
		assert.Equal(t, "the cat", w.Answer)

		// Collections are separate namespaces.
		_, err = rs.Get(ctx, CollectionSessions, "u1/a")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestPut_RequiresKey(t *testing.T) {
	backends(t, func(t *testing.T, rs RecordStore, _ EventLog) {
		err := rs.Put(context.Background(), CollectionItems, Record{Data: []byte("{}")})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestQuery(t *testing.T) {
	backends(t, func(t *testing.T, rs RecordStore, _ EventLog) {
		ctx := context.Background()
		putWord(t, rs, "u1", "u1/c", "2025-01-03", word{Prompt: "c"})
		putWord(t, rs, "u1", "u1/a", "2025-01-01", word{Prompt: "a"})
		putWord(t, rs, "u1", "u1/b", "2025-01-01", word{Prompt: "b"})
		putWord(t, rs, "u1", "u1/d", "2025-01-05", word{Prompt: "d"})
		putWord(t, rs, "u2", "u2/a", "2025-01-01", word{Prompt: "other"})

		keys := func(recs []Record) []string {
			out := make([]string, len(recs))
			for i, r := range recs {
				out[i] = r.Key
			}
			return out
		}

		all, err := rs.Query(ctx, CollectionItems, Query{Owner: "u1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1/a", "u1/b", "u1/c", "u1/d"}, keys(all))

		upTo, err := rs.Query(ctx, CollectionItems, Query{Owner: "u1", SortTo: "2025-01-03"})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1/a", "u1/b", "u1/c"}, keys(upTo))

		window, err := rs.Query(ctx, CollectionItems, Query{Owner: "u1", SortFrom: "2025-01-02", SortTo: "2025-01-05"})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1/c", "u1/d"}, keys(window))

		desc, err := rs.Query(ctx, CollectionItems, Query{Owner: "u1", Desc: true, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1/d", "u1/c"}, keys(desc))

		anyOwner, err := rs.Query(ctx, CollectionItems, Query{SortTo: "2025-01-01"})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1/a", "u1/b", "u2/a"}, keys(anyOwner))

		matched, err := rs.Query(ctx, CollectionItems, Query{
			Owner: "u1",
			Limit: 1,
			Match: func(r Record) bool { return r.SortKey != "2025-01-01" },
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1/c"}, keys(matched))

		none, err := rs.Query(ctx, CollectionReminders, Query{})
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestDelete(t *testing.T) {
	backends(t, func(t *testing.T, rs RecordStore, _ EventLog) {
		ctx := context.Background()
		putWord(t, rs, "u1", "u1/a", "", word{Prompt: "a"})

		require.NoError(t, rs.Delete(ctx, CollectionItems, "u1/a"))
		_, err := rs.Get(ctx, CollectionItems, "u1/a")
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		// Missing keys are fine.
		assert.NoError(t, rs.Delete(ctx, CollectionItems, "u1/a"))
	})
}

func TestEventLog(t *testing.T) {
	backends(t, func(t *testing.T, _ RecordStore, log EventLog) {
		ctx := context.Background()

		events := []*Event{
			{Kind: "session_start", SessionID: "s1", Owner: "u1"},
			{Kind: "review_answer", SessionID: "s1", Owner: "u1", Data: []byte(`{"item_id":"a"}`)},
			{Kind: "session_start", SessionID: "s2", Owner: "u2"},
			{Kind: "session_end", SessionID: "s1", Owner: "u1"},
		}
		var last int64
		for _, ev := range events {
			require.NoError(t, log.Append(ctx, ev))
			assert.Greater(t, ev.Sequence, last, "sequence must increase")
			assert.False(t, ev.CreatedAt.IsZero())
			last = ev.Sequence
		}

		s1, err := log.Events(ctx, EventQuery{SessionID: "s1"})
		require.NoError(t, err)
		require.Len(t, s1, 3)
		assert.Equal(t, "session_start", s1[0].Kind)
		assert.Equal(t, "review_answer", s1[1].Kind)
		assert.JSONEq(t, `{"item_id":"a"}`, string(s1[1].Data))
		assert.Equal(t, "session_end", s1[2].Kind)

		starts, err := log.Events(ctx, EventQuery{Kind: "session_start"})
		require.NoError(t, err)
		assert.Len(t, starts, 2)

		after, err := log.Events(ctx, EventQuery{After: events[1].Sequence, Limit: 1})
		require.NoError(t, err)
		require.Len(t, after, 1)
		assert.Equal(t, events[2].Sequence, after[0].Sequence)

		byOwner, err := log.Events(ctx, EventQuery{Owner: "u2"})
		require.NoError(t, err)
		assert.Len(t, byOwner, 1)
	})
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "u1/a1", Key("u1", "a1"))
	assert.Equal(t, "2025-03-04", DateKey(civil.Date{Year: 2025, Month: 3, Day: 4}))

	early := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	late := early.Add(1500 * time.Millisecond)
	assert.Less(t, TimeKey(early), TimeKey(late))
	assert.Len(t, TimeKey(early), len(TimeKey(late)))

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, TimeKey(early), TimeKey(early.In(ny)))
}

func TestDefaultDBPath_Env(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "custom.db")
	t.Setenv("LEXIZ_DB", p)

	got, err := DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.DirExists(t, filepath.Dir(p))
}

func TestDefaultDBPath_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEXIZ_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)

	got, err := DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lexiz", "lexiz.db"), got)
}
