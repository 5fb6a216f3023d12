package session

import (
	"context"

	"github.com/abhisek/lexiz/internal/apperr"
	"github.com/abhisek/lexiz/internal/store"
)

// Repo persists sessions in the sessions collection, sorted by start time.
type Repo struct {
	rs store.RecordStore
}

// NewRepo creates a Repo over rs.
func NewRepo(rs store.RecordStore) *Repo {
	return &Repo{rs: rs}
}

// Get loads a session by ID.
func (r *Repo) Get(ctx context.Context, sessionID string) (*StudySession, error) {
	rec, err := r.rs.Get(ctx, store.CollectionSessions, sessionID)
	if err != nil {
		return nil, apperr.Store("load session", err)
	}
	return store.Decode[StudySession](*rec)
}

// Save writes s.
func (r *Repo) Save(ctx context.Context, s *StudySession) error {
	rec, err := store.Encode(s.SessionID, s.UserID, store.TimeKey(s.StartedAt), s)
	if err != nil {
		return err
	}
	if err := r.rs.Put(ctx, store.CollectionSessions, rec); err != nil {
		return apperr.Store("save session", err)
	}
	return nil
}

// Recent returns a user's sessions, newest first. A limit of zero returns
// every session.
func (r *Repo) Recent(ctx context.Context, userID string, limit int) ([]*StudySession, error) {
	return r.query(ctx, store.Query{Owner: userID, Desc: true, Limit: limit})
}

// InProgress returns a user's sessions that were never finalized, oldest
// first.
func (r *Repo) InProgress(ctx context.Context, userID string) ([]*StudySession, error) {
	return r.query(ctx, store.Query{
		Owner: userID,
		Match: func(rec store.Record) bool {
			s, err := store.Decode[StudySession](rec)
			return err == nil && s.Status == StatusInProgress
		},
	})
}

func (r *Repo) query(ctx context.Context, q store.Query) ([]*StudySession, error) {
	recs, err := r.rs.Query(ctx, store.CollectionSessions, q)
	if err != nil {
		return nil, apperr.Store("query sessions", err)
	}
	return store.DecodeAll[StudySession](recs)
}
