package session

import (
	"math"
	"time"

	"github.com/abhisek/lexiz/internal/spacedrep"
)

// ItemResult tracks one item's performance within a session.
type ItemResult struct {
	ItemID      string
	Prompt      string
	Attempted   int
	Correct     int
	LastRating  spacedrep.Rating
	RepeatCount int
}

// SessionSummary holds the data shown when a session completes.
type SessionSummary struct {
	Session     StudySession
	Duration    time.Duration
	ItemResults []ItemResult
}

// Accuracy rounds correct/total to a percentage with two decimals. It is
// zero when nothing was answered.
func Accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*10000) / 100
}

func buildSummary(ls *liveSession, s StudySession) *SessionSummary {
	results := make([]ItemResult, 0, len(ls.resultOrder))
	for _, id := range ls.resultOrder {
		r := *ls.results[id]
		if e, ok := ls.queue.index[id]; ok {
			r.RepeatCount = ls.queue.entries[e].RepeatCount
		}
		results = append(results, r)
	}
	return &SessionSummary{
		Session:     s,
		Duration:    time.Duration(s.DurationMs) * time.Millisecond,
		ItemResults: results,
	}
}
