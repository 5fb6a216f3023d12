package summary

import (
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lexiz/internal/router"
	"github.com/abhisek/lexiz/internal/session"
	"github.com/abhisek/lexiz/internal/spacedrep"
)

func testSummary() *session.SessionSummary {
	return &session.SessionSummary{
		Session: session.StudySession{
			SessionID:          "s1",
			Status:             session.StatusCompleted,
			TotalAnswers:       5,
			CorrectAnswers:     4,
			AccuracyPercent:    80,
			TotalOriginalCards: 3,
			TotalRepeatedCards: 2,
			UnsyncedEvents:     1,
		},
		Duration: 4*time.Minute + 5*time.Second,
		ItemResults: []session.ItemResult{
			{ItemID: "cat", Prompt: "cat", Attempted: 1, Correct: 1, LastRating: spacedrep.Good},
			{ItemID: "dog", Prompt: "dog", Attempted: 3, Correct: 2, LastRating: spacedrep.Hard, RepeatCount: 2},
			{ItemID: "owl", Prompt: "owl", Attempted: 1, Correct: 1},
		},
	}
}

func TestSummaryScreen_Title(t *testing.T) {
	assert.Equal(t, "Session Summary", New(testSummary()).Title())
}

func TestSummaryScreen_Display(t *testing.T) {
	view := New(testSummary()).View(100, 30)
	assert.Contains(t, view, "4:05")
	assert.Contains(t, view, "Accuracy: 80%")
	assert.Contains(t, view, "Repeated: 2")
	assert.Contains(t, view, "1 updates could not be saved")
	assert.Contains(t, view, "repeated 2x")
	assert.Contains(t, view, "unrated")
}

func TestSummaryScreen_NilSummary(t *testing.T) {
	assert.Empty(t, New(nil).View(80, 24))
}

func TestSummaryScreen_Navigation(t *testing.T) {
	for _, code := range []rune{tea.KeyEnter, tea.KeyEscape} {
		_, cmd := New(testSummary()).Update(tea.KeyPressMsg{Code: code})
		require.NotNil(t, cmd)
		assert.IsType(t, router.PopScreenMsg{}, cmd())
	}
}

func TestSummaryScreen_KeyHints(t *testing.T) {
	assert.Len(t, New(testSummary()).KeyHints(), 2)
}
