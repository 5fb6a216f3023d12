package session

import (
	"testing"
	"time"
)

func TestRepeatQueue_Dedup(t *testing.T) {
	q := NewRepeatQueue()
	if !q.Add("a") {
		t.Fatal("first Add should report a new item")
	}
	q.Add("b")
	if q.Add("a") {
		t.Error("second Add of the same item should not report a new item")
	}

	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
	entries := q.Entries()
	if entries[0].ItemID != "a" || entries[0].RepeatCount != 2 {
		t.Errorf("entries[0] = %+v, want a with count 2", entries[0])
	}
	if entries[1].ItemID != "b" || entries[1].RepeatCount != 1 {
		t.Errorf("entries[1] = %+v, want b with count 1", entries[1])
	}
	if !q.Contains("b") || q.Contains("c") {
		t.Error("Contains mismatch")
	}
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		correct, total int
		want           float64
	}{
		{0, 0, 0},
		{2, 3, 66.67},
		{1, 3, 33.33},
		{10, 12, 83.33},
		{5, 5, 100},
	}
	for _, tt := range tests {
		if got := Accuracy(tt.correct, tt.total); got != tt.want {
			t.Errorf("Accuracy(%d, %d) = %v, want %v", tt.correct, tt.total, got, tt.want)
		}
	}
}

func TestRetryConfig_BackoffCapped(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialWait: 100 * time.Millisecond, MaxWait: time.Second, Multiplier: 10}
	for attempt := range 4 {
		wait := cfg.backoff(attempt)
		if wait > 1200*time.Millisecond {
			t.Errorf("backoff(%d) = %v, want <= 1.2s", attempt, wait)
		}
	}
}
