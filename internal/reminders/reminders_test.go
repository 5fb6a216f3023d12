package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lexiz/internal/spacedrep"
	"github.com/abhisek/lexiz/internal/store"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestDelay(t *testing.T) {
	assert.Equal(t, 4*time.Hour, Delay(spacedrep.Again))
	assert.Equal(t, 12*time.Hour, Delay(spacedrep.Hard))
	assert.Zero(t, Delay(spacedrep.Good))
	assert.Zero(t, Delay(spacedrep.Easy))
}

func TestQueue_ScheduleAndDue(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(store.NewMemory())

	r, err := q.Schedule(ctx, "u1", "a", spacedrep.Again, t0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(4*time.Hour), r.DueAt)

	_, err = q.Schedule(ctx, "u1", "b", spacedrep.Hard, t0)
	require.NoError(t, err)

	none, err := q.Schedule(ctx, "u1", "c", spacedrep.Good, t0)
	require.NoError(t, err)
	assert.Nil(t, none)

	due, err := q.Due(ctx, t0.Add(5*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "a", due[0].ItemID)

	pending, err := q.Pending(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestQueue_NewerRatingReplaces(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(store.NewMemory())

	_, err := q.Schedule(ctx, "u1", "a", spacedrep.Hard, t0)
	require.NoError(t, err)
	_, err = q.Schedule(ctx, "u1", "a", spacedrep.Again, t0.Add(time.Hour))
	require.NoError(t, err)

	pending, err := q.Pending(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, spacedrep.Again, pending[0].Rating)
	assert.Equal(t, t0.Add(5*time.Hour), pending[0].DueAt)
}

type recordingNotifier struct {
	calls map[string]int
	fail  string
}

func (n *recordingNotifier) Notify(_ context.Context, userID string, due []*Reminder) error {
	if userID == n.fail {
		return errors.New("unreachable")
	}
	n.calls[userID] += len(due)
	return nil
}

func TestDispatcher_DispatchDue(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(store.NewMemory())
	for _, u := range []string{"u1", "u2", "u3"} {
		_, err := q.Schedule(ctx, u, "a", spacedrep.Again, t0)
		require.NoError(t, err)
	}
	_, err := q.Schedule(ctx, "u1", "b", spacedrep.Again, t0)
	require.NoError(t, err)
	_, err = q.Schedule(ctx, "u1", "late", spacedrep.Hard, t0)
	require.NoError(t, err)

	n := &recordingNotifier{calls: map[string]int{}, fail: "u3"}
	d := NewDispatcher(q, n, DispatcherConfig{Location: time.UTC}, nil)
	d.now = func() time.Time { return t0.Add(4 * time.Hour) }

	sent, err := d.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, 2, n.calls["u1"])
	assert.Equal(t, 1, n.calls["u2"])

	// The failed user's reminder stays queued, as does the one not yet due.
	left, err := q.Due(ctx, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestDispatcher_WithinHours(t *testing.T) {
	d := NewDispatcher(NewQueue(store.NewMemory()), nil, DispatcherConfig{Location: time.UTC}, nil)
	at := func(h int) time.Time { return time.Date(2025, 3, 10, h, 30, 0, 0, time.UTC) }

	assert.False(t, d.withinHours(at(7)))
	assert.True(t, d.withinHours(at(8)))
	assert.True(t, d.withinHours(at(21)))
	assert.False(t, d.withinHours(at(22)), "end hour is exclusive")
	assert.False(t, d.withinHours(at(23)))

	night := NewDispatcher(NewQueue(store.NewMemory()), nil,
		DispatcherConfig{StartHour: 20, EndHour: 6, Location: time.UTC}, nil)
	assert.True(t, night.withinHours(at(23)))
	assert.True(t, night.withinHours(at(3)))
	assert.True(t, night.withinHours(at(5)))
	assert.False(t, night.withinHours(at(6)))
	assert.False(t, night.withinHours(at(12)))

	allDay := NewDispatcher(NewQueue(store.NewMemory()), nil,
		DispatcherConfig{StartHour: 0, EndHour: 24, Location: time.UTC}, nil)
	assert.True(t, allDay.withinHours(at(0)))
	assert.True(t, allDay.withinHours(at(23)))
}

func TestQueue_AckKeepsRescheduledReminder(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(store.NewMemory())

	_, err := q.Schedule(ctx, "u1", "a", spacedrep.Again, t0)
	require.NoError(t, err)
	due, err := q.Due(ctx, t0.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)

	// Rated again while the dispatch was in flight.
	_, err = q.Schedule(ctx, "u1", "a", spacedrep.Hard, t0.Add(3*time.Hour))
	require.NoError(t, err)

	require.NoError(t, q.Ack(ctx, due[0]))
	pending, err := q.Pending(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, t0.Add(15*time.Hour), pending[0].DueAt)

	require.NoError(t, q.Ack(ctx, pending[0]))
	pending, err = q.Pending(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.NoError(t, q.Ack(ctx, due[0]), "already gone")
}

func TestDispatcher_StartStop(t *testing.T) {
	d := NewDispatcher(NewQueue(store.NewMemory()), nil, DispatcherConfig{Interval: time.Hour}, nil)
	require.NoError(t, d.Start(context.Background()))
	assert.Error(t, d.Start(context.Background()))
	d.Stop()
	d.Stop()
}
