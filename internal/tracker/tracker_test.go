package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lexiz/internal/apperr"
	"github.com/abhisek/lexiz/internal/mastery"
	"github.com/abhisek/lexiz/internal/reminders"
	"github.com/abhisek/lexiz/internal/similarity"
	"github.com/abhisek/lexiz/internal/spacedrep"
	"github.com/abhisek/lexiz/internal/store"
	"github.com/abhisek/lexiz/internal/vocab"
)

var (
	now   = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	today = civil.Date{Year: 2025, Month: 3, Day: 10}
)

// flakyStore fails writes while failPuts is set.
type flakyStore struct {
	*store.Memory
	mu       sync.Mutex
	failPuts bool
}

func (f *flakyStore) Put(ctx context.Context, collection string, rec store.Record) error {
	f.mu.Lock()
	fail := f.failPuts
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Memory.Put(ctx, collection, rec)
}

type failingReminders struct{}

func (failingReminders) Schedule(context.Context, string, string, spacedrep.Rating, time.Time) (*reminders.Reminder, error) {
	return nil, errors.New("queue down")
}

type fixture struct {
	rs      *flakyStore
	items   *vocab.Repo
	queue   *reminders.Queue
	tracker *Tracker
}

func setup(t *testing.T, opts Options) *fixture {
	t.Helper()
	rs := &flakyStore{Memory: store.NewMemory()}
	items := vocab.NewRepo(rs)
	q := reminders.NewQueue(rs)
	if opts.Reminders == nil {
		opts.Reminders = q
	}
	opts.Location = time.UTC
	tr := New(items, opts)
	tr.now = func() time.Time { return now }

	it := vocab.NewItem("u1", "es", "perro", "perro", "dog", today, now)
	require.NoError(t, items.Save(context.Background(), it))
	return &fixture{rs: rs, items: items, queue: q, tracker: tr}
}

func TestRecordAnswer_Counters(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()

	_, err := f.tracker.RecordAnswer(ctx, "u1", "perro", vocab.ModalityText, true)
	require.NoError(t, err)
	_, err = f.tracker.RecordAnswer(ctx, "u1", "perro", vocab.ModalityVoice, false)
	require.NoError(t, err)

	it, err := f.items.Get(ctx, "u1", "perro")
	require.NoError(t, err)
	assert.Equal(t, 1, it.TextCorrect)
	assert.Equal(t, 1, it.VoiceIncorrect)
	assert.Equal(t, 0, it.TextIncorrect)
	assert.Equal(t, 0, it.VoiceCorrect)
}

func TestRecordAnswer_NotFound(t *testing.T) {
	f := setup(t, Options{})
	_, err := f.tracker.RecordAnswer(context.Background(), "u1", "gato", vocab.ModalityText, true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordAnswer_InvalidModality(t *testing.T) {
	f := setup(t, Options{})
	_, err := f.tracker.RecordAnswer(context.Background(), "u1", "perro", "sign", true)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRecordAnswer_StoreFailure(t *testing.T) {
	f := setup(t, Options{})
	f.rs.failPuts = true
	_, err := f.tracker.RecordAnswer(context.Background(), "u1", "perro", vocab.ModalityText, true)
	assert.ErrorIs(t, err, apperr.ErrStore)
}

func TestRecordAnswer_ConcurrentIncrements(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.tracker.RecordAnswer(ctx, "u1", "perro", vocab.ModalityText, true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	it, err := f.items.Get(ctx, "u1", "perro")
	require.NoError(t, err)
	assert.Equal(t, 20, it.TextCorrect)
}

func TestRecordSpokenAnswer(t *testing.T) {
	f := setup(t, Options{Grader: similarity.Grader{VoicePassThreshold: 60}})
	ctx := context.Background()

	g, err := f.tracker.RecordSpokenAnswer(ctx, "u1", "perro", " DOG ")
	require.NoError(t, err)
	assert.Equal(t, 100, g.Score)
	assert.True(t, g.Passed)

	g, err = f.tracker.RecordSpokenAnswer(ctx, "u1", "perro", "cat")
	require.NoError(t, err)
	assert.False(t, g.Passed)

	it, err := f.items.Get(ctx, "u1", "perro")
	require.NoError(t, err)
	assert.Equal(t, 1, it.VoiceCorrect)
	assert.Equal(t, 1, it.VoiceIncorrect)
}

func TestRecordDifficultyRating_Schedules(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()

	out, err := f.tracker.RecordDifficultyRating(ctx, "u1", "perro", spacedrep.Good, now)
	require.NoError(t, err)
	assert.Equal(t, 1, out.PreviousInterval)
	assert.Equal(t, 2.5, out.PreviousEase)
	require.NotNil(t, out.Transition)
	assert.Equal(t, mastery.StatusLearning, out.Transition.To)
	assert.Nil(t, out.ReminderAt)

	it, err := f.items.Get(ctx, "u1", "perro")
	require.NoError(t, err)
	assert.Equal(t, 3, it.Interval) // round(1 * 2.5)
	assert.Equal(t, today.AddDays(3), it.DueDate)
	assert.Equal(t, mastery.StatusLearning, it.Status)
	assert.Equal(t, spacedrep.Good, it.LastRating)
	require.NotNil(t, it.LastReviewedAt)
}

func TestRecordDifficultyRating_Graduates(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()

	it, err := f.items.Get(ctx, "u1", "perro")
	require.NoError(t, err)
	it.Interval = 15
	it.Status = mastery.StatusLearning
	require.NoError(t, f.items.Save(ctx, it))

	out, err := f.tracker.RecordDifficultyRating(ctx, "u1", "perro", spacedrep.Good, now)
	require.NoError(t, err)
	assert.Equal(t, 38, out.Item.Interval)
	require.NotNil(t, out.Transition)
	assert.Equal(t, mastery.StatusMastered, out.Transition.To)

	// Mastered items stay mastered after a lapse.
	out, err = f.tracker.RecordDifficultyRating(ctx, "u1", "perro", spacedrep.Again, now)
	require.NoError(t, err)
	assert.Nil(t, out.Transition)
	assert.Equal(t, mastery.StatusMastered, out.Item.Status)
	assert.Equal(t, 1, out.Item.Interval)
}

func TestRecordDifficultyRating_ReminderDoesNotMoveDueDate(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()

	out, err := f.tracker.RecordDifficultyRating(ctx, "u1", "perro", spacedrep.Again, now)
	require.NoError(t, err)
	require.NotNil(t, out.ReminderAt)
	assert.Equal(t, now.Add(4*time.Hour), *out.ReminderAt)
	assert.Equal(t, today.AddDays(1), out.Item.DueDate)

	pending, err := f.queue.Pending(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, spacedrep.Again, pending[0].Rating)
}

func TestRecordDifficultyRating_ReminderFailureIsLogged(t *testing.T) {
	f := setup(t, Options{Reminders: failingReminders{}})
	out, err := f.tracker.RecordDifficultyRating(context.Background(), "u1", "perro", spacedrep.Hard, now)
	require.NoError(t, err)
	assert.Nil(t, out.ReminderAt)
	assert.Equal(t, spacedrep.Hard, out.Item.LastRating)
}

func TestRecordDifficultyRating_InvalidRating(t *testing.T) {
	f := setup(t, Options{})
	_, err := f.tracker.RecordDifficultyRating(context.Background(), "u1", "perro", "meh", now)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRecordDifficultyRating_UsesLocationForToday(t *testing.T) {
	f := setup(t, Options{})
	tokyo := time.FixedZone("JST", 9*3600)
	f.tracker.opts.Location = tokyo

	late := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC) // already the 11th in Tokyo
	out, err := f.tracker.RecordDifficultyRating(context.Background(), "u1", "perro", spacedrep.Again, late)
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 12}, out.Item.DueDate)
}
