package reminders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/abhisek/lexiz/internal/logger"
)

// Default notification window, in local hours.
const (
	DefaultStartHour = 8
	DefaultEndHour   = 22
	DefaultInterval  = 5 * time.Minute
)

// Notifier delivers the reminders due for one user.
type Notifier interface {
	Notify(ctx context.Context, userID string, due []*Reminder) error
}

// LogNotifier writes reminders to the log.
type LogNotifier struct {
	Log *logger.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, userID string, due []*Reminder) error {
	items := make([]string, len(due))
	for i, r := range due {
		items[i] = r.ItemID
	}
	logger.OrNop(n.Log).Info("practice reminder", "user", userID, "count", len(due), "items", items)
	return nil
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Interval time.Duration
	// Reminders go out from StartHour up to, not including, EndHour.
	// EndHour 24 means until midnight.
	StartHour int
	EndHour   int
	Location  *time.Location
}

// Dispatcher periodically delivers due reminders within notification hours.
type Dispatcher struct {
	queue    *Queue
	notifier Notifier
	cfg      DispatcherConfig
	log      *logger.Logger
	now      func() time.Time

	mu        sync.Mutex
	scheduler *gocron.Scheduler
}

// NewDispatcher creates a Dispatcher. Zero config fields take defaults.
func NewDispatcher(q *Queue, n Notifier, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.StartHour == 0 && cfg.EndHour == 0 {
		cfg.StartHour, cfg.EndHour = DefaultStartHour, DefaultEndHour
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	log = logger.OrNop(log).With("service", "ReminderDispatcher")
	if n == nil {
		n = LogNotifier{Log: log}
	}
	return &Dispatcher{queue: q, notifier: n, cfg: cfg, log: log, now: time.Now}
}

// Start schedules the dispatch job and returns immediately.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scheduler != nil {
		return fmt.Errorf("dispatcher already started")
	}

	s := gocron.NewScheduler(d.cfg.Location)
	s.SingletonModeAll()
	if _, err := s.Every(d.cfg.Interval).Do(func() { d.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule dispatch job: %w", err)
	}
	s.StartAsync()
	d.scheduler = s

	d.log.Info("dispatcher started",
		"interval", d.cfg.Interval.String(), "start_hour", d.cfg.StartHour, "end_hour", d.cfg.EndHour)
	return nil
}

// Stop halts the job. It waits for a running dispatch to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scheduler == nil {
		return
	}
	d.scheduler.Stop()
	d.scheduler = nil
}

func (d *Dispatcher) tick(ctx context.Context) {
	if !d.withinHours(d.now()) {
		d.log.Debug("outside notification hours, skipping")
		return
	}
	if _, err := d.DispatchDue(ctx); err != nil {
		d.log.Warn("dispatch reminders failed", "error", err)
	}
}

func (d *Dispatcher) withinHours(t time.Time) bool {
	h := t.In(d.cfg.Location).Hour()
	if d.cfg.StartHour <= d.cfg.EndHour {
		return h >= d.cfg.StartHour && h < d.cfg.EndHour
	}
	// Window wraps midnight, e.g. 20-6.
	return h >= d.cfg.StartHour || h < d.cfg.EndHour
}

// DispatchDue sends every due reminder, grouped per user, and removes the
// delivered ones. It returns the number delivered.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	due, err := d.queue.Due(ctx, d.now())
	if err != nil {
		return 0, err
	}

	byUser := make(map[string][]*Reminder)
	for _, r := range due {
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}
	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)

	sent := 0
	for _, u := range users {
		batch := byUser[u]
		if err := d.notifier.Notify(ctx, u, batch); err != nil {
			d.log.Warn("notify failed", "user", u, "error", err)
			continue
		}
		for _, r := range batch {
			if err := d.queue.Ack(ctx, r); err != nil {
				d.log.Warn("ack reminder failed", "user", u, "item", r.ItemID, "error", err)
				continue
			}
			sent++
		}
	}
	return sent, nil
}
