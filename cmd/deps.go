package cmd

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/abhisek/lexiz/internal/activity"
	"github.com/abhisek/lexiz/internal/hints"
	"github.com/abhisek/lexiz/internal/keylock"
	"github.com/abhisek/lexiz/internal/llm"
	"github.com/abhisek/lexiz/internal/mastery"
	"github.com/abhisek/lexiz/internal/reminders"
	"github.com/abhisek/lexiz/internal/session"
	"github.com/abhisek/lexiz/internal/similarity"
	"github.com/abhisek/lexiz/internal/store"
	"github.com/abhisek/lexiz/internal/tracker"
	"github.com/abhisek/lexiz/internal/vocab"
)

// deps is the wired study core shared by every command.
type deps struct {
	records store.RecordStore
	events  store.EventLog
	locker  keylock.Locker

	items     *vocab.Repo
	sessions  *session.Repo
	activity  *activity.Aggregator
	reminders *reminders.Queue
	tracker   *tracker.Tracker
	hints     *hints.Service
	engine    *session.Engine

	closers []func() error
}

type depsOpts struct {
	// withHints builds the LLM provider and the hint service.
	withHints bool
}

// openDeps opens the store and wires the core from cfg.
func openDeps(cmd *cobra.Command, o depsOpts) (*deps, error) {
	ctx := cmd.Context()
	d := &deps{}

	if ephemeral, _ := cmd.Flags().GetBool("ephemeral"); ephemeral {
		mem := store.NewMemory()
		d.records, d.events = mem, mem
		log.Debug("using in-memory store")
	} else {
		dsn, err := cfg.ResolveDSN()
		if err != nil {
			return nil, fmt.Errorf("resolve database: %w", err)
		}
		st, err := store.Open(cfg.DB.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		d.records, d.events = st, st
		d.closers = append(d.closers, st.Close)
	}

	if cfg.Redis.Addr != "" {
		rdb, err := keylock.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		d.closers = append(d.closers, rdb.Close)
		d.locker = keylock.NewRedis(rdb, keylock.RedisOptions{}, log)
	} else {
		d.locker = keylock.NewLocal()
	}

	grader := similarity.Grader{VoicePassThreshold: cfg.Study.VoicePassThreshold}
	d.items = vocab.NewRepo(d.records)
	d.sessions = session.NewRepo(d.records)
	d.activity = activity.New(d.records, d.locker, log)
	d.reminders = reminders.NewQueue(d.records)
	d.tracker = tracker.New(d.items, tracker.Options{
		Locker:    d.locker,
		Reminders: d.reminders,
		Grader:    grader,
		Policy:    mastery.Policy{DemoteOnLapse: cfg.Study.DemoteOnLapse},
		Location:  cfg.Study.Location,
		Log:       log,
	})

	var hintSource session.HintSource
	if o.withHints {
		provider, err := llm.NewProvider(ctx, cfg.LLM, log, d.events)
		if err != nil {
			log.Warn("hints disabled", "error", err)
		} else if provider != nil {
			d.hints = hints.NewService(provider, cfg.Hints, log)
			hintSource = d.hints
		}
	}

	d.engine = session.NewEngine(session.Deps{
		Items:    d.items,
		Sessions: d.sessions,
		Tracker:  d.tracker,
		Activity: d.activity,
		Events:   d.events,
		Hints:    hintSource,
		Locker:   d.locker,
		Grader:   grader,
		Log:      log,
	}, session.Config{
		MaxCards: cfg.Study.MaxCards,
		Location: cfg.Study.Location,
		Retry:    session.DefaultRetryConfig(),
	})
	return d, nil
}

// today is the current calendar day in the study timezone.
func today() civil.Date {
	return civil.DateOf(time.Now().In(cfg.Study.Location))
}

// Close waits for background hint requests and closes connections.
func (d *deps) Close() {
	if d.hints != nil {
		d.hints.Wait()
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Warn("close failed", "error", err)
		}
	}
}

// shutdown abandons sessions the UI left open.
func (d *deps) shutdown(ctx context.Context) {
	n, err := d.engine.Shutdown(context.WithoutCancel(ctx))
	if err != nil {
		log.Warn("abandon open sessions", "error", err)
	}
	if n > 0 {
		log.Info("abandoned open sessions", "count", n)
	}
}
