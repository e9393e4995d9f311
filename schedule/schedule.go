// Package schedule coalesces rapid shots into debounced scoring passes
// and dispatches them to a bounded worker pool.
//
// Every shot schedules a pass for its (user, level) after a quiescence
// delay; another shot from the same user inside the window resets the
// timer (trailing-edge debounce). At most one pass per user is ever in
// flight: a pass falling due while the previous one still runs queues
// behind it instead of racing it over the same canvas. Workers only
// compute; a single applier goroutine performs the persistence write, so
// the request path never waits for a score.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scorer computes the similarity score for a user's canvas on a level.
// *scoring.Engine satisfies it via Compute.
type Scorer interface {
	Compute(ctx context.Context, userID, level int64) (float64, error)
}

// ScoreWriter persists a computed score. *store.Store satisfies it.
type ScoreWriter interface {
	SetScore(ctx context.Context, userID, level int64, score float64) error
}

// Config tunes the coordinator.
type Config struct {
	// Quiescence is the debounce delay after the last shot before a
	// scoring pass fires. Default: 500ms.
	Quiescence time.Duration
	// Workers is the scoring pool size. Default: 2.
	Workers int
	// QueueSize bounds the task channel. Default: 64.
	QueueSize int
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Quiescence <= 0 {
		c.Quiescence = 500 * time.Millisecond
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type task struct {
	userID int64
	level  int64
}

type result struct {
	task
	score float64
	err   error
}

// userState is the per-user scheduling record. Created on the user's
// first shot, removed again once the user is idle with nothing pending.
type userState struct {
	timer   *time.Timer
	level   int64
	running bool
	queued  bool

	// gen identifies the newest Schedule call. A timer that fires after
	// being superseded sees a stale gen and does nothing.
	gen uint64
}

// Stats are point-in-time counters.
type Stats struct {
	Scheduled int64 `json:"scheduled"`
	Fired     int64 `json:"fired"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Coordinator is the per-user debounce scheduler and dispatch pool.
// Create with New, start with Run, feed with Schedule.
type Coordinator struct {
	cfg    Config
	scorer Scorer
	writer ScoreWriter

	mu    sync.Mutex
	users map[int64]*userState

	tasks   chan task
	results chan result

	scheduled atomic.Int64
	fired     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New creates a Coordinator. Call Run before Schedule.
func New(scorer Scorer, writer ScoreWriter, cfg Config) *Coordinator {
	cfg.defaults()
	return &Coordinator{
		cfg:     cfg,
		scorer:  scorer,
		writer:  writer,
		users:   make(map[int64]*userState),
		tasks:   make(chan task, cfg.QueueSize),
		results: make(chan result, cfg.QueueSize),
	}
}

// Stats returns the current counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Scheduled: c.scheduled.Load(),
		Fired:     c.fired.Load(),
		Completed: c.completed.Load(),
		Failed:    c.failed.Load(),
	}
}

// Run starts the worker pool and the result applier and blocks until ctx
// is cancelled. Pending debounce timers are discarded on shutdown; a pass
// already dispatched to a worker is allowed to finish.
func (c *Coordinator) Run(ctx context.Context) {
	log := c.cfg.Logger
	log.Info("schedule: started",
		"quiescence", c.cfg.Quiescence, "workers", c.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.applier(ctx)
	}()

	<-ctx.Done()

	c.mu.Lock()
	for id, st := range c.users {
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(c.users, id)
	}
	c.mu.Unlock()

	wg.Wait()
	log.Info("schedule: stopped")
}

// Schedule requests a scoring pass for (user, level) after the quiescence
// delay. Calling again before the delay elapses restarts it from zero.
// Never blocks.
func (c *Coordinator) Schedule(userID, level int64) {
	c.scheduled.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.users[userID]
	if st == nil {
		st = &userState{}
		c.users[userID] = st
	}
	st.level = level
	st.gen++
	gen := st.gen
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(c.cfg.Quiescence, func() { c.fire(userID, gen) })
}

// fire moves a quiesced user into the dispatch queue, or marks the pass
// as queued when one is already running for that user.
func (c *Coordinator) fire(userID int64, gen uint64) {
	c.mu.Lock()
	st := c.users[userID]
	if st == nil || st.gen != gen {
		// Shut down, or superseded by a newer schedule.
		c.mu.Unlock()
		return
	}
	st.timer = nil
	if st.running {
		st.queued = true
		c.mu.Unlock()
		return
	}
	st.running = true
	t := task{userID: userID, level: st.level}
	c.mu.Unlock()

	c.fired.Add(1)
	select {
	case c.tasks <- t:
	default:
		// Queue full: drop and reschedule rather than block the timer
		// goroutine. The pass is late, not lost.
		c.cfg.Logger.Warn("schedule: task queue full, rescheduling",
			"user_id", userID, "level", t.level)
		c.mu.Lock()
		st.running = false
		c.mu.Unlock()
		c.Schedule(userID, t.level)
	}
}

// finish clears the running flag after a pass has been fully applied. A
// pass that queued up behind the finished one is dispatched now; an idle
// user's state record is dropped.
func (c *Coordinator) finish(userID int64) {
	c.mu.Lock()
	st := c.users[userID]
	if st == nil {
		c.mu.Unlock()
		return
	}
	st.running = false
	if st.queued {
		st.queued = false
		st.running = true
		t := task{userID: userID, level: st.level}
		c.mu.Unlock()
		c.fired.Add(1)
		select {
		case c.tasks <- t:
		default:
			c.mu.Lock()
			st.running = false
			c.mu.Unlock()
			c.Schedule(userID, t.level)
		}
		return
	}
	if st.timer == nil {
		delete(c.users, userID)
	}
	c.mu.Unlock()
}

func (c *Coordinator) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-c.tasks:
			score, err := c.scorer.Compute(ctx, t.userID, t.level)
			select {
			case c.results <- result{task: t, score: score, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// applier is the single result-processing path: it persists scores and
// logs failures. A failed pass is dropped; the next debounced pass
// recomputes and overwrites, so no durable failure state is needed.
func (c *Coordinator) applier(ctx context.Context) {
	log := c.cfg.Logger
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-c.results:
			if res.err != nil {
				c.failed.Add(1)
				log.Warn("schedule: scoring pass failed",
					"user_id", res.userID, "level", res.level, "error", res.err)
				c.finish(res.userID)
				continue
			}
			if err := c.writer.SetScore(ctx, res.userID, res.level, res.score); err != nil {
				c.failed.Add(1)
				log.Warn("schedule: score write failed",
					"user_id", res.userID, "level", res.level, "error", err)
				c.finish(res.userID)
				continue
			}
			c.completed.Add(1)
			log.Debug("schedule: score applied",
				"user_id", res.userID, "level", res.level, "score", res.score)
			c.finish(res.userID)
		}
	}
}
