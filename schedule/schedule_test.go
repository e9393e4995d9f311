package schedule_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/paintshot/schedule"
)

// fakeScorer counts Compute calls and tracks concurrency per user.
type fakeScorer struct {
	delay time.Duration
	fail  atomic.Bool

	calls      atomic.Int64
	active     atomic.Int64
	maxActive  atomic.Int64
	lastLevels sync.Map // userID -> level
}

func (f *fakeScorer) Compute(ctx context.Context, userID, level int64) (float64, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.calls.Add(1)
	f.lastLevels.Store(userID, level)
	if f.fail.Load() {
		return 0, errors.New("boom")
	}
	return float64(level) * 1.5, nil
}

// fakeWriter records SetScore calls.
type fakeWriter struct {
	mu     sync.Mutex
	scores map[[2]int64]float64
	writes atomic.Int64
}

func (w *fakeWriter) SetScore(_ context.Context, userID, level int64, score float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.scores == nil {
		w.scores = make(map[[2]int64]float64)
	}
	w.scores[[2]int64{userID, level}] = score
	w.writes.Add(1)
	return nil
}

func (w *fakeWriter) score(userID, level int64) (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.scores[[2]int64{userID, level}]
	return s, ok
}

func startCoordinator(t *testing.T, scorer schedule.Scorer, writer schedule.ScoreWriter, cfg schedule.Config) *schedule.Coordinator {
	t.Helper()
	c := schedule.New(scorer, writer, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDebounceCoalescesRapidShots(t *testing.T) {
	scorer := &fakeScorer{}
	writer := &fakeWriter{}
	c := startCoordinator(t, scorer, writer, schedule.Config{Quiescence: 40 * time.Millisecond})

	// Three shots in quick succession: one scoring pass, after quiescence.
	c.Schedule(1, 2)
	time.Sleep(10 * time.Millisecond)
	c.Schedule(1, 2)
	time.Sleep(10 * time.Millisecond)
	c.Schedule(1, 2)

	waitFor(t, time.Second, func() bool { return scorer.calls.Load() == 1 })
	time.Sleep(100 * time.Millisecond)
	if n := scorer.calls.Load(); n != 1 {
		t.Fatalf("scoring passes = %d, want exactly 1", n)
	}
	if s, ok := writer.score(1, 2); !ok || s != 3 {
		t.Fatalf("stored score = %v (%v), want 3", s, ok)
	}
}

func TestDebounceResetsFromZero(t *testing.T) {
	scorer := &fakeScorer{}
	writer := &fakeWriter{}
	c := startCoordinator(t, scorer, writer, schedule.Config{Quiescence: 80 * time.Millisecond})

	c.Schedule(1, 1)
	time.Sleep(50 * time.Millisecond)
	// Second shot before the window closes: the timer restarts.
	c.Schedule(1, 1)
	time.Sleep(50 * time.Millisecond)

	// 100ms after the first shot, the (restarted) window is still open.
	if n := scorer.calls.Load(); n != 0 {
		t.Fatalf("pass fired before quiescence: calls = %d", n)
	}
	waitFor(t, time.Second, func() bool { return scorer.calls.Load() == 1 })
}

func TestSingleFlightPerUser(t *testing.T) {
	scorer := &fakeScorer{delay: 80 * time.Millisecond}
	writer := &fakeWriter{}
	c := startCoordinator(t, scorer, writer, schedule.Config{
		Quiescence: 10 * time.Millisecond,
		Workers:    4,
	})

	// First pass starts running, then a second one falls due mid-flight.
	c.Schedule(1, 1)
	waitFor(t, time.Second, func() bool { return scorer.active.Load() == 1 })
	c.Schedule(1, 1)

	waitFor(t, 2*time.Second, func() bool { return scorer.calls.Load() == 2 })
	if m := scorer.maxActive.Load(); m != 1 {
		t.Fatalf("max concurrent passes for one user = %d, want 1", m)
	}
}

func TestIndependentUsersRunInParallel(t *testing.T) {
	scorer := &fakeScorer{delay: 60 * time.Millisecond}
	writer := &fakeWriter{}
	c := startCoordinator(t, scorer, writer, schedule.Config{
		Quiescence: 10 * time.Millisecond,
		Workers:    4,
	})

	for user := int64(1); user <= 3; user++ {
		c.Schedule(user, 1)
	}
	waitFor(t, 2*time.Second, func() bool { return scorer.calls.Load() == 3 })
	if m := scorer.maxActive.Load(); m < 2 {
		t.Fatalf("max concurrency = %d, expected parallel passes across users", m)
	}
}

func TestScoringFailureIsDroppedNotFatal(t *testing.T) {
	scorer := &fakeScorer{}
	scorer.fail.Store(true)
	writer := &fakeWriter{}
	c := startCoordinator(t, scorer, writer, schedule.Config{Quiescence: 10 * time.Millisecond})

	c.Schedule(1, 1)
	waitFor(t, time.Second, func() bool { return c.Stats().Failed == 1 })
	if writer.writes.Load() != 0 {
		t.Fatal("failed pass must not write a score")
	}

	// The pool is still alive: the next pass succeeds.
	scorer.fail.Store(false)
	c.Schedule(1, 1)
	waitFor(t, time.Second, func() bool { return c.Stats().Completed == 1 })
	if _, ok := writer.score(1, 1); !ok {
		t.Fatal("recovered pass should write a score")
	}
}

func TestLatestLevelWins(t *testing.T) {
	scorer := &fakeScorer{}
	writer := &fakeWriter{}
	c := startCoordinator(t, scorer, writer, schedule.Config{Quiescence: 40 * time.Millisecond})

	// User advances a level mid-window; the pass scores the newest level.
	c.Schedule(1, 1)
	time.Sleep(10 * time.Millisecond)
	c.Schedule(1, 2)

	waitFor(t, time.Second, func() bool { return scorer.calls.Load() == 1 })
	if lvl, ok := scorer.lastLevels.Load(int64(1)); !ok || lvl.(int64) != 2 {
		t.Fatalf("scored level = %v, want 2", lvl)
	}
}
