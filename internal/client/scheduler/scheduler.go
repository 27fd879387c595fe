// Package scheduler decides when the client actually talks to the server:
// change bursts are debounced, sync attempts are spaced by a minimum
// interval, and at most one sync runs at a time with a trailing re-run when
// changes arrive mid-flight.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	DefaultDebounce    = 5 * time.Second
	DefaultMinInterval = 30 * time.Second
)

type State int32

const (
	StateIdle State = iota
	StateDebouncing
	StateRateLimited
	StateSyncing
)

func (s State) String() string {
	switch s {
	case StateDebouncing:
		return "debouncing"
	case StateRateLimited:
		return "rate-limited"
	case StateSyncing:
		return "syncing"
	default:
		return "idle"
	}
}

// RetryAfterError is returned by a SyncFunc when the server rate-limited
// the attempt; the scheduler waits it out instead of the usual interval.
type RetryAfterError struct {
	RetryAfter time.Duration
}

func (e *RetryAfterError) Error() string {
	return "sync rate limited, retry after " + e.RetryAfter.String()
}

// SyncFunc runs one full sync attempt.
type SyncFunc func(ctx context.Context) error

type Config struct {
	Debounce    time.Duration
	MinInterval time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Debounce <= 0 {
		out.Debounce = DefaultDebounce
	}
	if out.MinInterval <= 0 {
		out.MinInterval = DefaultMinInterval
	}
	return out
}

type Scheduler struct {
	cfg  Config
	sync SyncFunc

	changes chan struct{}
	force   chan struct{}
	done    chan error

	state atomic.Int32

	// loop-goroutine state, never touched elsewhere
	inFlight bool
	trailing bool
	lastSync time.Time
}

func New(cfg Config, syncFn SyncFunc) *Scheduler {
	return &Scheduler{
		cfg:     cfg.withDefaults(),
		sync:    syncFn,
		changes: make(chan struct{}, 1),
		force:   make(chan struct{}, 1),
		done:    make(chan error, 1),
	}
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(state State) {
	s.state.Store(int32(state))
}

// OnChange notes a local file change. Safe from any goroutine; signals are
// collapsed so a burst costs one wakeup.
func (s *Scheduler) OnChange() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// ForceSync requests an immediate attempt, bypassing debounce and interval
// spacing. Still coalesces with an in-flight sync.
func (s *Scheduler) ForceSync() {
	select {
	case s.force <- struct{}{}:
	default:
	}
}

// Run drives the state machine until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("scheduler start", "debounce", s.cfg.Debounce, "minInterval", s.cfg.MinInterval)
	defer slog.Info("scheduler stop")

	// armed on demand; a stopped timer never fires
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.changes:
			if !s.inFlight {
				s.setState(StateDebouncing)
			}
			resetTimer(timer, s.cfg.Debounce)

		case <-s.force:
			s.attempt(ctx, timer, true)

		case <-timer.C:
			s.attempt(ctx, timer, false)

		case err := <-s.done:
			s.finish(ctx, timer, err)
		}
	}
}

// attempt fires a sync now, or reschedules when the interval spacing or an
// in-flight sync says not yet.
func (s *Scheduler) attempt(ctx context.Context, timer *time.Timer, force bool) {
	if s.inFlight {
		// coalesce, the trailing run happens after the current one
		s.trailing = true
		return
	}

	if !force && !s.lastSync.IsZero() {
		if wait := s.cfg.MinInterval - time.Since(s.lastSync); wait > 0 {
			// rescheduled for exactly the remaining spacing, not dropped
			slog.Debug("sync deferred", "wait", wait)
			resetTimer(timer, wait)
			return
		}
	}

	s.inFlight = true
	s.setState(StateSyncing)

	go func() {
		s.done <- s.sync(ctx)
	}()
}

func (s *Scheduler) finish(ctx context.Context, timer *time.Timer, err error) {
	s.inFlight = false
	s.lastSync = time.Now()
	s.setState(StateIdle)

	var rlErr *RetryAfterError
	switch {
	case err == nil:

	case errors.As(err, &rlErr):
		slog.Warn("sync rate limited", "retryAfter", rlErr.RetryAfter)
		s.setState(StateRateLimited)
		s.trailing = false
		resetTimer(timer, rlErr.RetryAfter)
		return

	case errors.Is(err, context.Canceled):
		return

	default:
		slog.Error("sync attempt", "error", err)
	}

	if s.trailing {
		s.trailing = false
		s.attempt(ctx, timer, true)
	}
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}
