package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/burakmert236/volei-list/common/logger"
)

type Scheduler struct {
	resetScheduler *ResetScheduler
	location       *time.Location
	resetAt        time.Duration
	runTimeout     time.Duration
	now            func() time.Time
	logger         *logger.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}
}

// NewScheduler runs the reset every day at resetAt, an offset from local
// midnight in loc.
func NewScheduler(
	resetScheduler *ResetScheduler,
	loc *time.Location,
	resetAt time.Duration,
	logger *logger.Logger,
) *Scheduler {
	return &Scheduler{
		resetScheduler: resetScheduler,
		location:       loc,
		resetAt:        resetAt,
		runTimeout:     time.Minute,
		now:            time.Now,
		logger:         logger.With("component", "scheduler"),
		stopChan:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start blocks until Stop is called.
func (s *Scheduler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	defer close(s.done)

	for {
		now := s.now()
		next := nextRun(now, s.location, s.resetAt)
		wait := next.Sub(now)

		s.logger.Info("Next roster reset scheduled",
			"at", next.Format("2006-01-02 15:04:05 MST"),
			"in", wait.String(),
		)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
			_ = s.resetScheduler.ResetRoster(ctx)
			cancel()

		case <-s.stopChan:
			timer.Stop()
			s.logger.Info("Roster reset scheduler stopped")
			return
		}
	}
}

// Stop ends the loop and waits for a reset in flight to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.started.Load() {
		<-s.done
	}
}

// nextRun returns the first instant strictly after now whose local time of
// day in loc equals at. The date is rebuilt every day, so DST shifts move
// the instant rather than the wall-clock time.
func nextRun(now time.Time, loc *time.Location, at time.Duration) time.Time {
	local := now.In(loc)
	y, m, d := local.Date()

	for day := 0; day <= 1; day++ {
		midnight := time.Date(y, m, d+day, 0, 0, 0, 0, loc)
		candidate := time.Date(y, m, d+day,
			int(at/time.Hour), int(at%time.Hour/time.Minute), int(at%time.Minute/time.Second), 0, loc)
		if candidate.Before(midnight) {
			candidate = midnight
		}
		if candidate.After(now) {
			return candidate
		}
	}

	return time.Date(y, m, d+2, 0, 0, 0, 0, loc).Add(at)
}
