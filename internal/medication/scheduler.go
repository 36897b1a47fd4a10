package medication

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/medminder/internal/infrastructure/config"
)

// Default scheduler cadences.
const (
	DefaultCheckInterval = 5 * time.Minute
	DefaultResetInterval = 24 * time.Hour
)

// Sweeper is the periodic work the Scheduler drives. *Manager implements it.
type Sweeper interface {
	ScheduleCheck(ctx context.Context, now time.Time)
	DailyReset(ctx context.Context)
}

// Scheduler runs the schedule check and the daily reset on their own cadences
// for every registered sweeper.
//
// Each tick calls the sweepers one after another. A panic in a sweeper is
// recovered and logged so the ticker keeps running.
type Scheduler struct {
	sweepers      []Sweeper
	checkInterval time.Duration
	resetInterval time.Duration
	alignReset    bool
	loc           *time.Location
	now           func() time.Time
	logger        Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewScheduler creates a scheduler. Zero intervals fall back to the defaults.
func NewScheduler(cfg config.SchedulerConfig, sweepers ...Sweeper) *Scheduler {
	s := &Scheduler{
		sweepers:      sweepers,
		checkInterval: cfg.CheckInterval,
		resetInterval: cfg.ResetInterval,
		alignReset:    cfg.AlignResetToMidnight,
		loc:           time.Local,
		now:           time.Now,
		logger:        noopLogger{},
		done:          make(chan struct{}),
	}
	if s.checkInterval <= 0 {
		s.checkInterval = DefaultCheckInterval
	}
	if s.resetInterval <= 0 {
		s.resetInterval = DefaultResetInterval
	}
	return s
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// SetLocation sets the zone whose midnight aligns the daily reset.
func (s *Scheduler) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// Start launches the check and reset loops. They run until ctx is cancelled
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.loop(ctx, "schedule_check", s.nextCheck, s.RunCheck)
	go s.loop(ctx, "daily_reset", s.nextReset, func(ctx context.Context, _ time.Time) {
		s.RunReset(ctx)
	})

	s.logger.Info("scheduler started",
		"check_interval", s.checkInterval.String(),
		"reset_interval", s.resetInterval.String(),
		"reset_at_midnight", s.alignReset,
		"first_reset_in", s.nextReset().Round(time.Second).String(),
		"sweepers", len(s.sweepers),
	)
}

func (s *Scheduler) nextCheck() time.Duration {
	return s.checkInterval
}

// nextReset is the delay until the next daily reset. Aligned resets target
// the coming local midnight each time, so a 23 or 25 hour day keeps them on
// midnight.
func (s *Scheduler) nextReset() time.Duration {
	if s.alignReset {
		return untilMidnight(s.now(), s.loc)
	}
	return s.resetInterval
}

// Stop halts both loops and waits for an in-flight tick to finish.
// Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.logger.Info("scheduler stopped")
	})
}

// RunCheck runs one schedule check across every sweeper.
func (s *Scheduler) RunCheck(ctx context.Context, now time.Time) {
	for _, sw := range s.sweepers {
		s.guard("schedule_check", func() { sw.ScheduleCheck(ctx, now) })
	}
}

// RunReset runs one daily reset across every sweeper.
func (s *Scheduler) RunReset(ctx context.Context) {
	for _, sw := range s.sweepers {
		s.guard("daily_reset", func() { sw.DailyReset(ctx) })
	}
}

// loop calls fn each time the delay returned by next elapses. next is asked
// again after every tick.
func (s *Scheduler) loop(ctx context.Context, name string, next func() time.Duration, fn func(context.Context, time.Time)) {
	defer s.wg.Done()

	timer := time.NewTimer(next())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-timer.C:
			s.logger.Debug("scheduler tick", "job", name)
			fn(ctx, s.now())
			timer.Reset(next())
		}
	}
}

func (s *Scheduler) guard(job string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler job panicked", "job", job, "panic", r)
		}
	}()
	fn()
}

// untilMidnight returns the time from now until the next midnight in loc.
func untilMidnight(now time.Time, loc *time.Location) time.Duration {
	local := now.In(loc)
	y, m, d := local.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	return next.Sub(local)
}
