package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// Sweeper drops stale state older than now and reports how much it removed.
type Sweeper interface {
	Sweep(now time.Time) int
}

// SweepFunc adapts a function to Sweeper.
type SweepFunc func(now time.Time) int

func (f SweepFunc) Sweep(now time.Time) int { return f(now) }

// Scheduler periodically runs the registered sweepers.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweepers  map[string]Sweeper
	interval  time.Duration
	now       func() time.Time
	log       *logrus.Entry
}

// New creates a new Scheduler.
func New(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sweepers:  make(map[string]Sweeper),
		interval:  interval,
		now:       time.Now,
		log:       logrus.WithField("component", "scheduler"),
	}
}

// Register adds a named sweeper. Must be called before Start.
func (s *Scheduler) Register(name string, sw Sweeper) {
	s.sweepers[name] = sw
}

// RunOnce sweeps every registered target and returns removals per name.
func (s *Scheduler) RunOnce() map[string]int {
	now := s.now()
	removed := make(map[string]int, len(s.sweepers))
	for name, sw := range s.sweepers {
		n := sw.Sweep(now)
		removed[name] = n
		if n > 0 {
			s.log.WithFields(logrus.Fields{"target": name, "removed": n}).Debug("[SCHEDULER] sweep")
		}
	}
	return removed
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.sweepers) == 0 {
		s.log.Info("[SCHEDULER] nothing registered; not starting")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(func() {
		s.RunOnce()
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.WithField("interval", s.interval.String()).Info("[SCHEDULER] started")
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
