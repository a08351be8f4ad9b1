// services/scheduler.go
package services

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Deferrer runs fn once after d. Engines use it for delayed commits.
type Deferrer interface {
	After(d time.Duration, fn func()) error
}

// JobScheduler wraps a gocron scheduler for one-shot and periodic jobs.
type JobScheduler struct {
	sched gocron.Scheduler
	log   *logrus.Entry
}

func NewJobScheduler(logger *logrus.Logger) (*JobScheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	sched.Start()
	return &JobScheduler{sched: sched, log: logger.WithField("component", "scheduler")}, nil
}

// After schedules fn to run once after d.
func (s *JobScheduler) After(d time.Duration, fn func()) error {
	start := gocron.OneTimeJobStartImmediately()
	if d >= 10*time.Millisecond {
		start = gocron.OneTimeJobStartDateTime(time.Now().Add(d))
	}
	_, err := s.sched.NewJob(gocron.OneTimeJob(start), gocron.NewTask(fn))
	if err != nil {
		return fmt.Errorf("schedule one-time job: %w", err)
	}
	return nil
}

// Every runs fn on a fixed interval until Shutdown.
func (s *JobScheduler) Every(interval time.Duration, name string, fn func()) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.log.WithFields(logrus.Fields{"job": name, "interval": interval}).Info("periodic job scheduled")
	return nil
}

func (s *JobScheduler) Shutdown() {
	if err := s.sched.Shutdown(); err != nil {
		s.log.WithError(err).Warn("scheduler shutdown")
	}
}
