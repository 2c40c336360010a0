package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	preCheckMaxTimes = 30
	preCheckInterval = time.Second * 10
)

// idleWait is how long the scheduler sleeps when nothing is scheduled. Any
// change to the schedule wakes it up early.
const idleWait = 24 * time.Hour

// TaskFunc represents a runnable task.
type TaskFunc func() error

// Scheduler runs a task on a cron schedule. An optional pre-check must pass
// before each run; it is retried for a while before the run is given up.
type Scheduler struct {
	task     TaskFunc
	preCheck TaskFunc
	onError  func(error)
	parser   cron.Parser

	mu       sync.Mutex
	schedule cron.Schedule
	nextRun  time.Time
	running  bool

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func NewScheduler(task, preCheck TaskFunc, onError func(error)) *Scheduler {
	if task == nil {
		panic("task function cannot be nil")
	}

	return &Scheduler{
		task:     task,
		preCheck: preCheck,
		onError:  onError,
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Start runs the scheduler in the background until Stop is called.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.run()
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Schedule sets or replaces the cron expression.
func (s *Scheduler) Schedule(cronExpr string) error {
	sh, err := s.parser.Parse(cronExpr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.schedule = sh
	s.nextRun = sh.Next(time.Now())
	s.mu.Unlock()

	s.poke()
	return nil
}

// Status returns the next run time and whether the scheduler is running.
func (s *Scheduler) Status() (nextRun time.Time, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun, s.running
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	logrus.Debug("scheduler started")
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		logrus.Debug("scheduler stopped")
	}()

	for {
		timer := time.NewTimer(s.untilNextRun())
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		due, ok := s.takeDueRun()
		if !ok {
			continue
		}
		logrus.Debugf("running scheduled task due at %s", due.Format(time.DateTime))

		if !s.waitPreCheck() {
			continue
		}
		if err := s.task(); err != nil {
			s.report(fmt.Errorf("task failed: %w", err))
		}
	}
}

func (s *Scheduler) untilNextRun() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil || s.nextRun.IsZero() {
		return idleWait
	}
	return max(time.Until(s.nextRun), 0)
}

// takeDueRun advances the schedule if the next run is due and returns the
// time it was due at. Runs missed while the system slept are not caught up
// one by one.
func (s *Scheduler) takeDueRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.schedule == nil || s.nextRun.IsZero() || now.Before(s.nextRun) {
		return time.Time{}, false
	}
	due := s.nextRun
	s.nextRun = s.schedule.Next(now)
	return due, true
}

// waitPreCheck runs the pre-check until it passes. It returns false when the
// run should be given up.
func (s *Scheduler) waitPreCheck() bool {
	if s.preCheck == nil {
		return true
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := s.preCheck()
		if err == nil {
			return true
		}
		// Report each distinct failure once.
		if lastErr == nil || err.Error() != lastErr.Error() {
			s.report(fmt.Errorf("precheck failed: %w", err))
		}
		lastErr = err

		if attempt > preCheckMaxTimes {
			logrus.WithError(err).Warn("precheck kept failing, skipping this run")
			return false
		}
		logrus.Debugf("precheck failed (%d/%d): %v; retrying in %s", attempt, preCheckMaxTimes, err, preCheckInterval)

		select {
		case <-s.stop:
			return false
		case <-time.After(preCheckInterval):
		}
	}
}

func (s *Scheduler) report(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// pruneTimeout bounds one sample log prune.
const pruneTimeout = time.Minute

// pruneSamples drops logged samples older than the configured retention.
func (d *Daemon) pruneSamples() error {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	before := time.Now().Add(-d.conf.SampleRetention())
	n, err := d.samples.Prune(ctx, before)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"removed": n,
		"before":  before.Format(time.DateTime),
	}).Debug("sample log pruned")
	return nil
}

// pruneCheck makes sure the sample log is reachable before pruning.
func (d *Daemon) pruneCheck() error {
	if d.samples == nil {
		return fmt.Errorf("sample log is disabled")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.samples.Ping(ctx)
}

func (d *Daemon) onPruneError(err error) {
	logrus.WithError(err).Error("sample log prune failed")
}
