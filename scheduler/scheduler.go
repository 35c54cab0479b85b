// Package scheduler runs the three daily cron jobs spec.md §4.5 names
// (full sync chain, evening stop-list report, nightly negative-consumable
// transfer) and the start-up catch-up pass that runs, once, a job the
// process missed while it was down.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vostok-rest/backoffice/common"
)

// Job is one scheduled unit of work, keyed by name for misfire bookkeeping.
type Job struct {
	Name string
	Spec string // standard 5-field cron expression, evaluated in the scheduler's location
	Run  func(ctx context.Context) error
}

// RunRecorder persists each job's last successful fire time so a missed
// fire can be detected and caught up once on process start.
type RunRecorder interface {
	LastFire(ctx context.Context, jobName string) (time.Time, bool, error)
	RecordFire(ctx context.Context, jobName string, firedAt time.Time) error
}

// Scheduler wraps robfig/cron/v3, evaluating every trigger in Clock's
// location rather than the host's UTC, per spec.md §4.3's time discipline.
type Scheduler struct {
	cron        *cron.Cron
	clock       *common.Clock
	recorder    RunRecorder
	jobs        []Job
	graceWindow time.Duration
}

// New builds a Scheduler that evaluates schedules in clock's location.
func New(clock *common.Clock, recorder RunRecorder) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(clock.Location())),
		clock:       clock,
		recorder:    recorder,
		graceWindow: time.Hour,
	}
}

// Register adds a job to the schedule. Call before Start.
func (s *Scheduler) Register(job Job) error {
	s.jobs = append(s.jobs, job)
	_, err := s.cron.AddFunc(job.Spec, func() {
		s.fire(context.Background(), job)
	})
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name, err)
	}
	return nil
}

func (s *Scheduler) fire(ctx context.Context, job Job) {
	now := s.clock.Now()
	if err := job.Run(ctx); err != nil {
		common.Logger.WithFields(common.ErrorFields(err, job.Name)).Error("scheduled job failed")
		return
	}
	if err := s.recorder.RecordFire(ctx, job.Name, now); err != nil {
		common.Logger.WithFields(common.ErrorFields(err, job.Name)).Error("failed to record job fire time")
	}
}

// Start runs a one-time catch-up pass and then begins the cron scheduler.
// Catch-up runs once any job whose next scheduled fire after its recorded
// last fire has already passed — a process that was down across a trigger
// runs it on the next start instead of silently skipping it. A miss older
// than the grace window is also logged as a warning. A job with no
// recorded fire is not caught up.
func (s *Scheduler) Start(ctx context.Context) {
	s.catchUp(ctx)
	s.cron.Start()
}

// Stop halts the cron scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) catchUp(ctx context.Context) {
	now := s.clock.Now()

	for _, job := range s.jobs {
		sched, err := cron.ParseStandard(job.Spec)
		if err != nil {
			common.Logger.WithFields(common.ErrorFields(err, job.Name)).Error("invalid cron spec, skipping catch-up")
			continue
		}
		lastFire, found, err := s.recorder.LastFire(ctx, job.Name)
		if err != nil {
			common.Logger.WithFields(common.ErrorFields(err, job.Name)).Error("failed to read last fire time")
			continue
		}
		if !found {
			continue
		}

		expectedNext := sched.Next(lastFire.In(s.clock.Location()))
		if !expectedNext.Before(now) {
			continue // next fire is still ahead, the normal cron tick will run it
		}
		if now.Sub(expectedNext) > s.graceWindow {
			common.Logger.WithFields(map[string]interface{}{"job": job.Name, "expected": expectedNext}).Warn("missed scheduled fire beyond grace window, running catch-up once")
		}
		s.fire(ctx, job)
	}
}
