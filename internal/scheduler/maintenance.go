package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/readerclient/internal/reconcile"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a five field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// OrphanCollector starts an orphan blob sweep. tasks.Dispatcher satisfies it.
type OrphanCollector interface {
	CollectOrphans(ctx context.Context) error
}

// ProgressSweeper reconciles progress of every local book.
type ProgressSweeper interface {
	Sweep(ctx context.Context) (reconcile.SweepResult, error)
}

// Config selects the jobs. An empty schedule disables a job.
type Config struct {
	OrphanGCSchedule      string
	ProgressSweepSchedule string
}

// MaintenanceScheduler runs orphan collection and progress sweeps on cron
// schedules.
type MaintenanceScheduler struct {
	orphans OrphanCollector
	sweeper ProgressSweeper
	config  Config

	cron      *cron.Cron
	entries   map[string]cron.EntryID
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewMaintenanceScheduler creates a new scheduler instance
func NewMaintenanceScheduler(orphans OrphanCollector, sweeper ProgressSweeper, cfg Config) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		orphans: orphans,
		sweeper: sweeper,
		config:  cfg,
		cron:    cron.New(cron.WithParser(parser)),
		entries: map[string]cron.EntryID{},
	}
}

// Start registers the configured jobs and starts the cron loop. It stops
// by itself when ctx is cancelled.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context)
	}{
		{"orphan_gc", s.config.OrphanGCSchedule, s.collectOrphans},
		{"progress_sweep", s.config.ProgressSweepSchedule, s.sweepProgress},
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range jobs {
		if job.schedule == "" {
			log.Printf("Maintenance scheduler: %s disabled", job.name)
			continue
		}
		if err := ValidateSchedule(job.schedule); err != nil {
			s.cancel()
			return fmt.Errorf("invalid cron schedule '%s' for %s: %w", job.schedule, job.name, err)
		}
		run := job.run
		id, err := s.cron.AddFunc(job.schedule, func() { run(s.ctx) })
		if err != nil {
			s.cancel()
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		s.entries[job.name] = id
	}

	if len(s.entries) == 0 {
		s.cancel()
		return nil
	}

	s.cron.Start()
	s.isRunning = true
	for name, id := range s.entries {
		log.Printf("Maintenance scheduler: %s scheduled, next run %v", name, s.cron.Entry(id).Next)
	}

	cancelCtx := s.ctx
	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for running jobs to finish.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.cancel()
	s.isRunning = false
	log.Printf("Maintenance scheduler: stopped")
}

func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the named job fires next, or nil.
func (s *MaintenanceScheduler) NextRun(name string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.entries[name]
	if !ok || !s.isRunning {
		return nil
	}
	next := s.cron.Entry(id).Next
	return &next
}

func (s *MaintenanceScheduler) collectOrphans(ctx context.Context) {
	if s.orphans == nil {
		return
	}
	if err := s.orphans.CollectOrphans(ctx); err != nil {
		log.Printf("Maintenance: orphan collection failed: %v", err)
	}
}

func (s *MaintenanceScheduler) sweepProgress(ctx context.Context) {
	if s.sweeper == nil {
		return
	}
	start := time.Now()
	result, err := s.sweeper.Sweep(ctx)
	if err != nil {
		log.Printf("Maintenance: progress sweep failed: %v", err)
		return
	}
	if result.Books > 0 {
		log.Printf("Maintenance: reconciled %d books (%d failed) in %v",
			result.Books, result.Failed, time.Since(start).Round(time.Millisecond))
	}
}
