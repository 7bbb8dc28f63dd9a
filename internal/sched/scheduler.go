package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"amuguard/internal/detect"
)

// Job is one recurring, independently triggerable batch pass. Every runs
// the job on its own cadence; the run callback must be idempotent so that
// manual triggers and scheduled runs can overlap in time without creating
// duplicate alerts.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) (detect.Summary, error)
}

type Scheduler struct {
	mu         sync.Mutex
	jobs       []Job
	byName     map[string]Job
	logger     *slog.Logger
	runOnStart bool
}

func New(logger *slog.Logger, runOnStart bool) *Scheduler {
	return &Scheduler{byName: make(map[string]Job), logger: logger, runOnStart: runOnStart}
}

func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job requires a name and a run callback")
	}
	if job.Every <= 0 {
		return fmt.Errorf("job %q requires a positive cadence", job.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	s.byName[job.Name] = job
	s.jobs = append(s.jobs, job)
	return nil
}

// Names lists registered jobs in a stable order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Name)
	}
	sort.Strings(out)
	return out
}

// Trigger runs one job by name, synchronously, and returns its summary.
func (s *Scheduler) Trigger(ctx context.Context, name string) (detect.Summary, error) {
	s.mu.Lock()
	job, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return detect.Summary{}, fmt.Errorf("unknown job %q", name)
	}
	return s.run(ctx, job)
}

// Start launches one ticker goroutine per job and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			if s.runOnStart {
				_, _ = s.run(ctx, job)
			}
			ticker := time.NewTicker(job.Every)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					_, _ = s.run(ctx, job)
				case <-ctx.Done():
					return
				}
			}
		}(job)
	}
	wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, job Job) (detect.Summary, error) {
	started := time.Now()
	sum, err := job.Run(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("job failed", "job", job.Name, "err", err)
		}
		return sum, fmt.Errorf("job %s: %w", job.Name, err)
	}
	if s.logger != nil {
		s.logger.Info("job completed",
			"job", job.Name,
			"farms_checked", sum.FarmsChecked,
			"alerts_created", sum.AlertsCreated,
			"farms_skipped", sum.FarmsSkipped,
			"duration", time.Since(started).String(),
		)
	}
	return sum, nil
}
