package ingest

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

// Scheduler re-runs a set of jobs at a fixed interval. A tick that arrives while
// the previous one is still running is skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	jobs      []Job
	interval  time.Duration
	ctx       context.Context
}

// NewScheduler creates a scheduler for jobs. The first run starts immediately.
func NewScheduler(ctx context.Context, interval time.Duration, jobs []Job) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{scheduler: s, jobs: jobs, interval: interval, ctx: ctx}
}

// Start schedules the jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.jobs) == 0 {
		log.Warn().Msg("scheduler: no sources configured; nothing to schedule")
		return nil
	}
	if s.interval <= 0 {
		return eris.Errorf("scheduler: interval must be positive, got %s", s.interval)
	}

	if _, err := s.scheduler.Every(s.interval).Do(s.tick); err != nil {
		return eris.Wrap(err, "scheduler: schedule ingestion")
	}

	s.scheduler.StartAsync()
	log.Info().Dur("interval", s.interval).Int("sources", len(s.jobs)).Msg("scheduler: started")
	return nil
}

func (s *Scheduler) tick() {
	if s.ctx.Err() != nil {
		return
	}
	log.Info().Msg("scheduler: running ingestion")

	results, err := RunAll(s.ctx, s.jobs)
	if err != nil {
		log.Error().Err(err).Msg("scheduler: ingestion finished with errors")
	}
	for _, r := range results {
		log.Info().Str("source", string(r.Source)).Int64("total", r.Total).Msg("scheduler: source done")
	}
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
