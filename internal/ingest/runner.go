package ingest

import (
	"context"
	"errors"

	"ev-charging-api/internal/models"
	"ev-charging-api/internal/sources"

	"golang.org/x/sync/errgroup"
)

// Job is a bound, ready-to-run ingestion of one source.
type Job struct {
	Source models.Source
	run    func(ctx context.Context) (Result, error)
}

// Bind ties a source to a driver. The source is built lazily by newSource so a
// job can be run more than once.
func Bind[R any](d *Driver, tag models.Source, newSource func() sources.Source[R]) Job {
	return Job{
		Source: tag,
		run: func(ctx context.Context) (Result, error) {
			return Run(ctx, d, newSource())
		},
	}
}

// Run executes the job.
func (j Job) Run(ctx context.Context) (Result, error) {
	return j.run(ctx)
}

// RunAll runs every job concurrently. Each job stays strictly sequential; the
// jobs only meet in the store. A failing job does not stop the others. Results
// are returned in job order and the errors of all failed jobs are joined.
func RunAll(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			results[i], errs[i] = job.Run(ctx)
			return errs[i]
		})
	}
	if err := g.Wait(); err != nil {
		return results, errors.Join(errs...)
	}
	return results, nil
}
