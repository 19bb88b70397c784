package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Run statuses stored in ingest_runs.status.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
)

// RunCounts are the final tallies of one ingestion run.
type RunCounts struct {
	Pages        int `json:"pages"`
	Inserted     int `json:"inserted"`
	Updated      int `json:"updated"`
	Rejected     int `json:"rejected"`
	Duplicates   int `json:"duplicates"`
	FailedUnits  int `json:"failed_units"`
	FailedWrites int `json:"failed_writes"`
}

// IngestRun represents a row in ingest_runs.
type IngestRun struct {
	ID         uuid.UUID  `json:"id"`
	Source     string     `json:"source"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Counts     RunCounts  `json:"counts"`
	Error      string     `json:"error,omitempty"`
}

// StartRun records the beginning of an ingestion run.
func (r *Repository) StartRun(ctx context.Context, id uuid.UUID, source string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ingest_runs (id, source, status, started_at) VALUES ($1, $2, $3, now())`,
		id, source, RunRunning,
	)
	if err != nil {
		return eris.Wrapf(err, "repository: start run for %s", source)
	}
	return nil
}

// FinishRun stores the final counts of a run. A non-nil runErr marks it failed.
func (r *Repository) FinishRun(ctx context.Context, id uuid.UUID, c RunCounts, runErr error) error {
	status := RunComplete
	var msg *string
	if runErr != nil {
		status = RunFailed
		s := runErr.Error()
		msg = &s
	}

	_, err := r.db.Exec(ctx,
		`UPDATE ingest_runs
		 SET status = $1, finished_at = now(), pages = $2, inserted = $3, updated = $4,
		     rejected = $5, duplicates = $6, failed_units = $7, failed_writes = $8, error = $9
		 WHERE id = $10`,
		status, c.Pages, c.Inserted, c.Updated, c.Rejected, c.Duplicates, c.FailedUnits, c.FailedWrites, msg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "repository: finish run %s", id)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]IngestRun, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, source, status, started_at, finished_at, pages, inserted, updated,
		        rejected, duplicates, failed_units, failed_writes, error
		 FROM ingest_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "repository: list runs")
	}
	defer rows.Close()

	runs := make([]IngestRun, 0)
	for rows.Next() {
		var (
			run    IngestRun
			errMsg *string
		)
		if err := rows.Scan(&run.ID, &run.Source, &run.Status, &run.StartedAt, &run.FinishedAt,
			&run.Counts.Pages, &run.Counts.Inserted, &run.Counts.Updated, &run.Counts.Rejected,
			&run.Counts.Duplicates, &run.Counts.FailedUnits, &run.Counts.FailedWrites, &errMsg); err != nil {
			return nil, eris.Wrap(err, "repository: scan run")
		}
		if errMsg != nil {
			run.Error = *errMsg
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
