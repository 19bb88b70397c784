package ingest

import (
	"context"
	"time"

	"ev-charging-api/internal/models"
	"ev-charging-api/internal/repository"
	"ev-charging-api/internal/sources"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sink is where normalized stations are written.
type Sink interface {
	UpsertStation(ctx context.Context, s models.Station) (bool, error)
	CountStations(ctx context.Context, f models.StationFilter) (int64, error)
}

// RunLog records the outcome of every run.
type RunLog interface {
	StartRun(ctx context.Context, id uuid.UUID, source string) error
	FinishRun(ctx context.Context, id uuid.UUID, c repository.RunCounts, runErr error) error
}

// State is the phase the driver is in.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateNormalizing State = "normalizing"
	StateWriting     State = "writing"
	StateDone        State = "done"
)

// Result summarizes one run. Total is the number of stored stations carrying
// the run's source tag once the run has finished.
type Result struct {
	RunID  uuid.UUID     `json:"run_id"`
	Source models.Source `json:"source"`
	repository.RunCounts
	Total int64 `json:"total"`
}

// Driver pulls pages from a source and writes them to the sink, one request and
// one write at a time.
type Driver struct {
	sink Sink
	runs RunLog
}

// NewDriver creates a driver. runs may be nil.
func NewDriver(sink Sink, runs RunLog) *Driver {
	return &Driver{sink: sink, runs: runs}
}

// bookkeepingTimeout bounds the final count and run-log writes, which still
// happen after the run context is cancelled.
const bookkeepingTimeout = 10 * time.Second

// Run drains src into the sink. Failed units, rejected records, duplicate keys
// and failed writes are counted and skipped. The run ends when the source is
// exhausted or ctx is cancelled; cancellation is returned alongside the result.
func Run[R any](ctx context.Context, d *Driver, src sources.Source[R]) (Result, error) {
	res := Result{RunID: uuid.New(), Source: src.Tag()}
	logger := log.With().
		Str("source", string(res.Source)).
		Str("run_id", res.RunID.String()).
		Logger()

	state := StateIdle
	enter := func(next State) {
		logger.Trace().Str("from", string(state)).Str("to", string(next)).Msg("ingest: state change")
		state = next
	}

	if d.runs != nil {
		if err := d.runs.StartRun(ctx, res.RunID, string(res.Source)); err != nil {
			logger.Warn().Err(err).Msg("ingest: could not record run start")
		}
	}
	logger.Info().Msg("ingest: run started")

	var runErr error
	for runErr == nil {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		enter(StateFetching)
		page, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			res.FailedUnits++
			logger.Error().Err(err).Str("unit", page.Unit).Msg("ingest: unit failed, skipping")
			if !page.More {
				break
			}
			continue
		}
		if len(page.Records) == 0 && page.Malformed == 0 {
			break
		}

		res.Pages++
		res.Rejected += page.Malformed
		unitLog := logger.With().Str("unit", page.Unit).Logger()
		if page.Malformed > 0 {
			unitLog.Debug().Int("malformed", page.Malformed).Msg("ingest: malformed records dropped")
		}

		runErr = writePage(ctx, d.sink, src, page, &res.RunCounts, &unitLog, enter)

		unitLog.Info().
			Int("records", len(page.Records)).
			Int("inserted", res.Inserted).
			Int("updated", res.Updated).
			Msg("ingest: unit processed")

		if !page.More {
			break
		}
	}
	enter(StateDone)

	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	total, err := d.sink.CountStations(bctx, models.StationFilter{Source: res.Source})
	if err != nil {
		logger.Error().Err(err).Msg("ingest: could not count stored stations")
	}
	res.Total = total

	if d.runs != nil {
		if err := d.runs.FinishRun(bctx, res.RunID, res.RunCounts, runErr); err != nil {
			logger.Warn().Err(err).Msg("ingest: could not record run result")
		}
	}

	ev := logger.Info()
	if runErr != nil {
		ev = logger.Warn().Err(runErr)
	}
	ev.Int("pages", res.Pages).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("rejected", res.Rejected).
		Int("duplicates", res.Duplicates).
		Int("failed_units", res.FailedUnits).
		Int("failed_writes", res.FailedWrites).
		Int64("total", res.Total).
		Msg("ingest: run finished")

	if runErr != nil {
		return res, eris.Wrapf(runErr, "ingest: %s run interrupted", res.Source)
	}
	return res, nil
}

// writePage normalizes and stores the records of one page. It stops early only
// when ctx is cancelled.
func writePage[R any](
	ctx context.Context,
	sink Sink,
	src sources.Source[R],
	page sources.Page[R],
	counts *repository.RunCounts,
	logger *zerolog.Logger,
	enter func(State),
) error {
	for _, raw := range page.Records {
		if err := ctx.Err(); err != nil {
			return err
		}

		enter(StateNormalizing)
		station, err := src.Normalize(raw)
		if err != nil {
			counts.Rejected++
			logger.Debug().Err(err).Msg("ingest: record rejected")
			continue
		}

		enter(StateWriting)
		inserted, err := sink.UpsertStation(ctx, station)
		switch {
		case err == nil && inserted:
			counts.Inserted++
		case err == nil:
			counts.Updated++
		case eris.Is(err, repository.ErrDuplicateKey):
			counts.Duplicates++
			logger.Warn().Err(err).Str("station", station.Name).Msg("ingest: duplicate key, skipping")
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			counts.FailedWrites++
			logger.Error().Err(err).Str("station", station.Name).Msg("ingest: write failed, skipping")
		}
	}
	return nil
}
