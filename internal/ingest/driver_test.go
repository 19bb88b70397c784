package ingest

import (
	"context"
	"errors"
	"testing"

	"ev-charging-api/internal/models"
	"ev-charging-api/internal/repository"
	"ev-charging-api/internal/sources"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSink is a mock implementation of the Sink interface
type MockSink struct {
	mock.Mock
}

func (m *MockSink) UpsertStation(ctx context.Context, s models.Station) (bool, error) {
	args := m.Called(ctx, s)
	return args.Bool(0), args.Error(1)
}

func (m *MockSink) CountStations(ctx context.Context, f models.StationFilter) (int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(int64), args.Error(1)
}

// MockRunLog is a mock implementation of the RunLog interface
type MockRunLog struct {
	mock.Mock
}

func (m *MockRunLog) StartRun(ctx context.Context, id uuid.UUID, source string) error {
	return m.Called(ctx, id, source).Error(0)
}

func (m *MockRunLog) FinishRun(ctx context.Context, id uuid.UUID, c repository.RunCounts, runErr error) error {
	return m.Called(ctx, id, c, runErr).Error(0)
}

type rawStation struct {
	name     string
	lat, lon *float64
}

type step struct {
	page sources.Page[rawStation]
	err  error
}

// fakeSource replays scripted pages and fails the test if it is asked for more.
type fakeSource struct {
	t     *testing.T
	steps []step
	calls int
}

func (f *fakeSource) Tag() models.Source { return models.SourceOpenChargeMap }

func (f *fakeSource) Next(context.Context) (sources.Page[rawStation], error) {
	f.calls++
	if f.calls > len(f.steps) {
		f.t.Fatalf("Next called %d times, only %d pages scripted", f.calls, len(f.steps))
	}
	s := f.steps[f.calls-1]
	return s.page, s.err
}

func (f *fakeSource) Normalize(r rawStation) (models.Station, error) {
	if r.lat == nil || r.lon == nil {
		return models.Station{}, eris.Wrap(sources.ErrRejected, "no location")
	}
	return models.Station{
		Name: r.name, Latitude: *r.lat, Longitude: *r.lon,
		Provider: "OpenChargeMap", Source: models.SourceOpenChargeMap,
	}, nil
}

func raw(name string, lat, lon float64) rawStation {
	return rawStation{name: name, lat: &lat, lon: &lon}
}

func named(name string) any {
	return mock.MatchedBy(func(s models.Station) bool { return s.Name == name })
}

func TestRun_StopsOnEmptyPage(t *testing.T) {
	src := &fakeSource{t: t, steps: []step{
		{page: sources.Page[rawStation]{
			Unit:    "offset=0",
			Records: []rawStation{raw("A", 12.9, 77.5), raw("B", 13.0, 77.6), {name: "no location"}},
			More:    true,
		}},
		{page: sources.Page[rawStation]{Unit: "offset=200"}},
	}}

	sink := new(MockSink)
	sink.On("UpsertStation", mock.Anything, named("A")).Return(true, nil).Once()
	sink.On("UpsertStation", mock.Anything, named("B")).Return(false, nil).Once()
	sink.On("CountStations", mock.Anything, models.StationFilter{Source: models.SourceOpenChargeMap}).Return(int64(2), nil)

	res, err := Run(context.Background(), NewDriver(sink, nil), src)

	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, models.SourceOpenChargeMap, res.Source)
	assert.NotEqual(t, uuid.Nil, res.RunID)
	assert.Equal(t, repository.RunCounts{Pages: 1, Inserted: 1, Updated: 1, Rejected: 1}, res.RunCounts)
	assert.Equal(t, int64(2), res.Total)
	sink.AssertExpectations(t)
}

func TestRun_CountsFailuresAndContinues(t *testing.T) {
	src := &fakeSource{t: t, steps: []step{
		{page: sources.Page[rawStation]{Unit: "cell-1", More: true}, err: errors.New("google: unexpected status 500")},
		{page: sources.Page[rawStation]{
			Unit:      "cell-2",
			Records:   []rawStation{raw("dup", 1, 1), raw("broken", 2, 2), raw("ok", 3, 3)},
			Malformed: 2,
			More:      true,
		}},
		{page: sources.Page[rawStation]{Unit: "cell-3", Malformed: 1, More: true}},
		{page: sources.Page[rawStation]{Unit: "cell-4", More: false}, err: errors.New("google: timeout")},
	}}

	sink := new(MockSink)
	sink.On("UpsertStation", mock.Anything, named("dup")).
		Return(false, eris.Wrap(repository.ErrDuplicateKey, "violates stations_place_id_key"))
	sink.On("UpsertStation", mock.Anything, named("broken")).Return(false, errors.New("connection reset"))
	sink.On("UpsertStation", mock.Anything, named("ok")).Return(true, nil)
	sink.On("CountStations", mock.Anything, mock.Anything).Return(int64(10), nil)

	runs := new(MockRunLog)
	runs.On("StartRun", mock.Anything, mock.Anything, "OpenChargeMap").Return(nil)
	runs.On("FinishRun", mock.Anything, mock.Anything, repository.RunCounts{
		Pages: 2, Inserted: 1, Rejected: 3, Duplicates: 1, FailedUnits: 2, FailedWrites: 1,
	}, nil).Return(nil)

	res, err := Run(context.Background(), NewDriver(sink, runs), src)

	require.NoError(t, err)
	assert.Equal(t, 4, src.calls)
	assert.Equal(t, 2, res.FailedUnits)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.FailedWrites)
	assert.Equal(t, 3, res.Rejected)
	assert.Equal(t, int64(10), res.Total)
	sink.AssertExpectations(t)
	runs.AssertExpectations(t)
}

func TestRun_StopsWhenSourceHasNoMore(t *testing.T) {
	src := &fakeSource{t: t, steps: []step{
		{page: sources.Page[rawStation]{Unit: "page", Records: []rawStation{raw("only", 1, 1)}, More: false}},
	}}

	sink := new(MockSink)
	sink.On("UpsertStation", mock.Anything, mock.Anything).Return(true, nil)
	sink.On("CountStations", mock.Anything, mock.Anything).Return(int64(1), nil)

	res, err := Run(context.Background(), NewDriver(sink, nil), src)

	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 1, res.Inserted)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{t: t}
	sink := new(MockSink)
	sink.On("CountStations", mock.Anything, mock.Anything).Return(int64(0), nil)

	runs := new(MockRunLog)
	runs.On("StartRun", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	runs.On("FinishRun", mock.Anything, mock.Anything, repository.RunCounts{}, context.Canceled).Return(nil)

	_, err := Run(ctx, NewDriver(sink, runs), src)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, src.calls)
	sink.AssertNotCalled(t, "UpsertStation", mock.Anything, mock.Anything)
	runs.AssertExpectations(t)
}

func TestRun_RunLogFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{t: t, steps: []step{{page: sources.Page[rawStation]{}}}}

	sink := new(MockSink)
	sink.On("CountStations", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down"))

	runs := new(MockRunLog)
	runs.On("StartRun", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))
	runs.On("FinishRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))

	res, err := Run(context.Background(), NewDriver(sink, runs), src)

	require.NoError(t, err)
	assert.Equal(t, 0, res.Pages)
}

func TestRunAll(t *testing.T) {
	sink := new(MockSink)
	sink.On("UpsertStation", mock.Anything, mock.Anything).Return(true, nil)
	sink.On("CountStations", mock.Anything, mock.Anything).Return(int64(1), nil)
	d := NewDriver(sink, nil)

	jobs := []Job{
		Bind(d, models.SourceOpenChargeMap, func() sources.Source[rawStation] {
			return &fakeSource{t: t, steps: []step{
				{page: sources.Page[rawStation]{Unit: "a", Records: []rawStation{raw("a", 1, 1)}}},
			}}
		}),
		Bind(d, models.SourceOpenChargeMap, func() sources.Source[rawStation] {
			return &fakeSource{t: t, steps: []step{
				{page: sources.Page[rawStation]{Unit: "b", Records: []rawStation{raw("b", 2, 2), raw("c", 3, 3)}}},
			}}
		}),
	}

	results, err := RunAll(context.Background(), jobs)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Inserted)
	assert.Equal(t, 2, results[1].Inserted)
}

func TestRunAll_JoinsErrors(t *testing.T) {
	fail := func(tag models.Source, msg string) Job {
		return Job{Source: tag, run: func(context.Context) (Result, error) {
			return Result{Source: tag}, errors.New(msg)
		}}
	}
	ok := Job{Source: models.SourceStatiq, run: func(context.Context) (Result, error) {
		return Result{Source: models.SourceStatiq, Total: 42}, nil
	}}

	results, err := RunAll(context.Background(), []Job{
		fail(models.SourceGooglePlaces, "google run interrupted"),
		ok,
		fail(models.SourceBEE, "bee run interrupted"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "google run interrupted")
	assert.Contains(t, err.Error(), "bee run interrupted")
	require.Len(t, results, 3)
	assert.Equal(t, int64(42), results[1].Total)
	assert.Equal(t, models.SourceBEE, results[2].Source)
}
