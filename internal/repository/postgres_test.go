package repository

import (
	"context"
	"testing"
	"time"

	"ev-charging-api/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewRepository(mock)
}

func TestRepository_UpsertStation(t *testing.T) {
	placeID := "ChIJ-ather-1"

	tests := []struct {
		name         string
		station      models.Station
		expectSQL    string
		returnRows   *pgxmock.Rows
		returnErr    error
		wantInserted bool
		wantDup      bool
		wantErr      bool
	}{
		{
			name:         "new station keyed by place id",
			station:      models.Station{Name: "Ather Grid HSR", Latitude: 12.91, Longitude: 77.64, Provider: "Ather Grid", Source: models.SourceGooglePlaces, PlaceID: &placeID},
			expectSQL:    `ON CONFLICT \(place_id\)`,
			returnRows:   pgxmock.NewRows([]string{"inserted"}).AddRow(true),
			wantInserted: true,
		},
		{
			name:       "replay of a known place id updates in place",
			station:    models.Station{Name: "Ather Grid HSR", Latitude: 12.91, Longitude: 77.64, Provider: "Ather Grid", Source: models.SourceGooglePlaces, PlaceID: &placeID},
			expectSQL:  `ON CONFLICT \(place_id\)`,
			returnRows: pgxmock.NewRows([]string{"inserted"}).AddRow(false),
		},
		{
			name:         "station without id keyed by name and location",
			station:      models.Station{Name: "Tata Power Koramangala", Latitude: 12.93, Longitude: 77.62, Provider: "Tata Power", Source: models.SourceOpenChargeMap},
			expectSQL:    `ON CONFLICT \(name, latitude, longitude\)`,
			returnRows:   pgxmock.NewRows([]string{"inserted"}).AddRow(true),
			wantInserted: true,
		},
		{
			name:      "collision on the other unique key",
			station:   models.Station{Name: "Ather Grid HSR", Latitude: 12.91, Longitude: 77.64, Provider: "Ather Grid", Source: models.SourceGooglePlaces, PlaceID: &placeID},
			expectSQL: `ON CONFLICT \(place_id\)`,
			returnErr: &pgconn.PgError{Code: "23505", ConstraintName: "stations_name_latitude_longitude_key"},
			wantDup:   true,
			wantErr:   true,
		},
		{
			name:      "other database error",
			station:   models.Station{Name: "Statiq Whitefield", Latitude: 12.97, Longitude: 77.75, Provider: "Statiq", Source: models.SourceStatiq},
			expectSQL: `ON CONFLICT \(name, latitude, longitude\)`,
			returnErr: assert.AnError,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMock(t)

			exp := mock.ExpectQuery(tt.expectSQL).WithArgs(anyArgs(11)...)
			if tt.returnErr != nil {
				exp.WillReturnError(tt.returnErr)
			} else {
				exp.WillReturnRows(tt.returnRows)
			}

			inserted, err := repo.UpsertStation(context.Background(), tt.station)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantDup, eris.Is(err, ErrDuplicateKey))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantInserted, inserted)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_UpsertStation_EncodesChargers(t *testing.T) {
	mock, repo := newMock(t)
	placeID := "bee-26250"
	kw := 60.0

	station := models.Station{
		Name: "BEE Connaught Place", Latitude: 28.63, Longitude: 77.21, Provider: "EESL",
		Source: models.SourceBEE, PlaceID: &placeID,
		Chargers:    []models.Charger{{ID: 7, ChargerType: "CCS2", RatedCapacityKW: &kw}},
		LastUpdated: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	args := anyArgs(11)
	args[9] = []byte(`[{"id":7,"charger_type":"CCS2","rated_capacity_kw":60}]`)
	args[10] = station.LastUpdated
	mock.ExpectQuery(`ON CONFLICT \(place_id\)`).WithArgs(args...).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true))

	inserted, err := repo.UpsertStation(context.Background(), station)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CountStations(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM stations WHERE source = \$1`).
		WithArgs("OpenChargeMap").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	lat := 12.9
	n, err := repo.CountStations(context.Background(), models.StationFilter{Source: models.SourceOpenChargeMap, Lat: &lat, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListAllStations(t *testing.T) {
	mock, repo := newMock(t)
	addr := "100 Feet Rd, Indiranagar"

	mock.ExpectQuery(`SELECT id, name, latitude, longitude, address, provider, source\s+FROM stations\s+ORDER BY id\s+OFFSET \$1 LIMIT \$2`).
		WithArgs(10, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "latitude", "longitude", "address", "provider", "source"}).
			AddRow(int64(11), "Ather Grid Indiranagar", 12.97, 77.64, &addr, "Ather Grid", "GooglePlacesV1").
			AddRow(int64(12), "Unknown", 12.95, 77.60, (*string)(nil), "OpenChargeMap", "OpenChargeMap"))

	stations, err := repo.ListAllStations(context.Background(), models.Page{Skip: 10, Limit: 5})
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "11", stations[0].ID)
	assert.Equal(t, models.SourceGooglePlaces, stations[0].Source)
	assert.Equal(t, addr, *stations[0].Address)
	assert.Equal(t, "12", stations[1].ID)
	assert.Nil(t, stations[1].Address)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListAllStations_NoPaging(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(`ORDER BY id\s*$`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "latitude", "longitude", "address", "provider", "source"}))

	stations, err := repo.ListAllStations(context.Background(), models.Page{})
	require.NoError(t, err)
	assert.Empty(t, stations)
	assert.NotNil(t, stations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindStations(t *testing.T) {
	mock, repo := newMock(t)
	lat, lon := 12.9, 77.5

	cols := []string{"id", "name", "address", "latitude", "longitude", "provider", "source", "place_id", "city", "is_24x7", "chargers"}
	mock.ExpectQuery(`WHERE provider = \$1 AND latitude BETWEEN \$2 AND \$3 AND longitude BETWEEN \$4 AND \$5 ORDER BY id LIMIT \$6`).
		WithArgs("Statiq", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 5).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(3), "Statiq Jayanagar", (*string)(nil), 12.93, 77.58, "Statiq", "StatiqScrape", (*string)(nil), (*string)(nil), (*bool)(nil), []byte(nil)))

	stations, err := repo.FindStations(context.Background(), models.StationFilter{Provider: "Statiq", Lat: &lat, Lon: &lon, Limit: 5})
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "3", stations[0].ID)
	assert.Equal(t, models.SourceStatiq, stations[0].Source)
	assert.Empty(t, stations[0].Chargers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindStations_QueryError(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(`FROM stations`).WillReturnError(assert.AnError)

	stations, err := repo.FindStations(context.Background(), models.StationFilter{Limit: 50})
	assert.Error(t, err)
	assert.Nil(t, stations)
}

func TestRepository_FindNearestStations(t *testing.T) {
	mock, repo := newMock(t)
	city := "New Delhi"
	open := true

	cols := []string{"id", "name", "address", "latitude", "longitude", "provider", "source", "place_id", "city", "is_24x7", "chargers", "distance"}
	mock.ExpectQuery(`ST_DWithin`).
		WithArgs(28.61, 77.20, 25000.0, 25).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(9), "BEE Connaught Place", (*string)(nil), 28.63, 77.21, "EESL", "BEE", (*string)(nil), &city, &open,
				[]byte(`[{"id":7,"charger_type":"CCS2"}]`), 2441.5))

	stations, err := repo.FindNearestStations(context.Background(), models.NearbyQuery{Lat: 28.61, Lon: 77.20, MaxDistance: 25000, Limit: 25})
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "New Delhi", *stations[0].City)
	assert.True(t, *stations[0].Is24x7)
	require.Len(t, stations[0].Chargers, 1)
	assert.Equal(t, "CCS2", stations[0].Chargers[0].ChargerType)
	assert.InDelta(t, 2441.5, *stations[0].Distance, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_EnsureSchema(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS stations`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_RunLog(t *testing.T) {
	mock, repo := newMock(t)
	id := uuid.New()

	mock.ExpectExec(`INSERT INTO ingest_runs`).
		WithArgs(id, "OpenChargeMap", RunRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE ingest_runs`).
		WithArgs(RunComplete, 3, 250, 340, 2, 1, 0, 0, (*string)(nil), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.StartRun(context.Background(), id, "OpenChargeMap"))
	require.NoError(t, repo.FinishRun(context.Background(), id, RunCounts{
		Pages: 3, Inserted: 250, Updated: 340, Rejected: 2, Duplicates: 1,
	}, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FinishRun_Failed(t *testing.T) {
	mock, repo := newMock(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE ingest_runs`).
		WithArgs(RunFailed, 0, 0, 0, 0, 0, 0, 0, pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.FinishRun(context.Background(), id, RunCounts{}, context.Canceled))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterClause(t *testing.T) {
	lat, lon := 12.9, 77.5

	tests := []struct {
		name      string
		filter    models.StationFilter
		wantWhere string
		wantArgs  int
	}{
		{name: "no filters", filter: models.StationFilter{}, wantWhere: "", wantArgs: 0},
		{name: "provider only", filter: models.StationFilter{Provider: "A"}, wantWhere: " WHERE provider = $1", wantArgs: 1},
		{name: "provider and source", filter: models.StationFilter{Provider: "A", Source: models.SourceStatiq}, wantWhere: " WHERE provider = $1 AND source = $2", wantArgs: 2},
		{name: "latitude alone is ignored", filter: models.StationFilter{Lat: &lat}, wantWhere: "", wantArgs: 0},
		{
			name:      "bounding box",
			filter:    models.StationFilter{Lat: &lat, Lon: &lon},
			wantWhere: " WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4",
			wantArgs:  4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := filterClause(tt.filter)
			assert.Equal(t, tt.wantWhere, where)
			assert.Len(t, args, tt.wantArgs)
		})
	}

	_, args := filterClause(models.StationFilter{Lat: &lat, Lon: &lon})
	assert.InDelta(t, 12.8, args[0], 1e-9)
	assert.InDelta(t, 13.0, args[1], 1e-9)
	assert.InDelta(t, 77.4, args[2], 1e-9)
	assert.InDelta(t, 77.6, args[3], 1e-9)
}

func TestRepository_FindStationsAlongRoute(t *testing.T) {
	mock, repo := newMock(t)
	path := []models.Coordinate{{Lat: 12.97, Lon: 77.59}, {Lat: 12.30, Lon: 76.64}}
	line, err := encodeRoute(path)
	require.NoError(t, err)

	cols := []string{"id", "name", "address", "latitude", "longitude", "provider", "source", "place_id", "city", "is_24x7", "chargers"}
	mock.ExpectQuery(`ST_DWithin\(geom, ST_GeomFromEWKB\(\$1\)::geography, \$2\)`).
		WithArgs(line, 2000.0, 500).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(4), "Statiq Kengeri", (*string)(nil), 12.91, 77.48, "Statiq", "StatiqScrape", (*string)(nil), (*string)(nil), (*bool)(nil), []byte(nil)).
			AddRow(int64(2), "Tata Power Mandya", (*string)(nil), 12.52, 76.90, "Tata Power", "OpenChargeMap", (*string)(nil), (*string)(nil), (*bool)(nil), []byte(nil)))

	stations, err := repo.FindStationsAlongRoute(context.Background(), path, 2000, 500)
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "4", stations[0].ID)
	assert.Equal(t, "Tata Power Mandya", stations[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindStationsAlongRoute_Errors(t *testing.T) {
	mock, repo := newMock(t)

	_, err := repo.FindStationsAlongRoute(context.Background(), nil, 2000, 500)
	assert.Error(t, err)

	mock.ExpectQuery(`ST_DWithin`).WithArgs(anyArgs(3)...).WillReturnError(assert.AnError)
	_, err = repo.FindStationsAlongRoute(context.Background(), []models.Coordinate{{Lat: 12.97, Lon: 77.59}}, 2000, 500)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeRoute(t *testing.T) {
	line, err := encodeRoute([]models.Coordinate{{Lat: 12.97, Lon: 77.59}, {Lat: 12.30, Lon: 76.64}})
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(line)
	require.NoError(t, err)
	ls, ok := g.(*geom.LineString)
	require.True(t, ok)
	assert.Equal(t, 4326, ls.SRID())
	assert.Equal(t, []float64{77.59, 12.97, 76.64, 12.30}, ls.FlatCoords())

	single, err := encodeRoute([]models.Coordinate{{Lat: 12.97, Lon: 77.59}})
	require.NoError(t, err)
	g, err = ewkb.Unmarshal(single)
	require.NoError(t, err)
	assert.Equal(t, 2, g.(*geom.LineString).NumCoords())
}
