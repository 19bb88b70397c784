package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"ev-charging-api/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// uniqueViolation is the SQLSTATE Postgres reports for a unique constraint failure.
const uniqueViolation = "23505"

var (
	// ErrDuplicateKey is returned when a station collides with another row on a
	// unique key other than the one it was upserted on.
	ErrDuplicateKey = errors.New("repository: duplicate key")
	// ErrNotConnected is returned by Open when the store cannot be reached.
	ErrNotConnected = errors.New("repository: store not reachable")
)

// Pool is the subset of pgxpool.Pool the repository needs. pgxmock satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Repository implements station storage on PostgreSQL
type Repository struct {
	db    Pool
	close func()
}

// NewRepository wraps an existing pool. The caller owns the pool's lifecycle.
func NewRepository(db Pool) *Repository {
	return &Repository{db: db}
}

// Open connects to the store and verifies it is reachable.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrapf(ErrNotConnected, "repository: open pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrapf(ErrNotConnected, "repository: ping: %v", err)
	}
	return &Repository{db: pool, close: pool.Close}, nil
}

// Close releases the pool when the repository opened it.
func (r *Repository) Close() {
	if r.close != nil {
		r.close()
	}
}

// Ping checks connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return eris.Wrap(err, "repository: ping")
	}
	return nil
}

const schemaSQL = `
	CREATE EXTENSION IF NOT EXISTS postgis;

	CREATE TABLE IF NOT EXISTS stations (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		provider TEXT NOT NULL,
		source TEXT NOT NULL,
		place_id TEXT,
		city TEXT,
		is_24x7 BOOLEAN,
		chargers JSONB,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
		geom GEOGRAPHY(POINT, 4326) GENERATED ALWAYS AS (
			ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)::geography
		) STORED,
		CONSTRAINT stations_place_id_key UNIQUE (place_id),
		CONSTRAINT stations_name_latitude_longitude_key UNIQUE (name, latitude, longitude)
	);
	CREATE INDEX IF NOT EXISTS stations_provider_idx ON stations (provider);
	CREATE INDEX IF NOT EXISTS stations_source_idx ON stations (source);
	CREATE INDEX IF NOT EXISTS stations_lat_lon_idx ON stations (latitude, longitude);
	CREATE INDEX IF NOT EXISTS stations_geom_idx ON stations USING GIST (geom);

	CREATE TABLE IF NOT EXISTS ingest_runs (
		id UUID PRIMARY KEY,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		pages INTEGER NOT NULL DEFAULT 0,
		inserted INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		rejected INTEGER NOT NULL DEFAULT 0,
		duplicates INTEGER NOT NULL DEFAULT 0,
		failed_units INTEGER NOT NULL DEFAULT 0,
		failed_writes INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);
`

// EnsureSchema creates the stations and ingest_runs tables and their constraints.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return eris.Wrap(err, "repository: ensure schema")
	}
	return nil
}

const stationColumns = `name, address, latitude, longitude, provider, source, place_id, city, is_24x7, chargers, last_updated`

const upsertByPlaceIDSQL = `
	INSERT INTO stations (` + stationColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (place_id) DO UPDATE SET
		name = EXCLUDED.name,
		address = EXCLUDED.address,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		provider = EXCLUDED.provider,
		source = EXCLUDED.source,
		city = EXCLUDED.city,
		is_24x7 = EXCLUDED.is_24x7,
		chargers = EXCLUDED.chargers,
		last_updated = EXCLUDED.last_updated
	RETURNING (xmax = 0) AS inserted
`

// The place_id of an existing row is kept when a source without ids sights it.
const upsertByNameLocationSQL = `
	INSERT INTO stations (` + stationColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (name, latitude, longitude) DO UPDATE SET
		address = EXCLUDED.address,
		provider = EXCLUDED.provider,
		source = EXCLUDED.source,
		city = EXCLUDED.city,
		is_24x7 = EXCLUDED.is_24x7,
		chargers = EXCLUDED.chargers,
		last_updated = EXCLUDED.last_updated
	RETURNING (xmax = 0) AS inserted
`

// UpsertStation inserts the station or overwrites every field of the row with the
// same identity. It reports whether a new row was created.
func (r *Repository) UpsertStation(ctx context.Context, s models.Station) (bool, error) {
	sql := upsertByNameLocationSQL
	if s.Identity() == models.IdentityPlaceID {
		sql = upsertByPlaceIDSQL
	}

	var chargers []byte
	if len(s.Chargers) > 0 {
		var err error
		if chargers, err = json.Marshal(s.Chargers); err != nil {
			return false, eris.Wrap(err, "repository: marshal chargers")
		}
	}

	updated := s.LastUpdated
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	var inserted bool
	err := r.db.QueryRow(ctx, sql,
		s.Name, s.Address, s.Latitude, s.Longitude, s.Provider, string(s.Source),
		s.PlaceID, s.City, s.Is24x7, chargers, updated,
	).Scan(&inserted)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, eris.Wrapf(ErrDuplicateKey, "repository: upsert %q violates %s", s.Name, pgErr.ConstraintName)
		}
		return false, eris.Wrapf(err, "repository: upsert station %q", s.Name)
	}

	return inserted, nil
}

// CountStations returns the number of stored stations matching the provider
// and source filters. Location and limit are ignored.
func (r *Repository) CountStations(ctx context.Context, f models.StationFilter) (int64, error) {
	where, args := filterClause(models.StationFilter{Provider: f.Provider, Source: f.Source})

	var n int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM stations"+where, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "repository: count stations")
	}
	return n, nil
}

const listAllSQL = `
	SELECT id, name, latitude, longitude, address, provider, source
	FROM stations
	ORDER BY id
`

// ListAllStations returns the fixed projection of every station. A zero page
// limit returns all rows.
func (r *Repository) ListAllStations(ctx context.Context, page models.Page) ([]models.StationView, error) {
	sql := listAllSQL
	var args []any
	if page.Skip > 0 {
		args = append(args, page.Skip)
		sql += " OFFSET $" + strconv.Itoa(len(args))
	}
	if page.Limit > 0 {
		args = append(args, page.Limit)
		sql += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "repository: list all stations")
	}
	defer rows.Close()

	stations := make([]models.StationView, 0)
	for rows.Next() {
		var (
			id     int64
			source string
			s      models.StationView
		)
		if err := rows.Scan(&id, &s.Name, &s.Latitude, &s.Longitude, &s.Address, &s.Provider, &source); err != nil {
			return nil, eris.Wrap(err, "repository: scan station")
		}
		s.ID = strconv.FormatInt(id, 10)
		s.Source = models.Source(source)
		stations = append(stations, s)
	}

	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repository: iterate stations")
	}
	return stations, nil
}

const findStationsSQL = `
	SELECT id, name, address, latitude, longitude, provider, source, place_id, city, is_24x7, chargers
	FROM stations
`

// FindStations returns stations matching the filter, ordered by id, capped at f.Limit.
func (r *Repository) FindStations(ctx context.Context, f models.StationFilter) ([]models.StationView, error) {
	where, args := filterClause(f)
	sql := findStationsSQL + where + " ORDER BY id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "repository: find stations")
	}
	defer rows.Close()

	stations := make([]models.StationView, 0)
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}

	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repository: iterate stations")
	}
	return stations, nil
}

const findNearestSQL = `
	SELECT id, name, address, latitude, longitude, provider, source, place_id, city, is_24x7, chargers,
		ST_Distance(geom, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography) AS distance
	FROM stations
	WHERE ST_DWithin(geom, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography, $3)
	ORDER BY geom <-> ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography
	LIMIT $4
`

// FindNearestStations returns up to q.Limit stations within q.MaxDistance metres, closest first.
func (r *Repository) FindNearestStations(ctx context.Context, q models.NearbyQuery) ([]models.StationView, error) {
	rows, err := r.db.Query(ctx, findNearestSQL, q.Lat, q.Lon, q.MaxDistance, q.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "repository: failed to execute spatial query")
	}
	defer rows.Close()

	stations := make([]models.StationView, 0)
	for rows.Next() {
		var distance float64
		s, err := scanStation(rows, &distance)
		if err != nil {
			return nil, err
		}
		s.Distance = &distance
		stations = append(stations, s)
	}

	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repository: iterate stations")
	}
	return stations, nil
}

const findAlongRouteSQL = `
	SELECT id, name, address, latitude, longitude, provider, source, place_id, city, is_24x7, chargers
	FROM stations
	WHERE ST_DWithin(geom, ST_GeomFromEWKB($1)::geography, $2)
	ORDER BY ST_LineLocatePoint(ST_GeomFromEWKB($1), geom::geometry), id
	LIMIT $3
`

// FindStationsAlongRoute returns up to limit stations within bufferMeters of
// the route through path, in the order they appear along the route.
func (r *Repository) FindStationsAlongRoute(ctx context.Context, path []models.Coordinate, bufferMeters float64, limit int) ([]models.StationView, error) {
	line, err := encodeRoute(path)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, findAlongRouteSQL, line, bufferMeters, limit)
	if err != nil {
		return nil, eris.Wrap(err, "repository: find stations along route")
	}
	defer rows.Close()

	stations := make([]models.StationView, 0)
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}

	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repository: iterate stations")
	}
	return stations, nil
}

// encodeRoute renders path as an EWKB line string with SRID 4326. A single
// point becomes a zero-length line.
func encodeRoute(path []models.Coordinate) ([]byte, error) {
	if len(path) == 0 {
		return nil, eris.New("repository: route has no points")
	}

	flat := make([]float64, 0, 2*len(path)+2)
	for _, p := range path {
		flat = append(flat, p.Lon, p.Lat)
	}
	if len(path) == 1 {
		flat = append(flat, path[0].Lon, path[0].Lat)
	}

	data, err := ewkb.Marshal(geom.NewLineStringFlat(geom.XY, flat).SetSRID(4326), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "repository: encode route")
	}
	return data, nil
}

func scanStation(rows pgx.Rows, extra ...any) (models.StationView, error) {
	var (
		s        models.StationView
		id       int64
		source   string
		chargers []byte
	)
	dest := append([]any{
		&id, &s.Name, &s.Address, &s.Latitude, &s.Longitude, &s.Provider, &source,
		&s.PlaceID, &s.City, &s.Is24x7, &chargers,
	}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return s, eris.Wrap(err, "repository: scan station")
	}

	s.ID = strconv.FormatInt(id, 10)
	s.Source = models.Source(source)
	if len(chargers) > 0 {
		if err := json.Unmarshal(chargers, &s.Chargers); err != nil {
			return s, eris.Wrapf(err, "repository: decode chargers of station %s", s.ID)
		}
	}
	return s, nil
}

// filterClause builds the WHERE clause shared by the listing and count queries.
func filterClause(f models.StationFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Provider != "" {
		conds = append(conds, "provider = "+next(f.Provider))
	}
	if f.Source != "" {
		conds = append(conds, "source = "+next(string(f.Source)))
	}
	if f.Lat != nil && f.Lon != nil {
		conds = append(conds,
			"latitude BETWEEN "+next(*f.Lat-models.BoundingBoxDelta)+" AND "+next(*f.Lat+models.BoundingBoxDelta),
			"longitude BETWEEN "+next(*f.Lon-models.BoundingBoxDelta)+" AND "+next(*f.Lon+models.BoundingBoxDelta),
		)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
