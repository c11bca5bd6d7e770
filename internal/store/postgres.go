package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/AlissonDuarte/itssafe-backend/internal/db"
	"github.com/AlissonDuarte/itssafe-backend/internal/model"
	"github.com/AlissonDuarte/itssafe-backend/internal/resilience"
	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

// SRID of stored occurrence points.
const SRID = 4326

// PostgresStore implements Store on PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	retry   resilience.RetryConfig
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pointsInBBoxSQL = `SELECT ST_AsBinary(geom) FROM occurrences
WHERE deleted_at IS NULL
  AND geom && ST_MakeEnvelope($1, $2, $3, $4, 4326)
  AND ST_Within(geom, ST_MakeEnvelope($1, $2, $3, $4, 4326))
  AND (cardinality($5::text[]) = 0 OR type = ANY($5::text[]))
  AND (cardinality($6::text[]) = 0 OR shift = ANY($6::text[]))
ORDER BY created_at, id`

	pointsWithinRadiusSQL = `SELECT ST_AsBinary(geom) FROM occurrences
WHERE deleted_at IS NULL
  AND ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
  AND (cardinality($4::text[]) = 0 OR type = ANY($4::text[]))
  AND (cardinality($5::text[]) = 0 OR shift = ANY($5::text[]))
ORDER BY created_at, id`

	countOccurrencesSQL = `SELECT count(*) FROM occurrences WHERE deleted_at IS NULL`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, retry resilience.RetryConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, retry: retry}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS occurrences (
	id          UUID PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL,
	shift       TEXT NOT NULL,
	geom        geometry(Point, 4326) NOT NULL,
	event_at    TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ,
	deleted_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_occurrences_geom ON occurrences USING GIST (geom);
CREATE INDEX IF NOT EXISTS idx_occurrences_geog ON occurrences USING GIST ((geom::geography));
CREATE INDEX IF NOT EXISTS idx_occurrences_type ON occurrences(type);
CREATE INDEX IF NOT EXISTS idx_occurrences_created_at ON occurrences(created_at);
`

// Migrate creates the occurrences schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// PointsInBBox returns the occurrences strictly inside bbox.
func (s *PostgresStore) PointsInBBox(ctx context.Context, bbox zones.BBox, filter model.Filter) ([]zones.GeoPoint, error) {
	return resilience.DoVal(ctx, s.retryConfig("points_in_bbox"), func(ctx context.Context) ([]zones.GeoPoint, error) {
		rows, err := s.pool.Query(ctx, pointsInBBoxSQL,
			bbox.MinLng, bbox.MinLat, bbox.MaxLng, bbox.MaxLat,
			filter.TypeStrings(), filter.ShiftStrings(),
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: points in bbox")
		}
		return scanPoints(rows)
	})
}

// PointsWithinRadius returns the occurrences within meters of center,
// measured on the spheroid.
func (s *PostgresStore) PointsWithinRadius(ctx context.Context, center zones.GeoPoint, meters float64, filter model.Filter) ([]zones.GeoPoint, error) {
	return resilience.DoVal(ctx, s.retryConfig("points_within_radius"), func(ctx context.Context) ([]zones.GeoPoint, error) {
		rows, err := s.pool.Query(ctx, pointsWithinRadiusSQL,
			center.Lng, center.Lat, meters,
			filter.TypeStrings(), filter.ShiftStrings(),
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: points within radius")
		}
		return scanPoints(rows)
	})
}

// CountOccurrences returns the number of live occurrences.
func (s *PostgresStore) CountOccurrences(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, countOccurrencesSQL).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count occurrences")
	}
	return n, nil
}

var occurrenceColumns = []string{"id", "description", "type", "shift", "geom", "event_at", "created_at"}

// InsertOccurrences upserts occs in batches through a COPY-staged merge.
func (s *PostgresStore) InsertOccurrences(ctx context.Context, occs []model.Occurrence) (int64, error) {
	cfg := db.UpsertConfig{
		Table:        "occurrences",
		Columns:      occurrenceColumns,
		ConflictKeys: []string{"id"},
	}

	var total int64
	for _, batch := range batches(occs, insertBatchSize) {
		rows := make([][]any, 0, len(batch))
		for _, o := range batch {
			point, err := EncodePoint(o.Point())
			if err != nil {
				return total, err
			}
			rows = append(rows, []any{o.ID, o.Description, string(o.Type), string(o.Shift), point, o.EventAt, o.CreatedAt})
		}
		n, err := db.BulkUpsert(ctx, s.pool, cfg, rows)
		if err != nil {
			return total, eris.Wrap(err, "postgres: insert occurrences")
		}
		total += n
	}
	return total, nil
}

func (s *PostgresStore) retryConfig(name string) resilience.RetryConfig {
	cfg := s.retry
	cfg.Name = "postgres: " + name
	return cfg
}

// EncodePoint returns p as little-endian EWKB with SRID 4326, the form PostGIS
// accepts for geometry columns over COPY.
func EncodePoint(p zones.GeoPoint) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{p.Lng, p.Lat}).SetSRID(SRID)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode point")
	}
	return data, nil
}

// DecodePoint parses a WKB point as returned by ST_AsBinary.
func DecodePoint(data []byte) (zones.GeoPoint, error) {
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return zones.GeoPoint{}, eris.Wrap(err, "postgres: decode point")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return zones.GeoPoint{}, eris.Errorf("postgres: expected point geometry, got %T", g)
	}
	return zones.GeoPoint{Lat: p.Y(), Lng: p.X()}, nil
}

func scanPoints(rows pgx.Rows) ([]zones.GeoPoint, error) {
	defer rows.Close()

	var pts []zones.GeoPoint
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan point")
		}
		p, err := DecodePoint(data)
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate points")
	}
	return pts, nil
}
