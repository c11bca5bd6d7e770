package store

import (
	"context"
	"database/sql"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/AlissonDuarte/itssafe-backend/internal/model"
	"github.com/AlissonDuarte/itssafe-backend/internal/resilience"
	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

// metersPerDegreeLat is the length of one degree of latitude on the sphere
// used by zones.Distance.
const metersPerDegreeLat = zones.EarthRadiusKm * 1000 * math.Pi / 180

// SQLiteStore implements Store on SQLite with plain lat/lng columns. Radius
// queries pre-filter on a bounding box and then apply the haversine distance.
type SQLiteStore struct {
	db    *sql.DB
	retry resilience.RetryConfig
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, retry resilience.RetryConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, retry: retry}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS occurrences (
	id          TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL,
	shift       TEXT NOT NULL,
	lat         REAL NOT NULL,
	lng         REAL NOT NULL,
	event_at    DATETIME NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	deleted_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_occurrences_lat_lng ON occurrences(lat, lng);
CREATE INDEX IF NOT EXISTS idx_occurrences_type ON occurrences(type);
`

// Migrate creates the occurrences schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PointsInBBox returns the occurrences inside bbox.
func (s *SQLiteStore) PointsInBBox(ctx context.Context, bbox zones.BBox, filter model.Filter) ([]zones.GeoPoint, error) {
	return resilience.DoVal(ctx, s.retryConfig("points_in_bbox"), func(ctx context.Context) ([]zones.GeoPoint, error) {
		return s.queryBox(ctx, bbox, filter)
	})
}

// PointsWithinRadius returns the occurrences within meters of center.
func (s *SQLiteStore) PointsWithinRadius(ctx context.Context, center zones.GeoPoint, meters float64, filter model.Filter) ([]zones.GeoPoint, error) {
	box := radiusBox(center, meters)
	return resilience.DoVal(ctx, s.retryConfig("points_within_radius"), func(ctx context.Context) ([]zones.GeoPoint, error) {
		candidates, err := s.queryBox(ctx, box, filter)
		if err != nil {
			return nil, err
		}
		var pts []zones.GeoPoint
		for _, p := range candidates {
			if zones.Distance(center, p)*1000 <= meters {
				pts = append(pts, p)
			}
		}
		return pts, nil
	})
}

func (s *SQLiteStore) queryBox(ctx context.Context, bbox zones.BBox, filter model.Filter) ([]zones.GeoPoint, error) {
	var b strings.Builder
	b.WriteString(`SELECT lat, lng FROM occurrences WHERE deleted_at IS NULL AND lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`)
	args := []any{bbox.MinLat, bbox.MaxLat, bbox.MinLng, bbox.MaxLng}
	args = appendIn(&b, "type", filter.TypeStrings(), args)
	args = appendIn(&b, "shift", filter.ShiftStrings(), args)
	b.WriteString(` ORDER BY created_at, rowid`)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query points")
	}
	defer rows.Close()

	var pts []zones.GeoPoint
	for rows.Next() {
		var p zones.GeoPoint
		if err := rows.Scan(&p.Lat, &p.Lng); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan point")
		}
		pts = append(pts, p)
	}
	return pts, eris.Wrap(rows.Err(), "sqlite: iterate points")
}

// CountOccurrences returns the number of live occurrences.
func (s *SQLiteStore) CountOccurrences(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM occurrences WHERE deleted_at IS NULL`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count occurrences")
}

const sqliteUpsert = `INSERT INTO occurrences (id, description, type, shift, lat, lng, event_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	description = excluded.description,
	type = excluded.type,
	shift = excluded.shift,
	lat = excluded.lat,
	lng = excluded.lng,
	event_at = excluded.event_at`

// InsertOccurrences upserts occs in batches, one transaction per batch.
func (s *SQLiteStore) InsertOccurrences(ctx context.Context, occs []model.Occurrence) (int64, error) {
	var total int64
	for _, batch := range batches(occs, insertBatchSize) {
		n, err := s.insertBatch(ctx, batch)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *SQLiteStore) insertBatch(ctx context.Context, batch []model.Occurrence) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	var n int64
	for _, o := range batch {
		if _, err := stmt.ExecContext(ctx,
			o.ID.String(), o.Description, string(o.Type), string(o.Shift),
			o.Lat, o.Lng, o.EventAt.UTC(), o.CreatedAt.UTC(),
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert occurrence %s", o.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return n, nil
}

func (s *SQLiteStore) retryConfig(name string) resilience.RetryConfig {
	cfg := s.retry
	cfg.Name = "sqlite: " + name
	return cfg
}

func appendIn(b *strings.Builder, column string, values []string, args []any) []any {
	if len(values) == 0 {
		return args
	}
	b.WriteString(" AND " + column + " IN (")
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
		args = append(args, v)
	}
	b.WriteString(")")
	return args
}

// radiusBox returns a bbox that contains every point within meters of center.
func radiusBox(center zones.GeoPoint, meters float64) zones.BBox {
	dLat := meters / metersPerDegreeLat
	box := zones.BBox{
		MinLat: math.Max(center.Lat-dLat, -90),
		MaxLat: math.Min(center.Lat+dLat, 90),
		MinLng: -180,
		MaxLng: 180,
	}
	// Longitude half-width of a spherical cap of angular radius dLat.
	if ratio := math.Sin(dLat*math.Pi/180) / math.Cos(center.Lat*math.Pi/180); ratio >= 0 && ratio < 1 {
		dLng := math.Asin(ratio) * 180 / math.Pi
		box.MinLng = math.Max(center.Lng-dLng, -180)
		box.MaxLng = math.Min(center.Lng+dLng, 180)
	}
	return box
}
