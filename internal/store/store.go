// Package store persists occurrences and answers the spatial queries that
// feed zone generation.
package store

import (
	"context"

	"github.com/AlissonDuarte/itssafe-backend/internal/model"
	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

// PointStore returns occurrence locations for zone generation. Points come
// back in insertion order so clustering is reproducible.
type PointStore interface {
	PointsInBBox(ctx context.Context, bbox zones.BBox, filter model.Filter) ([]zones.GeoPoint, error)
	PointsWithinRadius(ctx context.Context, center zones.GeoPoint, meters float64, filter model.Filter) ([]zones.GeoPoint, error)
}

// Store is the full persistence interface.
type Store interface {
	PointStore

	// InsertOccurrences upserts occurrences by id and returns the number of
	// rows written.
	InsertOccurrences(ctx context.Context, occs []model.Occurrence) (int64, error)
	CountOccurrences(ctx context.Context) (int64, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// insertBatchSize bounds the rows sent per bulk write.
const insertBatchSize = 1000

func batches[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
