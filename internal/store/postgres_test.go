package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/AlissonDuarte/itssafe-backend/internal/model"
	"github.com/AlissonDuarte/itssafe-backend/internal/resilience"
	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock, retry: resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}}
	return s, mock
}

func pointWKB(t *testing.T, lat, lng float64) []byte {
	t.Helper()
	data, err := wkb.Marshal(geom.NewPointFlat(geom.XY, []float64{lng, lat}), wkb.NDR)
	require.NoError(t, err)
	return data
}

func TestEncodeDecodePoint(t *testing.T) {
	p := zones.GeoPoint{Lat: -23.5505, Lng: -46.6333}
	data, err := EncodePoint(p)
	require.NoError(t, err)

	// PostGIS EWKB keeps the SRID flag; ST_AsBinary output does not.
	got, err := DecodePoint(pointWKB(t, p.Lat, p.Lng))
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Greater(t, len(data), len(pointWKB(t, p.Lat, p.Lng)))
}

func TestDecodePoint_Errors(t *testing.T) {
	_, err := DecodePoint([]byte{0x01, 0x02})
	require.Error(t, err)

	line, err := wkb.Marshal(geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1}), wkb.NDR)
	require.NoError(t, err)
	_, err = DecodePoint(line)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected point geometry")
}

func TestPostgresStore_PointsInBBox(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	bbox := zones.BBox{MinLng: -46.7, MinLat: -23.6, MaxLng: -46.6, MaxLat: -23.5}
	filter := model.Filter{Types: []model.OccurrenceType{model.OccurrenceTheft}}

	mock.ExpectQuery(`SELECT ST_AsBinary\(geom\) FROM occurrences`).
		WithArgs(-46.7, -23.6, -46.6, -23.5, []string{"Theft"}, []string{}).
		WillReturnRows(pgxmock.NewRows([]string{"geom"}).
			AddRow(pointWKB(t, -23.55, -46.65)).
			AddRow(pointWKB(t, -23.56, -46.64)))

	pts, err := s.PointsInBBox(context.Background(), bbox, filter)
	require.NoError(t, err)
	assert.Equal(t, []zones.GeoPoint{{Lat: -23.55, Lng: -46.65}, {Lat: -23.56, Lng: -46.64}}, pts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PointsInBBox_RetriesTransient(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	bbox := zones.BBox{MinLng: 0, MinLat: 0, MaxLng: 1, MaxLat: 1}

	mock.ExpectQuery(`SELECT ST_AsBinary`).
		WithArgs(0.0, 0.0, 1.0, 1.0, []string{}, []string{}).
		WillReturnError(resilience.MarkTransient(errors.New("conn reset")))
	mock.ExpectQuery(`SELECT ST_AsBinary`).
		WithArgs(0.0, 0.0, 1.0, 1.0, []string{}, []string{}).
		WillReturnRows(pgxmock.NewRows([]string{"geom"}).AddRow(pointWKB(t, 0.5, 0.5)))

	pts, err := s.PointsInBBox(context.Background(), bbox, model.Filter{})
	require.NoError(t, err)
	assert.Len(t, pts, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PointsInBBox_PermanentError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT ST_AsBinary`).
		WillReturnError(errors.New(`relation "occurrences" does not exist`))

	_, err := s.PointsInBBox(context.Background(), zones.BBox{MaxLng: 1, MaxLat: 1}, model.Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "points in bbox")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PointsWithinRadius(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	center := zones.GeoPoint{Lat: -23.55, Lng: -46.63}
	filter := model.Filter{Shifts: []model.Shift{model.ShiftNight}}

	mock.ExpectQuery(`ST_DWithin\(geom::geography`).
		WithArgs(-46.63, -23.55, 500.0, []string{}, []string{"night"}).
		WillReturnRows(pgxmock.NewRows([]string{"geom"}).AddRow(pointWKB(t, -23.551, -46.631)))

	pts, err := s.PointsWithinRadius(context.Background(), center, 500, filter)
	require.NoError(t, err)
	assert.Equal(t, []zones.GeoPoint{{Lat: -23.551, Lng: -46.631}}, pts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountOccurrences(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM occurrences`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := s.CountOccurrences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertOccurrences(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)

	occs := []model.Occurrence{
		{ID: uuid.New(), Type: model.OccurrenceTheft, Lat: -23.55, Lng: -46.63, Shift: model.ShiftEvening, EventAt: now, CreatedAt: now},
		{ID: uuid.New(), Type: model.OccurrenceFight, Lat: -23.56, Lng: -46.64, Shift: model.ShiftEvening, EventAt: now, CreatedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_occurrences"`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_occurrences"}, occurrenceColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "occurrences"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.InsertOccurrences(context.Background(), occs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertOccurrences_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.InsertOccurrences(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS postgis`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatches(t *testing.T) {
	assert.Nil(t, batches([]int(nil), 3))
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5}}, batches([]int{1, 2, 3, 4, 5}, 3))
}
