// Package service answers zone queries: it loads occurrences for a viewport
// or a user position, runs the zone generator and caches results per grid
// tile.
package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/AlissonDuarte/itssafe-backend/internal/metrics"
	"github.com/AlissonDuarte/itssafe-backend/internal/model"
	"github.com/AlissonDuarte/itssafe-backend/internal/store"
	"github.com/AlissonDuarte/itssafe-backend/internal/tilecache"
	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

var (
	// ErrViewportTooLarge rejects viewports whose diagonal exceeds MaxViewportKM.
	ErrViewportTooLarge = eris.New("service: very wide viewing area, zoom in on the map to load risk zones")
	// ErrInvalidBBox rejects viewports with out-of-range or unordered corners.
	ErrInvalidBBox = eris.New("service: invalid bounding box")
	// ErrInvalidPosition rejects out-of-range user positions.
	ErrInvalidPosition = eris.New("service: invalid position")
	// ErrInvalidRadius rejects non-positive or oversized search radii.
	ErrInvalidRadius = eris.New("service: invalid radius")
)

// Config tunes the zone service.
type Config struct {
	GridSize        float64       `yaml:"grid_size" mapstructure:"grid_size"`
	MaxViewportKM   float64       `yaml:"max_viewport_km" mapstructure:"max_viewport_km"`
	MaxRadiusMeters float64       `yaml:"max_radius_m" mapstructure:"max_radius_m"`
	EpsKM           float64       `yaml:"eps_km" mapstructure:"eps_km"`
	MinSamples      int           `yaml:"min_samples" mapstructure:"min_samples"`
	CacheTTL        time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	// LoadTimeout bounds a shared tile load, which outlives the request that
	// started it.
	LoadTimeout     time.Duration `yaml:"load_timeout" mapstructure:"load_timeout"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		GridSize:        zones.DefaultGridSize,
		MaxViewportKM:   10,
		MaxRadiusMeters: 5000,
		EpsKM:           0.5,
		MinSamples:      2,
		CacheTTL:        10 * time.Minute,
		LoadTimeout:     30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.GridSize <= 0 {
		c.GridSize = def.GridSize
	}
	if c.MaxViewportKM <= 0 {
		c.MaxViewportKM = def.MaxViewportKM
	}
	if c.MaxRadiusMeters <= 0 {
		c.MaxRadiusMeters = def.MaxRadiusMeters
	}
	if c.EpsKM <= 0 {
		c.EpsKM = def.EpsKM
	}
	if c.MinSamples <= 0 {
		c.MinSamples = def.MinSamples
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = def.LoadTimeout
	}
	return c
}

// Query narrows which occurrences count and which risk levels are returned.
type Query struct {
	Filter  model.Filter
	Exclude []zones.RiskLevel
}

// Key is a stable string form of q for cache keys.
func (q Query) Key() string {
	ex := make([]string, len(q.Exclude))
	for i, l := range q.Exclude {
		ex[i] = string(l)
	}
	slices.Sort(ex)
	ex = slices.Compact(ex)
	return q.Filter.Key() + ";x=" + strings.Join(ex, ",")
}

// Result is the outcome of one zone query.
type Result struct {
	Features zones.FeatureCollection
	// PointCount is the number of occurrences clustered. On a cache hit it is
	// the sum of the cached zone counts.
	PointCount int
	TileID     string
	CacheHit   bool
}

// Clean reports whether the queried area had no occurrences at all.
func (r Result) Clean() bool {
	return r.PointCount == 0 && !r.CacheHit
}

// ZoneService wires the point store, the generator and the tile cache.
type ZoneService struct {
	points  store.PointStore
	gen     *zones.Generator
	cache   tilecache.Cache
	metrics *metrics.Metrics
	cfg     Config
	flight  singleflight.Group
}

// New creates a ZoneService. cache and m may be nil.
func New(points store.PointStore, gen *zones.Generator, cache tilecache.Cache, m *metrics.Metrics, cfg Config) *ZoneService {
	return &ZoneService{
		points:  points,
		gen:     gen,
		cache:   cache,
		metrics: m,
		cfg:     cfg.withDefaults(),
	}
}

// Config returns the effective configuration.
func (s *ZoneService) Config() Config { return s.cfg }

// ZonesInBBox returns the zones for a map viewport. The viewport is snapped
// outward to the tile grid so that every request inside the same cells shares
// one cache entry. Areas without occurrences are not cached.
func (s *ZoneService) ZonesInBBox(ctx context.Context, bbox zones.BBox, q Query) (Result, error) {
	if !bbox.Valid() {
		return Result{}, eris.Wrapf(ErrInvalidBBox, "sw=(%f,%f) ne=(%f,%f)", bbox.MinLat, bbox.MinLng, bbox.MaxLat, bbox.MaxLng)
	}
	if d := bbox.Diagonal(); d > s.cfg.MaxViewportKM {
		return Result{}, eris.Wrapf(ErrViewportTooLarge, "diagonal %.2f km exceeds %.2f km", d, s.cfg.MaxViewportKM)
	}

	snapped := zones.SnapBBox(bbox, s.cfg.GridSize)
	tileID := s.TileID(bbox, q)

	if fc, ok := s.cached(ctx, tileID); ok {
		return Result{Features: fc, PointCount: countOf(fc), TileID: tileID, CacheHit: true}, nil
	}

	// Waiters share one load, so it must not die with whichever request
	// happened to start it.
	ch := s.flight.DoChan(tileID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LoadTimeout)
		defer cancel()

		pts, err := s.points.PointsInBBox(loadCtx, snapped, q.Filter)
		if err != nil {
			return Result{}, eris.Wrap(err, "service: load points")
		}
		res, err := s.generate(pts, q)
		if err != nil {
			return Result{}, err
		}
		res.TileID = tileID
		if res.PointCount > 0 {
			s.store(loadCtx, tileID, res.Features)
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, eris.Wrap(ctx.Err(), "service: zones in bbox")
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

// ZonesAround returns the zones built from occurrences within radiusMeters of
// center. Results are not cached because positions do not align to the grid.
func (s *ZoneService) ZonesAround(ctx context.Context, center zones.GeoPoint, radiusMeters float64, q Query) (Result, error) {
	if !center.Valid() {
		return Result{}, eris.Wrapf(ErrInvalidPosition, "(%f, %f)", center.Lat, center.Lng)
	}
	if radiusMeters <= 0 || radiusMeters > s.cfg.MaxRadiusMeters {
		return Result{}, eris.Wrapf(ErrInvalidRadius, "%.0f m not in (0, %.0f]", radiusMeters, s.cfg.MaxRadiusMeters)
	}

	pts, err := s.points.PointsWithinRadius(ctx, center, radiusMeters, q.Filter)
	if err != nil {
		return Result{}, eris.Wrap(err, "service: load points")
	}
	return s.generate(pts, q)
}

// TileID returns the cache key for a viewport query: the grid key of the
// south-west cell, the cell span and the query parameters.
func (s *ZoneService) TileID(bbox zones.BBox, q Query) string {
	cols, rows := zones.CellSpan(bbox, s.cfg.GridSize)
	return fmt.Sprintf("%s:%dx%d:%s", zones.TileKey(bbox.SW(), s.cfg.GridSize), cols, rows, q.Key())
}

func (s *ZoneService) generate(pts []zones.GeoPoint, q Query) (Result, error) {
	if len(pts) == 0 {
		return Result{Features: zones.FeatureCollection{Features: []zones.ZonePolygon{}}}, nil
	}

	start := time.Now()
	fc, err := s.gen.Generate(pts, s.cfg.EpsKM, s.cfg.MinSamples, q.Exclude)
	if err != nil {
		return Result{}, eris.Wrap(err, "service: generate zones")
	}
	s.metrics.ObserveGeneration(len(pts), time.Since(start))
	for _, z := range fc.Features {
		s.metrics.ZoneProduced(string(z.Properties.RiskLevel))
	}

	zap.L().Debug("zones generated",
		zap.Int("points", len(pts)),
		zap.Int("zones", fc.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return Result{Features: fc, PointCount: len(pts)}, nil
}

func (s *ZoneService) cached(ctx context.Context, tileID string) (zones.FeatureCollection, bool) {
	if s.cache == nil {
		return zones.FeatureCollection{}, false
	}
	fc, ok, err := s.cache.Get(ctx, tileID)
	switch {
	case err != nil:
		s.metrics.CacheLookup("error")
		zap.L().Warn("tile cache read failed", zap.String("tile", tileID), zap.Error(err))
		return zones.FeatureCollection{}, false
	case !ok:
		s.metrics.CacheLookup("miss")
		return zones.FeatureCollection{}, false
	default:
		s.metrics.CacheLookup("hit")
		return fc, true
	}
}

func (s *ZoneService) store(ctx context.Context, tileID string, fc zones.FeatureCollection) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, tileID, fc, s.cfg.CacheTTL); err != nil {
		zap.L().Warn("tile cache write failed", zap.String("tile", tileID), zap.Error(err))
	}
}

func countOf(fc zones.FeatureCollection) int {
	n := 0
	for _, z := range fc.Features {
		n += z.Properties.OccurrenceCount
	}
	return n
}
