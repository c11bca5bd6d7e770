package zones

import (
	"errors"
	"slices"

	"github.com/twpayne/go-geom"
)

const metersPerDegree = 111320.0

// fakeEngine approximates every polygon by its bounding box. That keeps area,
// union and intersection exact and easy to reason about in tests.
type fakeEngine struct {
	unionErr    error
	failHullLen int // ConvexHull fails for clusters of this size
	buffers     int
	simplifies  int

	// intersectFails makes IntersectionArea fail for the matching pairs.
	intersectFails func(a, b geom.T) bool
}

func (f *fakeEngine) ConvexHull(points []GeoPoint) (geom.T, error) {
	if f.failHullLen > 0 && len(points) == f.failHullLen {
		return nil, errors.New("pathological hull")
	}

	var distinct []GeoPoint
	for _, p := range points {
		if !slices.Contains(distinct, p) {
			distinct = append(distinct, p)
		}
	}

	switch {
	case len(distinct) == 1:
		p := distinct[0]
		return geom.NewPointFlat(geom.XY, []float64{p.Lng, p.Lat}), nil
	case len(distinct) == 2 || sameLat(distinct) || sameLng(distinct):
		b := boundsOf(distinct)
		return geom.NewLineStringFlat(geom.XY, []float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}), nil
	default:
		return boundsOf(distinct).Polygon(), nil
	}
}

func (f *fakeEngine) Buffer(g geom.T, meters float64) (geom.T, error) {
	f.buffers++
	pad := meters / metersPerDegree
	b := g.Bounds()
	return geom.NewBounds(geom.XY).Set(b.Min(0)-pad, b.Min(1)-pad, b.Max(0)+pad, b.Max(1)+pad).Polygon(), nil
}

func (f *fakeEngine) Simplify(g geom.T, _ float64) (geom.T, error) {
	f.simplifies++
	return g, nil
}

func (f *fakeEngine) Union(a, b geom.T) (geom.T, error) {
	if f.unionErr != nil {
		return nil, f.unionErr
	}
	return a.Bounds().Clone().Extend(b).Polygon(), nil
}

func (f *fakeEngine) IntersectionArea(a, b geom.T) (float64, error) {
	if f.intersectFails != nil && f.intersectFails(a, b) {
		return 0, errors.New("non-noded intersection")
	}
	ab, bb := a.Bounds(), b.Bounds()
	w := min(ab.Max(0), bb.Max(0)) - max(ab.Min(0), bb.Min(0))
	h := min(ab.Max(1), bb.Max(1)) - max(ab.Min(1), bb.Min(1))
	if w <= 0 || h <= 0 {
		return 0, nil
	}
	return w * h, nil
}

func (f *fakeEngine) Area(g geom.T) float64 {
	switch g.(type) {
	case *geom.Point, *geom.LineString:
		return 0
	}
	b := g.Bounds()
	return (b.Max(0) - b.Min(0)) * (b.Max(1) - b.Min(1))
}

func boundsOf(points []GeoPoint) *geom.Bounds {
	b := geom.NewBounds(geom.XY)
	for _, p := range points {
		b.Extend(geom.NewPointFlat(geom.XY, []float64{p.Lng, p.Lat}))
	}
	return b
}

func sameLat(points []GeoPoint) bool {
	for _, p := range points[1:] {
		if p.Lat != points[0].Lat {
			return false
		}
	}
	return true
}

func sameLng(points []GeoPoint) bool {
	for _, p := range points[1:] {
		if p.Lng != points[0].Lng {
			return false
		}
	}
	return true
}

// box builds an axis-aligned square zone polygon.
func box(minLng, minLat, maxLng, maxLat float64) geom.T {
	return geom.NewBounds(geom.XY).Set(minLng, minLat, maxLng, maxLat).Polygon()
}

// pack returns n points on a 10 m grid anchored at center.
func pack(center GeoPoint, n int) []GeoPoint {
	const step = 10 / metersPerDegree
	pts := make([]GeoPoint, 0, n)
	for i := 0; i < n; i++ {
		pts = append(pts, GeoPoint{
			Lat: center.Lat + float64(i/4)*step,
			Lng: center.Lng + float64(i%4)*step,
		})
	}
	return pts
}
