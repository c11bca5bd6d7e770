package zones

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// DegenerateMode selects how one-point, two-point and collinear clusters render.
type DegenerateMode string

// Degenerate rendering modes.
const (
	// DegenerateBuffer widens the point or line into a polygon.
	DegenerateBuffer DegenerateMode = "buffer"
	// DegenerateRaw emits the Point or LineString as is.
	DegenerateRaw DegenerateMode = "raw"
)

// Valid reports whether m is a known mode.
func (m DegenerateMode) Valid() bool {
	return m == DegenerateBuffer || m == DegenerateRaw
}

// HullBuilder turns a cluster's points into its zone geometry.
type HullBuilder struct {
	Engine            GeometryEngine
	Degenerate        DegenerateMode
	BufferMeters      float64
	SimplifyTolerance float64
}

// Build returns the convex hull of points, buffered when degenerate (unless the
// builder is in raw mode) and simplified when it is a polygon.
func (b HullBuilder) Build(points []GeoPoint) (geom.T, error) {
	if len(points) == 0 {
		return nil, eris.New("zones: hull of empty cluster")
	}

	hull, err := b.Engine.ConvexHull(points)
	if err != nil {
		return nil, eris.Wrap(err, "zones: convex hull")
	}

	switch hull.(type) {
	case *geom.Polygon:
	case *geom.Point, *geom.LineString:
		if b.Degenerate == DegenerateRaw {
			return hull, nil
		}
		hull, err = b.Engine.Buffer(hull, b.BufferMeters)
		if err != nil {
			return nil, eris.Wrap(err, "zones: buffer degenerate hull")
		}
	case nil:
		return nil, eris.New("zones: convex hull returned no geometry")
	default:
		return nil, eris.Errorf("zones: unexpected hull type %T", hull)
	}

	if b.SimplifyTolerance <= 0 {
		return hull, nil
	}
	simplified, err := b.Engine.Simplify(hull, b.SimplifyTolerance)
	if err != nil {
		return nil, eris.Wrap(err, "zones: simplify hull")
	}
	return simplified, nil
}
