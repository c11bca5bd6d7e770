// Package geometry implements the zone geometry engine on planar lng/lat
// coordinates: convex hulls, geodesic buffers and polygon clipping.
package geometry

import (
	"math"
	"slices"

	cgeom "github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

const defaultSegments = 16

// collinearSine is the largest |sin| of the angle between two point offsets
// still treated as collinear.
const collinearSine = 1e-12

// Planar is the production zones.GeometryEngine.
type Planar struct {
	// Segments is the number of vertices approximating each buffer circle.
	Segments int
}

var _ zones.GeometryEngine = (*Planar)(nil)

// New returns a Planar engine with default buffer resolution.
func New() *Planar {
	return &Planar{Segments: defaultSegments}
}

// ConvexHull implements zones.GeometryEngine.
func (e *Planar) ConvexHull(points []zones.GeoPoint) (geom.T, error) {
	var distinct []zones.GeoPoint
	for _, p := range points {
		if !slices.Contains(distinct, p) {
			distinct = append(distinct, p)
		}
	}

	switch len(distinct) {
	case 0:
		return nil, eris.New("geometry: convex hull of no points")
	case 1:
		p := distinct[0]
		return geom.NewPointFlat(geom.XY, []float64{p.Lng, p.Lat}), nil
	case 2:
		return lineThrough(distinct[0], distinct[1]), nil
	}

	if a, b, ok := collinearExtremes(distinct); ok {
		return lineThrough(a, b), nil
	}

	flat := make([]float64, 0, 2*len(distinct))
	for _, p := range distinct {
		flat = append(flat, p.Lng, p.Lat)
	}
	hull := xy.ConvexHullFlat(geom.XY, flat)
	if hull == nil {
		return nil, eris.New("geometry: convex hull failed")
	}
	return hull, nil
}

func lineThrough(a, b zones.GeoPoint) *geom.LineString {
	return geom.NewLineStringFlat(geom.XY, []float64{a.Lng, a.Lat, b.Lng, b.Lat})
}

// collinearExtremes reports whether all points lie on one line and, if so,
// returns the two farthest apart along it.
func collinearExtremes(points []zones.GeoPoint) (zones.GeoPoint, zones.GeoPoint, bool) {
	origin := points[0]
	dx, dy := points[1].Lng-origin.Lng, points[1].Lat-origin.Lat
	dlen := math.Hypot(dx, dy)

	lo, hi := origin, origin
	tLo, tHi := 0.0, 0.0
	for _, p := range points[1:] {
		px, py := p.Lng-origin.Lng, p.Lat-origin.Lat
		cross := dx*py - dy*px
		if math.Abs(cross) > collinearSine*dlen*math.Hypot(px, py) {
			return zones.GeoPoint{}, zones.GeoPoint{}, false
		}
		t := dx*px + dy*py
		if t < tLo {
			tLo, lo = t, p
		}
		if t > tHi {
			tHi, hi = t, p
		}
	}
	return lo, hi, true
}

// Buffer implements zones.GeometryEngine. Every vertex is surrounded by a
// geodesic circle of radius meters and the convex hull of all circles is
// returned, which is exact for the convex inputs the hull builder produces.
func (e *Planar) Buffer(g geom.T, meters float64) (geom.T, error) {
	if meters <= 0 {
		return nil, eris.Errorf("geometry: buffer distance must be positive, got %v", meters)
	}
	segments := e.Segments
	if segments < 4 {
		segments = defaultSegments
	}

	coords := g.FlatCoords()
	stride := g.Stride()
	if len(coords) == 0 {
		return nil, eris.New("geometry: buffer of empty geometry")
	}

	flat := make([]float64, 0, 2*segments*len(coords)/stride)
	for i := 0; i < len(coords); i += stride {
		lng, lat := coords[i], coords[i+1]
		for k := 0; k < segments; k++ {
			bearing := 360 * float64(k) / float64(segments)
			dLat, dLng := DestinationPoint(lat, lng, bearing, meters)
			flat = append(flat, dLng, dLat)
		}
	}

	hull := xy.ConvexHullFlat(geom.XY, flat)
	poly, ok := hull.(*geom.Polygon)
	if !ok {
		return nil, eris.Errorf("geometry: buffer produced %T", hull)
	}
	return poly, nil
}

// Simplify implements zones.GeometryEngine. Points and lines are returned
// unchanged, and so is any polygon whose simplification would collapse a ring.
func (e *Planar) Simplify(g geom.T, tolerance float64) (geom.T, error) {
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
	default:
		return g, nil
	}
	if tolerance <= 0 {
		return g, nil
	}

	poly, err := toClip(g)
	if err != nil {
		return nil, err
	}
	simplified, ok := poly.Simplify(tolerance).(cgeom.Polygon)
	if !ok || !keepsShape(simplified) {
		return g, nil
	}

	out, err := fromClip(simplified)
	if err != nil {
		return g, nil
	}
	return out, nil
}

// keepsShape reports whether every ring still has area after simplification.
func keepsShape(p cgeom.Polygon) bool {
	if len(p) == 0 {
		return false
	}
	for _, path := range p {
		ring := closedRing(path)
		if distinctVertices(ring) < 3 || ringArea(ring) == 0 {
			return false
		}
	}
	return true
}

// Union implements zones.GeometryEngine.
func (e *Planar) Union(a, b geom.T) (geom.T, error) {
	pa, err := toClip(a)
	if err != nil {
		return nil, err
	}
	pb, err := toClip(b)
	if err != nil {
		return nil, err
	}
	return fromClip(pa.Union(pb).(cgeom.Polygon))
}

// IntersectionArea implements zones.GeometryEngine. Points and lines have no
// area and never intersect anything by area.
func (e *Planar) IntersectionArea(a, b geom.T) (float64, error) {
	if e.Area(a) == 0 || e.Area(b) == 0 {
		return 0, nil
	}
	pa, err := toClip(a)
	if err != nil {
		return 0, err
	}
	pb, err := toClip(b)
	if err != nil {
		return 0, err
	}
	inter := pa.Intersection(pb)
	if inter == nil {
		return 0, nil
	}
	return inter.Area(), nil
}

// Area implements zones.GeometryEngine.
func (e *Planar) Area(g geom.T) float64 {
	poly, err := toClip(g)
	if err != nil {
		return 0
	}
	return poly.Area()
}
