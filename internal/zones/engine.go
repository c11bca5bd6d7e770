package zones

import (
	"github.com/twpayne/go-geom"
)

// GeometryEngine is the computational-geometry capability the generator needs.
// Geometries are planar in degrees with X=longitude and Y=latitude.
type GeometryEngine interface {
	// ConvexHull returns a *geom.Point for one distinct point, a *geom.LineString
	// for two distinct or collinear points, and a *geom.Polygon otherwise.
	ConvexHull(points []GeoPoint) (geom.T, error)
	// Buffer widens a geometry by a geodesic distance in meters into a polygon.
	Buffer(g geom.T, meters float64) (geom.T, error)
	// Simplify reduces vertices within tolerance degrees without introducing
	// self-intersections.
	Simplify(g geom.T, tolerance float64) (geom.T, error)
	Union(a, b geom.T) (geom.T, error)
	IntersectionArea(a, b geom.T) (float64, error)
	// Area is zero for points and lines.
	Area(g geom.T) float64
}
