package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

func square(minX, minY, maxX, maxY float64) *geom.Polygon {
	return geom.NewBounds(geom.XY).Set(minX, minY, maxX, maxY).Polygon()
}

func TestConvexHull_Degenerate(t *testing.T) {
	e := New()

	g, err := e.ConvexHull([]zones.GeoPoint{{Lat: 1, Lng: 2}, {Lat: 1, Lng: 2}})
	require.NoError(t, err)
	require.IsType(t, &geom.Point{}, g)
	assert.Equal(t, []float64{2, 1}, g.FlatCoords(), "x is longitude")

	g, err = e.ConvexHull([]zones.GeoPoint{{Lat: 1, Lng: 2}, {Lat: 1.001, Lng: 2}})
	require.NoError(t, err)
	assert.IsType(t, &geom.LineString{}, g)

	_, err = e.ConvexHull(nil)
	assert.Error(t, err)
}

func TestConvexHull_Collinear(t *testing.T) {
	e := New()
	g, err := e.ConvexHull([]zones.GeoPoint{{Lat: 0, Lng: 0.0005}, {Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.001}, {Lat: 0, Lng: 0.0002}})
	require.NoError(t, err)

	line, ok := g.(*geom.LineString)
	require.True(t, ok, "got %T", g)
	b := line.Bounds()
	assert.Equal(t, 0.0, b.Min(0))
	assert.Equal(t, 0.001, b.Max(0))
	assert.Equal(t, 2, line.NumCoords())
}

func TestConvexHull_Polygon(t *testing.T) {
	e := New()
	g, err := e.ConvexHull([]zones.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}, {Lat: 1, Lng: 0}, {Lat: 0.5, Lng: 0.5}})
	require.NoError(t, err)
	require.IsType(t, &geom.Polygon{}, g)
	assert.InDelta(t, 1.0, e.Area(g), 1e-12)
}

func TestBuffer_Point(t *testing.T) {
	e := New()
	g, err := e.Buffer(geom.NewPointFlat(geom.XY, []float64{0, 0}), 25)
	require.NoError(t, err)
	require.IsType(t, &geom.Polygon{}, g)

	r := 25 / (EarthRadiusMeters * math.Pi / 180)
	// A 16-gon covers about 97% of its circumscribed circle.
	assert.InEpsilon(t, math.Pi*r*r, e.Area(g), 0.05)

	b := g.Bounds()
	assert.InDelta(t, -r, b.Min(1), r*1e-6)
	assert.InDelta(t, r, b.Max(1), r*1e-6)
}

func TestBuffer_Line(t *testing.T) {
	e := New()
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 0.001, 0})
	g, err := e.Buffer(line, 25)
	require.NoError(t, err)
	require.IsType(t, &geom.Polygon{}, g)

	b := g.Bounds()
	assert.Less(t, b.Min(0), 0.0)
	assert.Greater(t, b.Max(0), 0.001)
	assert.Greater(t, e.Area(g), 0.0)
}

func TestBuffer_InvalidDistance(t *testing.T) {
	_, err := New().Buffer(geom.NewPointFlat(geom.XY, []float64{0, 0}), 0)
	assert.Error(t, err)
}

func TestSimplify_ReducesVertices(t *testing.T) {
	e := New()
	var flat []float64
	for k := 0; k < 64; k++ {
		a := 2 * math.Pi * float64(k) / 64
		flat = append(flat, math.Cos(a), math.Sin(a))
	}
	flat = append(flat, flat[0], flat[1])
	circle := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})

	g, err := e.Simplify(circle, 0.05)
	require.NoError(t, err)
	assert.Less(t, len(g.FlatCoords()), len(circle.FlatCoords()))
	assert.InEpsilon(t, e.Area(circle), e.Area(g), 0.1)
}

func TestSimplify_KeepsTinyPolygon(t *testing.T) {
	e := New()
	small, err := e.Buffer(geom.NewPointFlat(geom.XY, []float64{-46.63, -23.55}), 25)
	require.NoError(t, err)

	g, err := e.Simplify(small, 0.01)
	require.NoError(t, err)
	require.IsType(t, &geom.Polygon{}, g)
	assert.Greater(t, e.Area(g), 0.0, "tolerance far above the polygon size must not collapse it")

	sb, gb := small.Bounds(), g.Bounds()
	assert.GreaterOrEqual(t, gb.Min(0), sb.Min(0)-1e-12)
	assert.LessOrEqual(t, gb.Max(0), sb.Max(0)+1e-12)
}

func TestSimplify_PassesThroughLines(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})
	g, err := New().Simplify(line, 0.01)
	require.NoError(t, err)
	assert.Same(t, line, g)
}

func TestUnion(t *testing.T) {
	e := New()
	g, err := e.Union(square(0, 0, 1, 1), square(0.5, 0.5, 1.5, 1.5))
	require.NoError(t, err)
	assert.IsType(t, &geom.Polygon{}, g)
	assert.InDelta(t, 1.75, e.Area(g), 1e-9)
}

func TestUnion_Disjoint(t *testing.T) {
	e := New()
	g, err := e.Union(square(0, 0, 1, 1), square(3, 3, 4, 4))
	require.NoError(t, err)
	assert.IsType(t, &geom.MultiPolygon{}, g)
	assert.InDelta(t, 2.0, e.Area(g), 1e-9)
}

func TestUnion_RejectsLines(t *testing.T) {
	_, err := New().Union(square(0, 0, 1, 1), geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1}))
	assert.Error(t, err)
}

func TestIntersectionArea(t *testing.T) {
	e := New()

	a, err := e.IntersectionArea(square(0, 0, 1, 1), square(0.5, 0.5, 1.5, 1.5))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, a, 1e-9)

	a, err = e.IntersectionArea(square(0, 0, 1, 1), square(3, 3, 4, 4))
	require.NoError(t, err)
	assert.Zero(t, a)

	a, err = e.IntersectionArea(square(0, 0, 1, 1), geom.NewPointFlat(geom.XY, []float64{0.5, 0.5}))
	require.NoError(t, err)
	assert.Zero(t, a)
}

func TestArea(t *testing.T) {
	e := New()
	assert.Zero(t, e.Area(geom.NewPointFlat(geom.XY, []float64{1, 1})))
	assert.Zero(t, e.Area(geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})))
	assert.InDelta(t, 4.0, e.Area(square(0, 0, 2, 2)), 1e-12)
}

func TestDestinationPoint(t *testing.T) {
	lat, lng := DestinationPoint(0, 0, 90, 111195)
	assert.InDelta(t, 0, lat, 1e-9)
	assert.InDelta(t, 1, lng, 1e-3)

	lat, lng = DestinationPoint(-23.55, -46.63, 0, 1000)
	assert.Greater(t, lat, -23.55)
	assert.InDelta(t, -46.63, lng, 1e-9)
	d := zones.Distance(zones.GeoPoint{Lat: -23.55, Lng: -46.63}, zones.GeoPoint{Lat: lat, Lng: lng})
	assert.InDelta(t, 1.0, d, 1e-6)
}
