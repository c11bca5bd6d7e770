package zones

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func newHullBuilder(engine GeometryEngine, mode DegenerateMode) HullBuilder {
	return HullBuilder{Engine: engine, Degenerate: mode, BufferMeters: 25, SimplifyTolerance: 0.01}
}

func TestHullBuilder_SinglePointBuffered(t *testing.T) {
	engine := &fakeEngine{}
	g, err := newHullBuilder(engine, DegenerateBuffer).Build([]GeoPoint{{Lat: 1, Lng: 2}})
	require.NoError(t, err)

	poly, ok := g.(*geom.Polygon)
	require.True(t, ok, "got %T", g)
	assert.Greater(t, engine.Area(poly), 0.0)
	assert.Equal(t, 1, engine.buffers)
	assert.Equal(t, 1, engine.simplifies)
}

func TestHullBuilder_DuplicatePointsAreOnePoint(t *testing.T) {
	g, err := newHullBuilder(&fakeEngine{}, DegenerateRaw).Build([]GeoPoint{{1, 2}, {1, 2}, {1, 2}})
	require.NoError(t, err)
	assert.IsType(t, &geom.Point{}, g)
}

func TestHullBuilder_CollinearBuffered(t *testing.T) {
	engine := &fakeEngine{}
	g, err := newHullBuilder(engine, DegenerateBuffer).Build([]GeoPoint{{0, 0}, {0, 0.0005}, {0, 0.001}})
	require.NoError(t, err)
	assert.IsType(t, &geom.Polygon{}, g)
	assert.Equal(t, 1, engine.buffers)
}

func TestHullBuilder_RawMode(t *testing.T) {
	engine := &fakeEngine{}
	b := newHullBuilder(engine, DegenerateRaw)

	g, err := b.Build([]GeoPoint{{1, 2}})
	require.NoError(t, err)
	assert.IsType(t, &geom.Point{}, g)

	g, err = b.Build([]GeoPoint{{1, 2}, {1.001, 2.001}})
	require.NoError(t, err)
	assert.IsType(t, &geom.LineString{}, g)

	assert.Zero(t, engine.buffers)
	assert.Zero(t, engine.simplifies, "raw degenerate output is not simplified")
}

func TestHullBuilder_PolygonNotBuffered(t *testing.T) {
	engine := &fakeEngine{}
	g, err := newHullBuilder(engine, DegenerateBuffer).Build([]GeoPoint{{0, 0}, {0, 1}, {1, 0}, {1, 1}})
	require.NoError(t, err)
	assert.IsType(t, &geom.Polygon{}, g)
	assert.Zero(t, engine.buffers)
	assert.Equal(t, 1, engine.simplifies)
}

func TestHullBuilder_Errors(t *testing.T) {
	_, err := newHullBuilder(&fakeEngine{}, DegenerateBuffer).Build(nil)
	assert.Error(t, err)

	_, err = newHullBuilder(&fakeEngine{failHullLen: 3}, DegenerateBuffer).Build([]GeoPoint{{0, 0}, {0, 1}, {1, 0}})
	assert.Error(t, err)
}
