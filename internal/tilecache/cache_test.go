package tilecache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

func sampleCollection() zones.FeatureCollection {
	poly := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 1, 0, 0}, []int{10})
	return zones.FeatureCollection{Features: []zones.ZonePolygon{{
		Geometry: poly,
		Properties: zones.ZoneProperties{
			ClusterID:       1,
			RiskLevel:       zones.RiskMedium,
			OccurrenceCount: 12,
		},
	}}}
}

func TestZoneCache_RoundTrip(t *testing.T) {
	backend := NewMemory(10, time.Hour)
	cache := New(backend)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "g100000:1:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, "g100000:1:1", sampleCollection(), time.Minute))

	raw := get(t, backend, KeyPrefix+"g100000:1:1")
	assert.Contains(t, string(raw), `"FeatureCollection"`)

	fc, ok, err := cache.Get(ctx, "g100000:1:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, sampleCollection().Features[0].Properties, fc.Features[0].Properties)
	assert.Equal(t, sampleCollection().Features[0].Geometry.FlatCoords(), fc.Features[0].Geometry.FlatCoords())
}

func TestZoneCache_EmptyCollection(t *testing.T) {
	cache := New(NewMemory(10, time.Hour))
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "t", zones.FeatureCollection{}, 0))
	fc, ok, err := cache.Get(ctx, "t")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, fc.Len())
}

func TestZoneCache_CorruptEntry(t *testing.T) {
	backend := NewMemory(10, time.Hour)
	cache := New(backend)
	set(t, backend, KeyPrefix+"bad", "{not json", 0)

	_, ok, err := cache.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, ok)
}
