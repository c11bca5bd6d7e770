package tilecache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

// KeyPrefix namespaces zone collections in shared stores.
const KeyPrefix = "zones:"

// Cache stores zone collections keyed by tile id.
type Cache interface {
	Get(ctx context.Context, tileID string) (zones.FeatureCollection, bool, error)
	Put(ctx context.Context, tileID string, fc zones.FeatureCollection, ttl time.Duration) error
}

// ZoneCache is a Cache over any Backend, storing collections as GeoJSON.
type ZoneCache struct {
	backend Backend
}

// New wraps backend.
func New(backend Backend) *ZoneCache {
	return &ZoneCache{backend: backend}
}

// Get returns the cached collection for tileID. Undecodable entries are
// reported as misses with an error.
func (c *ZoneCache) Get(ctx context.Context, tileID string) (zones.FeatureCollection, bool, error) {
	data, ok, err := c.backend.Get(ctx, KeyPrefix+tileID)
	if err != nil || !ok {
		return zones.FeatureCollection{}, false, err
	}
	var fc zones.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return zones.FeatureCollection{}, false, eris.Wrapf(err, "tilecache: decode %s", tileID)
	}
	return fc, true, nil
}

// Put stores fc under tileID for ttl.
func (c *ZoneCache) Put(ctx context.Context, tileID string, fc zones.FeatureCollection, ttl time.Duration) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrapf(err, "tilecache: encode %s", tileID)
	}
	return c.backend.Set(ctx, KeyPrefix+tileID, data, ttl)
}

var _ Cache = (*ZoneCache)(nil)
