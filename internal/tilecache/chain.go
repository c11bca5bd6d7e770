package tilecache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Chain reads through a list of backends in order, fastest first. A hit in a
// later level is written back to the earlier ones. Writes go to every level.
// A failing level is logged and skipped so a dead shared cache never fails a
// request.
type Chain struct {
	levels []Backend
}

// NewChain builds a chain over levels. Nil levels are ignored.
func NewChain(levels ...Backend) *Chain {
	c := &Chain{}
	for _, l := range levels {
		if l != nil {
			c.levels = append(c.levels, l)
		}
	}
	return c
}

// Get returns the first hit.
func (c *Chain) Get(ctx context.Context, key string) ([]byte, bool, error) {
	for i, level := range c.levels {
		data, ok, err := level.Get(ctx, key)
		if err != nil {
			zap.L().Warn("tilecache: level read failed", zap.Int("level", i), zap.String("key", key), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		for j := 0; j < i; j++ {
			if err := c.levels[j].Set(ctx, key, data, 0); err != nil {
				zap.L().Warn("tilecache: backfill failed", zap.Int("level", j), zap.String("key", key), zap.Error(err))
			}
		}
		return data, true, nil
	}
	return nil, false, nil
}

// Set writes to every level.
func (c *Chain) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	for i, level := range c.levels {
		if err := level.Set(ctx, key, data, ttl); err != nil {
			zap.L().Warn("tilecache: level write failed", zap.Int("level", i), zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}
