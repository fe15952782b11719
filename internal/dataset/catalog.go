package dataset

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"wasco/mapcore/internal/scenario"
)

// Catalog loads shared assets at most once: the base geometry and one
// statistics set per mode and scenario. Loaded values are read-only and
// shared by every session. Failed loads are not cached.
type Catalog struct {
	loader *Loader
	group  singleflight.Group

	mu    sync.RWMutex
	base  *Base
	stats map[string][]TimeAggregate
}

func NewCatalog(loader *Loader) *Catalog {
	return &Catalog{loader: loader, stats: make(map[string][]TimeAggregate)}
}

// Base returns the base geometry, loading it on first use.
func (c *Catalog) Base(ctx context.Context) (*Base, error) {
	c.mu.RLock()
	b := c.base
	c.mu.RUnlock()
	if b != nil {
		return b, nil
	}

	v, err, _ := c.group.Do("base", func() (any, error) {
		b, err := c.loader.LoadBase(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.base = b
		c.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Base), nil
}

// Stats returns the statistics for mode; fs only matters for modes with
// scenarios.
func (c *Catalog) Stats(ctx context.Context, mode scenario.AppMode, fs scenario.FutureScenario) ([]TimeAggregate, error) {
	key := StatsKey(mode, fs)
	c.mu.RLock()
	periods, ok := c.stats[key]
	c.mu.RUnlock()
	if ok {
		return periods, nil
	}

	v, err, _ := c.group.Do("stats:"+key, func() (any, error) {
		periods, err := c.loader.LoadStats(context.WithoutCancel(ctx), mode, fs)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.stats[key] = periods
		c.mu.Unlock()
		return periods, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]TimeAggregate), nil
}

// StatsKey identifies one statistics set.
func StatsKey(mode scenario.AppMode, fs scenario.FutureScenario) string {
	if !mode.HasScenarios() {
		return string(mode)
	}
	return string(mode) + "/" + fs.ID()
}
