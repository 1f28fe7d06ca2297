// Package cache keeps managers' attendance windows in Redis so the mark path
// avoids a database round trip.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"teamdesk/internal/timewindow"
)

// WindowCache is nil-safe: a cache built without a client misses every Get
// and ignores writes.
type WindowCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewWindowCache(client *redis.Client, ttl time.Duration) *WindowCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &WindowCache{redis: client, ttl: ttl}
}

func windowKey(managerID int64) string {
	return fmt.Sprintf("timeframe:%d", managerID)
}

// Get returns the cached window for managerID. A miss is (zero, false, nil).
func (c *WindowCache) Get(ctx context.Context, managerID int64) (timewindow.Window, bool, error) {
	if c == nil || c.redis == nil {
		return timewindow.Window{}, false, nil
	}
	value, err := c.redis.Get(ctx, windowKey(managerID)).Result()
	if err == redis.Nil {
		return timewindow.Window{}, false, nil
	}
	if err != nil {
		return timewindow.Window{}, false, err
	}
	var w timewindow.Window
	if err := w.UnmarshalJSON([]byte(value)); err != nil {
		// Corrupt entries are treated as a miss and overwritten on the next Set.
		return timewindow.Window{}, false, nil
	}
	return w, true, nil
}

func (c *WindowCache) Set(ctx context.Context, managerID int64, w timewindow.Window) error {
	if c == nil || c.redis == nil {
		return nil
	}
	data, err := w.MarshalJSON()
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, windowKey(managerID), data, c.ttl).Err()
}

// Fill stores w only when managerID has no entry yet, so a read-through fill
// never replaces a window written by Set. Reports whether w was stored.
func (c *WindowCache) Fill(ctx context.Context, managerID int64, w timewindow.Window) (bool, error) {
	if c == nil || c.redis == nil {
		return false, nil
	}
	data, err := w.MarshalJSON()
	if err != nil {
		return false, err
	}
	return c.redis.SetNX(ctx, windowKey(managerID), data, c.ttl).Result()
}

func (c *WindowCache) Invalidate(ctx context.Context, managerID int64) error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, windowKey(managerID)).Err()
}
