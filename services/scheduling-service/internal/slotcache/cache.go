// Package slotcache keeps generated slot lists in Redis.
//
// Keys are namespaced by a per-operator version counter. Invalidate bumps the
// counter, which orphans every list computed before it; orphans expire on
// their TTL.
package slotcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
)

type Cache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func New(rdb redis.Cmdable, ttl time.Duration, prefix string) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "slots"
	}
	return &Cache{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *Cache) versionKey(operatorID string) string {
	return fmt.Sprintf("%s:{%s}:ver", c.prefix, operatorID)
}

func (c *Cache) entryKey(operatorID string, version int64, date string, role model.Role) string {
	return fmt.Sprintf("%s:{%s}:%d:%s:%s", c.prefix, operatorID, version, date, role)
}

func (c *Cache) Version(ctx context.Context, operatorID string) (int64, error) {
	v, err := c.rdb.Get(ctx, c.versionKey(operatorID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *Cache) Get(ctx context.Context, operatorID string, version int64, date string, role model.Role) ([]time.Time, bool, error) {
	raw, err := c.rdb.Get(ctx, c.entryKey(operatorID, version, date, role)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var slots []time.Time
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, fmt.Errorf("decode cached slots: %w", err)
	}
	return slots, true, nil
}

func (c *Cache) Set(ctx context.Context, operatorID string, version int64, date string, role model.Role, slots []time.Time) error {
	if slots == nil {
		slots = []time.Time{}
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.entryKey(operatorID, version, date, role), raw, c.ttl).Err()
}

func (c *Cache) Invalidate(ctx context.Context, operatorID string) error {
	return c.rdb.Incr(ctx, c.versionKey(operatorID)).Err()
}

// Ping is used as a readiness check.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
