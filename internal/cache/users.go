// Package cache provides a Redis cache-aside layer for user lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/linkup-social/chat-platform/internal/model"
	"github.com/linkup-social/chat-platform/pkg/logger"
	"github.com/linkup-social/chat-platform/pkg/metrics"
)

// UserSource is the authoritative user directory the cache sits in front of.
type UserSource interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	FindUsersByIDs(ctx context.Context, ids []string) ([]model.User, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

const lookupTimeout = 5 * time.Second

// UserCache caches FindUserByID results in Redis. Friendship and block checks
// are always answered by the source. Redis failures fall through to the source.
type UserCache struct {
	source UserSource
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *logger.Logger
	group  singleflight.Group
}

// NewUserCache creates a cache in front of source.
func NewUserCache(source UserSource, client *redis.Client, ttl time.Duration, log *logger.Logger) *UserCache {
	return &UserCache{
		source: source,
		client: client,
		prefix: "chat:user:",
		ttl:    ttl,
		log:    log.Named("user_cache"),
	}
}

// FindUserByID returns the user from Redis when cached, otherwise from the
// source, populating the cache. Concurrent misses for one id share a lookup.
func (c *UserCache) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	key := c.prefix + id

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var u model.User
		if err := json.Unmarshal(data, &u); err == nil {
			metrics.UserCacheRequests.WithLabelValues("hit").Inc()
			return &u, nil
		}
		c.log.Warn("discarding corrupt cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		metrics.UserCacheRequests.WithLabelValues("error").Inc()
		c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	metrics.UserCacheRequests.WithLabelValues("miss").Inc()

	// The shared lookup outlives any single caller's cancellation.
	ch := c.group.DoChan(id, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return c.source.FindUserByID(lookupCtx, id)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	u := res.Val.(*model.User)

	if data, err := json.Marshal(u); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}

	// Callers may modify the result; never hand out the shared pointer.
	out := *u
	return &out, nil
}

// Invalidate drops the cached entry for id.
func (c *UserCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.prefix+id).Err()
}

// FindUsersByIDs is answered by the source.
func (c *UserCache) FindUsersByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	return c.source.FindUsersByIDs(ctx, ids)
}

// AreFriends is answered by the source.
func (c *UserCache) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return c.source.AreFriends(ctx, a, b)
}

// IsBlocked is answered by the source.
func (c *UserCache) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	return c.source.IsBlocked(ctx, a, b)
}

// Ping checks Redis connectivity.
func (c *UserCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
