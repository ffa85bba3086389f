package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AppointmentCache caches serialized appointment listings per insured.
// It only serves the read path; cache misses and redis failures fall
// through to the appointment store.
type AppointmentCache interface {
	Get(ctx context.Context, insuredID string) ([]byte, bool)
	Set(ctx context.Context, insuredID string, payload []byte)
	Invalidate(ctx context.Context, insuredID string)
}

type redisAppointmentCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewAppointmentCache(client *redis.Client, ttl time.Duration, log *zap.Logger) AppointmentCache {
	return &redisAppointmentCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func cacheKey(insuredID string) string {
	return fmt.Sprintf("appointments:insured:%s", insuredID)
}

func (c *redisAppointmentCache) Get(ctx context.Context, insuredID string) ([]byte, bool) {
	val, err := c.client.Get(ctx, cacheKey(insuredID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("appointment cache read failed",
				zap.String("insuredId", insuredID), zap.Error(err))
		}
		return nil, false
	}
	return val, true
}

func (c *redisAppointmentCache) Set(ctx context.Context, insuredID string, payload []byte) {
	if err := c.client.Set(ctx, cacheKey(insuredID), payload, c.ttl).Err(); err != nil {
		c.log.Warn("appointment cache write failed",
			zap.String("insuredId", insuredID), zap.Error(err))
	}
}

func (c *redisAppointmentCache) Invalidate(ctx context.Context, insuredID string) {
	if err := c.client.Del(ctx, cacheKey(insuredID)).Err(); err != nil {
		c.log.Warn("appointment cache invalidation failed",
			zap.String("insuredId", insuredID), zap.Error(err))
	}
}
