package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper suppresses re-processing of provider events that were already
// turned into notifications. Keys expire so a stuck provider cannot pin
// memory forever.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// AcquireOnce tries to acquire a dedup slot for a provider event.
// Returns true if this is the first time the event is seen.
func (d *Deduper) AcquireOnce(ctx context.Context, source, externalID string) bool {
	key := fmt.Sprintf("dedup:%s:%s", source, externalID)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// Redis down: do not block processing, let it through.
		if d.logger != nil {
			d.logger.Warn("Redis dedup check failed, allowing processing",
				zap.String("source", source),
				zap.String("external_id", externalID),
				zap.Error(err),
			)
		}
		return true
	}

	if !ok && d.logger != nil {
		d.logger.Info("Skipped duplicated event",
			zap.String("source", source),
			zap.String("external_id", externalID),
			zap.String("dedup_key", key),
		)
	}

	return ok
}
