package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Harsh-BH/qsweep/internal/ionq"
)

var _ ionq.ResultCache = (*ResultCache)(nil)

const (
	resultKeyPrefix = "qsweep:result:"
	resultTTL       = 24 * time.Hour
)

// ResultCache keeps output histograms of completed remote jobs. A sweep
// requeued mid-run re-attaches to its recorded jobs, and their finished
// results are served from here instead of the remote API.
type ResultCache struct {
	client goredis.Cmdable
	ttl    time.Duration
}

// NewResultCache creates a Redis-backed job result cache.
func NewResultCache(client goredis.Cmdable) *ResultCache {
	return &ResultCache{client: client, ttl: resultTTL}
}

func (c *ResultCache) Get(ctx context.Context, jobID string) (map[string]float64, bool, error) {
	raw, err := c.client.Get(ctx, resultKeyPrefix+jobID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get result: %w", err)
	}

	var hist map[string]float64
	if err := json.Unmarshal(raw, &hist); err != nil {
		return nil, false, fmt.Errorf("redis: decode result: %w", err)
	}
	return hist, true, nil
}

func (c *ResultCache) Put(ctx context.Context, jobID string, histogram map[string]float64) error {
	raw, err := json.Marshal(histogram)
	if err != nil {
		return fmt.Errorf("redis: encode result: %w", err)
	}
	if err := c.client.Set(ctx, resultKeyPrefix+jobID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: put result: %w", err)
	}
	return nil
}
