package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jack-barr3tt/db-engine/src/common/types"
	"github.com/redis/go-redis/v9"
)

// cached serves key from redis, or loads, encodes and stores it. Redis
// failures only cost the cache.
func (s *APIServer) cached(ctx context.Context, key string, load func() (any, error)) ([]byte, error) {
	if s.Redis != nil {
		body, err := s.Redis.Get(ctx, key).Bytes()
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.Logger.Warnw("response cache read failed", "key", key, "error", err)
		}
	}

	value, err := load()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if err := s.Redis.Set(ctx, key, body, responseCacheTTL).Err(); err != nil {
			s.Logger.Warnw("response cache write failed", "key", key, "error", err)
		}
	}

	return body, nil
}

// Invalidate drops cached responses that an ingested station batch makes
// stale.
func (s *APIServer) Invalidate(event types.StationIngested) {
	if s.Redis == nil {
		return
	}
	ctx := context.Background()

	keys := []string{hourlyDelaysCacheKey}
	iter := s.Redis.Scan(ctx, 0, fmt.Sprintf("api:stops:%d:*", event.EvaNumber), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.Logger.Warnw("failed to scan response cache", "eva", event.EvaNumber, "error", err)
	}

	if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
		s.Logger.Warnw("failed to invalidate response cache", "eva", event.EvaNumber, "error", err)
		return
	}

	s.Logger.Debugw("invalidated response cache", "run_id", event.RunID, "station", event.Station, "keys", len(keys))
}
