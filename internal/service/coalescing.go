package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/flight-route-analytics/internal/cache"
	"github.com/kjstillabower/flight-route-analytics/internal/observability"
)

// cacheKey versions key by the current cache generation, so entries written
// before a speed recompute are never read after it.
func (s *AnalyticsService) cacheKey(operation, key string) string {
	return fmt.Sprintf("v%d:%s:%s", s.generation.Load(), operation, key)
}

// cached answers operation from the response cache, or runs compute once for
// all concurrent callers of the same key and stores the encoded result.
// Every caller decodes its own copy. Cache failures are logged and never fail
// the call; compute errors are returned and not cached.
//
// The shared computation runs detached from any one caller and is bounded by
// ComputeTimeout. Each caller stops waiting when its own ctx is done, without
// affecting the others.
func cached[T any](ctx context.Context, s *AnalyticsService, operation, key string, compute func(context.Context) (T, error)) (T, error) {
	var out T
	logger := s.log(ctx)
	fullKey := s.cacheKey(operation, key)

	data, ok, err := s.cache.Get(ctx, fullKey)
	if err != nil {
		logger.Warn("cache get failed", zap.String("key", fullKey), zap.Error(err))
	}
	if ok {
		var hit T
		if err := cache.Decode(data, &hit); err == nil {
			observability.CacheHitsTotal.WithLabelValues(operation).Inc()
			logger.Debug("cache hit", zap.String("key", fullKey))
			return hit, nil
		}
		logger.Warn("cache entry undecodable, recomputing", zap.String("key", fullKey))
	}

	start := time.Now()
	ch := s.group.DoChan(fullKey, func() (any, error) {
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ComputeTimeout)
		defer cancel()
		result, err := compute(computeCtx)
		if err != nil {
			return nil, err
		}
		payload, err := cache.Encode(result)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(computeCtx, fullKey, payload, s.opts.CacheTTL); err != nil {
			logger.Warn("cache set failed", zap.String("key", fullKey), zap.Error(err))
		}
		return payload, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		logger.Debug("caller stopped waiting for shared computation",
			zap.String("key", fullKey), zap.Error(ctx.Err()))
		return out, fmt.Errorf("%s: %w", operation, ctx.Err())
	case res = <-ch:
	}
	if res.Shared {
		observability.CoalescedRequestsTotal.WithLabelValues(operation).Inc()
	}
	if res.Err != nil {
		return out, res.Err
	}
	if err := cache.Decode(res.Val.([]byte), &out); err != nil {
		return out, err
	}
	logger.Debug("analytics computed",
		zap.String("operation", operation),
		zap.String("key", fullKey),
		zap.Bool("shared", res.Shared),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}
