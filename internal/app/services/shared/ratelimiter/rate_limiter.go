package ratelimiter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"telesession-service/internal/app/contracts"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/exceptions"

	"go.uber.org/zap"
)

// ResourceLimiter is a fixed-window counter stored in Redis with a TTL equal
// to the window duration.
type ResourceLimiter struct {
	redis contracts.RedisRepository
	log   *zap.Logger
}

func NewResourceLimiter(redis contracts.RedisRepository, log *zap.Logger) contracts.ResourceLimiter {
	return &ResourceLimiter{redis: redis, log: log}
}

// ApplyResourceLimiter enforces a fixed-window limit keyed by group and resource.
// It returns Allowed=false with RetryAfterSecs until the next window boundary when quota is exceeded.
func (l *ResourceLimiter) ApplyResourceLimiter(ctx context.Context, in *contracts.ApplyResourceLimiterInput) (*contracts.ApplyResourceLimiterOutput, error) {
	if in == nil {
		return &contracts.ApplyResourceLimiterOutput{Allowed: false}, fmt.Errorf("nil input")
	}

	resource := strings.ToLower(strings.TrimSpace(in.ResourceName))
	group := strings.ToUpper(strings.TrimSpace(in.LimiterGroupName))
	windowSec := in.WindowDurationSec
	if windowSec <= 0 {
		windowSec = 60
	}
	if in.MaxQuota <= 0 {
		return &contracts.ApplyResourceLimiterOutput{Allowed: true}, nil
	}
	if resource == "" || group == "" {
		return &contracts.ApplyResourceLimiterOutput{Allowed: false, RetryAfterSecs: windowSec}, nil
	}

	now := in.NowUTC
	if now.IsZero() {
		now = time.Now().UTC()
	}

	windowID := now.Unix() / int64(windowSec)
	key := fmt.Sprintf(constvars.RateLimitKeyFormat, group, resource, fmt.Sprint(windowID))

	ttl := time.Duration(windowSec)*time.Second + time.Second
	count, err := l.redis.IncrementWithTTL(ctx, key, ttl)
	if err != nil {
		l.log.Error("ResourceLimiter.ApplyResourceLimiter increment failed",
			zap.String(constvars.LoggingRateLimitGroupKey, group),
			zap.Error(err),
		)
		return &contracts.ApplyResourceLimiterOutput{Allowed: false}, exceptions.ErrRateLimitCounter(err)
	}

	if count > int64(in.MaxQuota) {
		nextWindowStart := (windowID + 1) * int64(windowSec)
		retryAfter := int(nextWindowStart-now.Unix()) + 1
		l.log.Info("ResourceLimiter.ApplyResourceLimiter quota exceeded",
			zap.String(constvars.LoggingRateLimitGroupKey, group),
			zap.Int64(constvars.LoggingCountKey, count),
			zap.Int(constvars.LoggingRetryAfterKey, retryAfter),
		)
		return &contracts.ApplyResourceLimiterOutput{Allowed: false, RetryAfterSecs: retryAfter}, nil
	}

	return &contracts.ApplyResourceLimiterOutput{Allowed: true}, nil
}
