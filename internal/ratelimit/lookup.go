package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/coursepay/internal/config"
	"go.uber.org/zap"
)

const keyLookupClient = "lookup:client:%s"

// LookupLimiter throttles unauthenticated invoice and access code lookups so
// access codes cannot be enumerated.
type LookupLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewLookupLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) (*LookupLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		log.Named("ratelimit").Warn("lookup rate limit enabled without redis, disabling")
		return nil, nil
	}
	if limitCfg.LookupRate <= 0 || limitCfg.LookupBurst <= 0 {
		return nil, errors.New("lookup rate limit must be positive")
	}

	return &LookupLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.LookupRate,
		burst:   limitCfg.LookupBurst,
	}, nil
}

func (l *LookupLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *LookupLimiter) Allow(ctx context.Context, clientKey string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyLookupClient, strings.TrimSpace(clientKey)), l.rate, l.burst)
}
