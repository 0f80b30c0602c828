package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/coursepay/internal/config"
	ledgerdomain "github.com/smallbiznis/coursepay/internal/ledger/domain"
	"github.com/smallbiznis/coursepay/internal/ledger/repository"
	"github.com/smallbiznis/coursepay/internal/ledger/rollup"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	snapshotGenerationKey = "ledger:snapshot:gen"
	snapshotKeyPrefix     = "ledger:snapshot:"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Legacy   *repository.LegacyStore
	V2       *repository.V2Store
	Tunables *config.ReconcilerConfigHolder
	Redis    *redis.Client `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	stores   []ledgerdomain.Store
	tunables *config.ReconcilerConfigHolder
	redis    *redis.Client
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		log:      p.Log.Named("ledger.service"),
		stores:   []ledgerdomain.Store{p.Legacy, p.V2},
		tunables: p.Tunables,
		redis:    p.Redis,
	}
}

// Snapshot reads every store, merges by natural key and aggregates.
func (s *Service) Snapshot(ctx context.Context, filter ledgerdomain.Filter) (ledgerdomain.Summary, error) {
	cacheKey := s.cacheKey(ctx, filter)
	if cached, ok := s.readCache(ctx, cacheKey); ok {
		return cached, nil
	}

	sources := make([][]ledgerdomain.Entry, 0, len(s.stores))
	for _, store := range s.stores {
		entries, err := store.List(ctx, filter.Scope())
		if err != nil {
			return ledgerdomain.Summary{}, fmt.Errorf("list %s store: %w", store.Name(), err)
		}
		sources = append(sources, entries)
	}

	summary, err := rollup.Aggregate(rollup.Merge(sources...), filter)
	if err != nil {
		return ledgerdomain.Summary{}, err
	}

	s.writeCache(ctx, cacheKey, summary)
	return summary, nil
}

// Invalidate bumps the snapshot generation so cached summaries stop matching.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Incr(ctx, snapshotGenerationKey).Err()
}

func (s *Service) cacheKey(ctx context.Context, filter ledgerdomain.Filter) string {
	if s.redis == nil || s.cacheTTL() <= 0 {
		return ""
	}
	generation, err := s.redis.Get(ctx, snapshotGenerationKey).Result()
	if errors.Is(err, redis.Nil) {
		generation = "0"
	} else if err != nil {
		s.log.Warn("ledger snapshot cache unavailable", zap.Error(err))
		return ""
	}

	raw, err := json.Marshal(filter)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return snapshotKeyPrefix + generation + ":" + hex.EncodeToString(sum[:8])
}

func (s *Service) readCache(ctx context.Context, key string) (ledgerdomain.Summary, bool) {
	if key == "" {
		return ledgerdomain.Summary{}, false
	}
	raw, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("ledger snapshot cache read failed", zap.Error(err))
		}
		return ledgerdomain.Summary{}, false
	}
	var summary ledgerdomain.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return ledgerdomain.Summary{}, false
	}
	return summary, true
}

func (s *Service) writeCache(ctx context.Context, key string, summary ledgerdomain.Summary) {
	if key == "" {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, raw, s.cacheTTL()).Err(); err != nil {
		s.log.Warn("ledger snapshot cache write failed", zap.Error(err))
	}
}

func (s *Service) cacheTTL() time.Duration {
	if s.tunables == nil {
		return config.DefaultReconcilerConfig().SnapshotCacheTTL
	}
	return s.tunables.Get().SnapshotCacheTTL
}
