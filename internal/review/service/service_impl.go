package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepay/internal/clock"
	obsmetrics "github.com/smallbiznis/coursepay/internal/observability/metrics"
	"github.com/smallbiznis/coursepay/internal/review/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("review.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

// Enqueue opens a review unless an unresolved one already exists for the same key and kind.
func (s *Service) Enqueue(ctx context.Context, naturalKey, kind, detail string) error {
	kind = strings.TrimSpace(kind)
	if !domain.ValidKind(kind) {
		return domain.ErrInvalidKind
	}

	res := s.db.WithContext(ctx).Exec(
		`INSERT INTO operator_reviews (id, natural_key, kind, detail, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		s.genID.Generate(),
		strings.TrimSpace(naturalKey),
		kind,
		strings.TrimSpace(detail),
		s.clock.Now().UTC(),
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Warn("operator review opened",
			zap.String("natural_key", naturalKey),
			zap.String("kind", kind),
		)
		s.obsMetrics.RecordOperatorReview(ctx, kind)
	}
	return nil
}

func (s *Service) ListOpen(ctx context.Context, limit int) ([]domain.Review, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var items []domain.Review
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, natural_key, kind, detail, created_at, resolved_at, resolved_by, resolution_note
		 FROM operator_reviews
		 WHERE resolved_at IS NULL
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Review, error) {
	var item domain.Review
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, natural_key, kind, detail, created_at, resolved_at, resolved_by, resolution_note
		 FROM operator_reviews
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, domain.ErrReviewNotFound
	}
	return &item, nil
}

func (s *Service) Resolve(ctx context.Context, id snowflake.ID, resolvedBy, note string) (*domain.Review, error) {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE operator_reviews
		 SET resolved_at = ?, resolved_by = ?, resolution_note = ?
		 WHERE id = ? AND resolved_at IS NULL`,
		s.clock.Now().UTC(),
		strings.TrimSpace(resolvedBy),
		strings.TrimSpace(note),
		id,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return item, domain.ErrReviewAlreadyResolved
	}
	return item, nil
}
