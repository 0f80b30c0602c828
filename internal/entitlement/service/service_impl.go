package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/coursepay/internal/cache"
	"github.com/smallbiznis/coursepay/internal/clock"
	"github.com/smallbiznis/coursepay/internal/config"
	"github.com/smallbiznis/coursepay/internal/entitlement/domain"
	obsmetrics "github.com/smallbiznis/coursepay/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const courseCacheTTL = 5 * time.Minute

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	baseURL    string
	courses    cache.Cache[string, course]
	obsMetrics *obsmetrics.Metrics
}

type course struct {
	ID    string
	Title string
	Slug  string
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("entitlement.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		baseURL:    strings.TrimRight(p.Cfg.PublicBaseURL, "/"),
		courses:    cache.NewTTLCache[string, course](),
		obsMetrics: p.ObsMetrics,
	}
}

// Grant unlocks the course for the record's user. Granting twice returns the
// existing entitlement with Created=false.
func (s *Service) Grant(ctx context.Context, record paymentdomain.PaymentRecord) (domain.GrantResult, error) {
	userID := strings.TrimSpace(record.UserID)
	courseID := strings.TrimSpace(record.CourseID)
	if userID == "" || courseID == "" || strings.TrimSpace(record.NaturalKey) == "" {
		return domain.GrantResult{}, domain.ErrInvalidGrant
	}

	exists, err := s.userExists(ctx, userID)
	if err != nil {
		return domain.GrantResult{}, err
	}
	if !exists {
		return domain.GrantResult{}, fmt.Errorf("%w: user %s", domain.ErrEntitlementTargetNotFound, userID)
	}
	c, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return domain.GrantResult{}, err
	}
	if c == nil {
		return domain.GrantResult{}, fmt.Errorf("%w: course %s", domain.ErrEntitlementTargetNotFound, courseID)
	}

	ent := domain.Entitlement{
		ID:               s.genID.Generate(),
		UserID:           userID,
		CourseID:         courseID,
		SourcePaymentKey: record.NaturalKey,
		GrantedAt:        s.clock.Now().UTC(),
	}
	res := s.db.WithContext(ctx).Exec(
		`INSERT INTO entitlements (id, user_id, course_id, source_payment_key, granted_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, course_id) DO NOTHING`,
		ent.ID,
		ent.UserID,
		ent.CourseID,
		ent.SourcePaymentKey,
		ent.GrantedAt,
	)
	if res.Error != nil {
		return domain.GrantResult{}, res.Error
	}
	created := res.RowsAffected > 0

	if !created {
		existing, err := s.find(ctx, userID, courseID)
		if err != nil {
			return domain.GrantResult{}, err
		}
		if existing == nil {
			return domain.GrantResult{}, fmt.Errorf("entitlement vanished for %s/%s", userID, courseID)
		}
		ent = *existing
		s.log.Info("entitlement already granted",
			zap.String("natural_key", record.NaturalKey),
			zap.String("source_payment_key", existing.SourcePaymentKey),
		)
	}

	s.obsMetrics.RecordEntitlementGranted(ctx, created)
	return domain.GrantResult{
		Entitlement: ent,
		Access:      s.access(*c),
		Created:     created,
	}, nil
}

func (s *Service) HasEntitlement(ctx context.Context, userID, courseID string) (bool, *domain.Access, error) {
	ent, err := s.find(ctx, strings.TrimSpace(userID), strings.TrimSpace(courseID))
	if err != nil {
		return false, nil, err
	}
	if ent == nil {
		return false, nil, nil
	}
	c, err := s.loadCourse(ctx, ent.CourseID)
	if err != nil {
		return false, nil, err
	}
	if c == nil {
		return true, nil, nil
	}
	access := s.access(*c)
	return true, &access, nil
}

func (s *Service) State(ctx context.Context, userID, courseID string) (domain.State, error) {
	ok, _, err := s.HasEntitlement(ctx, userID, courseID)
	if err != nil {
		return "", err
	}
	if ok {
		return domain.StateEntitled, nil
	}
	return domain.StateNone, nil
}

func (s *Service) find(ctx context.Context, userID, courseID string) (*domain.Entitlement, error) {
	var item domain.Entitlement
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, user_id, course_id, source_payment_key, granted_at
		 FROM entitlements
		 WHERE user_id = ? AND course_id = ?
		 LIMIT 1`,
		userID,
		courseID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (s *Service) userExists(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM users WHERE id = ?`, userID).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) loadCourse(ctx context.Context, courseID string) (*course, error) {
	if cached, ok := s.courses.Get(courseID); ok {
		return &cached, nil
	}
	var row course
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, title, slug FROM courses WHERE id = ? LIMIT 1`,
		courseID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	s.courses.Set(courseID, row, courseCacheTTL)
	return &row, nil
}

func (s *Service) access(c course) domain.Access {
	courseSlug := strings.TrimSpace(c.Slug)
	if courseSlug == "" {
		courseSlug = slug.Make(c.Title)
	}
	if courseSlug == "" {
		courseSlug = slug.Make(c.ID)
	}
	return domain.Access{
		CourseID:  c.ID,
		Title:     c.Title,
		AccessURL: fmt.Sprintf("%s/courses/%s/learn", s.baseURL, courseSlug),
	}
}
