package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/coursepay/internal/clock"
	"github.com/smallbiznis/coursepay/internal/config"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
	"github.com/smallbiznis/coursepay/internal/settlement/domain"
	"github.com/smallbiznis/coursepay/internal/settlement/lock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const fastGateTTL = 10 * time.Second

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     paymentdomain.Repository
	Reviews  domain.ReviewQueue
	Tunables *config.ReconcilerConfigHolder
	Locker   *lock.Locker `optional:"true"`
}

type Guard struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     paymentdomain.Repository
	reviews  domain.ReviewQueue
	tunables *config.ReconcilerConfigHolder
	locker   *lock.Locker
}

func NewGuard(p Params) domain.Guard {
	return &Guard{
		db:       p.DB,
		log:      p.Log.Named("settlement.guard"),
		clock:    p.Clock,
		repo:     p.Repo,
		reviews:  p.Reviews,
		tunables: p.Tunables,
		locker:   p.Locker,
	}
}

func (g *Guard) TryBeginSettlement(ctx context.Context, naturalKey string) (domain.Claim, error) {
	naturalKey = strings.TrimSpace(naturalKey)
	if naturalKey == "" {
		return domain.Claim{}, domain.ErrEmptyKey
	}

	if g.locker != nil {
		lockKey := lock.SettlementKey(naturalKey)
		lockToken, ok, err := g.locker.TryLock(ctx, lockKey, fastGateTTL)
		switch {
		case err != nil:
			g.log.Warn("settlement fast gate unavailable", zap.String("natural_key", naturalKey), zap.Error(err))
		case !ok:
			return domain.Claim{NaturalKey: naturalKey, Outcome: domain.InFlight, Status: paymentdomain.StatusPending}, nil
		default:
			defer func() {
				if err := g.locker.Release(context.WithoutCancel(ctx), lockKey, lockToken); err != nil {
					g.log.Warn("release settlement fast gate", zap.String("natural_key", naturalKey), zap.Error(err))
				}
			}()
		}
	}

	now := g.clock.Now().UTC()
	cutoff := now.Add(-g.claimLease())
	token := ulid.Make().String()

	res := g.db.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET claim_state = ?, claim_token = ?, claimed_at = ?, updated_at = ?
		 WHERE natural_key = ?
		   AND status = ?
		   AND (claim_state = ? OR (claim_state = ? AND claimed_at < ?))`,
		paymentdomain.ClaimInFlight,
		token,
		now,
		now,
		naturalKey,
		paymentdomain.StatusPending,
		paymentdomain.ClaimNone,
		paymentdomain.ClaimInFlight,
		cutoff,
	)
	if res.Error != nil {
		return domain.Claim{}, res.Error
	}
	if res.RowsAffected == 1 {
		return domain.Claim{
			NaturalKey: naturalKey,
			Outcome:    domain.Acquired,
			Token:      token,
			Status:     paymentdomain.StatusPending,
		}, nil
	}

	return g.observe(ctx, naturalKey)
}

func (g *Guard) observe(ctx context.Context, naturalKey string) (domain.Claim, error) {
	record, err := g.repo.FindByNaturalKey(ctx, g.db, naturalKey)
	if err != nil {
		return domain.Claim{}, err
	}
	if record == nil {
		return domain.Claim{}, paymentdomain.ErrRecordNotFound
	}
	if record.Status.IsTerminal() {
		return domain.Claim{NaturalKey: naturalKey, Outcome: domain.AlreadySettled, Status: record.Status}, nil
	}
	return domain.Claim{NaturalKey: naturalKey, Outcome: domain.InFlight, Status: record.Status}, nil
}

func (g *Guard) Complete(ctx context.Context, naturalKey, token, rawStatus string, settledAt time.Time) error {
	settledAt = settledAt.UTC()
	res := g.db.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET status = ?, raw_status = ?, claim_state = ?, settled_at = ?, updated_at = ?
		 WHERE natural_key = ? AND claim_token = ? AND claim_state = ? AND status = ?`,
		paymentdomain.StatusSettled,
		rawStatus,
		paymentdomain.ClaimDone,
		settledAt,
		settledAt,
		naturalKey,
		token,
		paymentdomain.ClaimInFlight,
		paymentdomain.StatusPending,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.ErrClaimLost
	}
	return nil
}

func (g *Guard) Block(ctx context.Context, naturalKey, token, kind, reason string) error {
	res := g.db.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET claim_state = ?, block_reason = ?, updated_at = ?
		 WHERE natural_key = ? AND claim_token = ? AND claim_state = ?`,
		paymentdomain.ClaimBlocked,
		reason,
		g.clock.Now().UTC(),
		naturalKey,
		token,
		paymentdomain.ClaimInFlight,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.ErrClaimLost
	}

	g.log.Error("settlement blocked",
		zap.String("natural_key", naturalKey),
		zap.String("kind", kind),
		zap.String("reason", reason),
	)
	if g.reviews == nil {
		return nil
	}
	return g.reviews.Enqueue(ctx, naturalKey, kind, reason)
}

func (g *Guard) Reject(ctx context.Context, naturalKey string, status paymentdomain.SettlementStatus, rawStatus string) (domain.Claim, error) {
	if status != paymentdomain.StatusRejected && status != paymentdomain.StatusFailed {
		return domain.Claim{}, domain.ErrInvalidStatus
	}

	moved, err := g.repo.TransitionTerminal(ctx, g.db, naturalKey, status, rawStatus, g.clock.Now().UTC())
	if err != nil {
		if errors.Is(err, paymentdomain.ErrInvalidDecision) {
			return domain.Claim{}, domain.ErrInvalidStatus
		}
		return domain.Claim{}, err
	}
	if moved {
		return domain.Claim{NaturalKey: naturalKey, Outcome: domain.Acquired, Status: status}, nil
	}
	return g.observe(ctx, naturalKey)
}

// Release clears a blocked claim so the record can be settled again.
func (g *Guard) Release(ctx context.Context, naturalKey string) error {
	res := g.db.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET claim_state = ?, claim_token = ?, claimed_at = NULL, block_reason = ?, updated_at = ?
		 WHERE natural_key = ? AND status = ? AND claim_state = ?`,
		paymentdomain.ClaimNone,
		"",
		"",
		g.clock.Now().UTC(),
		naturalKey,
		paymentdomain.StatusPending,
		paymentdomain.ClaimBlocked,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.ErrNotBlocked
	}
	return nil
}

func (g *Guard) claimLease() time.Duration {
	if g.tunables == nil {
		return config.DefaultReconcilerConfig().ClaimLease
	}
	return g.tunables.Get().ClaimLease
}
