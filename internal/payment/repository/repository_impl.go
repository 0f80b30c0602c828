package repository

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/coursepay/internal/payment/domain"
	"gorm.io/gorm"
)

const recordColumns = `natural_key, id, source_kind, source_id, reference, user_id, course_id,
	amount, currency, raw_status, status, flagged, payload, claim_state, claim_token,
	claimed_at, block_reason, last_checked_at, created_at, updated_at, settled_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, record *domain.PaymentRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_records (
			natural_key, id, source_kind, source_id, reference, user_id, course_id,
			amount, currency, raw_status, status, flagged, payload,
			created_at, updated_at, settled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		record.NaturalKey,
		record.ID,
		record.SourceKind,
		record.SourceID,
		record.Reference,
		record.UserID,
		record.CourseID,
		record.Amount,
		record.Currency,
		record.RawStatus,
		record.Status,
		record.Flagged,
		record.Payload,
		record.CreatedAt,
		record.UpdatedAt,
		record.SettledAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByNaturalKey(ctx context.Context, db *gorm.DB, naturalKey string) (*domain.PaymentRecord, error) {
	var item domain.PaymentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM payment_records
		 WHERE natural_key = ?
		 LIMIT 1`,
		naturalKey,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.NaturalKey == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindBySource(ctx context.Context, db *gorm.DB, kind domain.SourceKind, sourceID string) (*domain.PaymentRecord, error) {
	var item domain.PaymentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM payment_records
		 WHERE source_kind = ? AND source_id = ?
		 LIMIT 1`,
		kind,
		sourceID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.NaturalKey == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) TransitionTerminal(ctx context.Context, db *gorm.DB, naturalKey string, status domain.SettlementStatus, rawStatus string, at time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, domain.ErrInvalidDecision
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET status = ?, raw_status = ?, claim_state = ?, updated_at = ?
		 WHERE natural_key = ? AND status = ? AND claim_state = ?`,
		status,
		rawStatus,
		domain.ClaimDone,
		at,
		naturalKey,
		domain.StatusPending,
		domain.ClaimNone,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkFlagged(ctx context.Context, db *gorm.DB, naturalKey string, rawStatus string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET flagged = ?, raw_status = ?, updated_at = ?
		 WHERE natural_key = ? AND status = ?`,
		true,
		rawStatus,
		at,
		naturalKey,
		domain.StatusPending,
	).Error
}

// ListPendingGateway returns unclaimed pending gateway records that have been
// neither updated nor checked since olderThan, least recently checked first.
func (r *repo) ListPendingGateway(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]domain.PaymentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.PaymentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM payment_records
		 WHERE status = ? AND source_kind = ? AND claim_state = ? AND updated_at < ?
		   AND (last_checked_at IS NULL OR last_checked_at < ?)
		 ORDER BY COALESCE(last_checked_at, updated_at) ASC, natural_key ASC
		 LIMIT ?`,
		domain.StatusPending,
		domain.SourceGateway,
		domain.ClaimNone,
		olderThan,
		olderThan,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// MarkChecked records a revalidation attempt whatever its outcome.
func (r *repo) MarkChecked(ctx context.Context, db *gorm.DB, naturalKey string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET last_checked_at = ?
		 WHERE natural_key = ?`,
		at,
		naturalKey,
	).Error
}

// ListStaleClaims returns pending records whose settlement claim outlived its lease.
func (r *repo) ListStaleClaims(ctx context.Context, db *gorm.DB, claimedBefore time.Time, limit int) ([]domain.PaymentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.PaymentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM payment_records
		 WHERE status = ? AND claim_state = ? AND claimed_at < ?
		 ORDER BY claimed_at ASC, natural_key ASC
		 LIMIT ?`,
		domain.StatusPending,
		domain.ClaimInFlight,
		claimedBefore,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, scope domain.ListScope) ([]domain.PaymentRecord, error) {
	clauses := []string{"1 = 1"}
	args := []any{}
	if v := strings.TrimSpace(scope.UserID); v != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(scope.CourseID); v != "" {
		clauses = append(clauses, "course_id = ?")
		args = append(args, v)
	}
	if scope.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, scope.Status)
	}
	if scope.Source != "" {
		clauses = append(clauses, "source_kind = ?")
		args = append(args, scope.Source)
	}

	var items []domain.PaymentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM payment_records
		 WHERE `+strings.Join(clauses, " AND ")+`
		 ORDER BY created_at ASC, natural_key ASC`,
		args...,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
