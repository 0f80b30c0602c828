package repository

import (
	"context"

	ledgerdomain "github.com/smallbiznis/coursepay/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
	"gorm.io/gorm"
)

// V2Store reads payment_records through the payment repository.
type V2Store struct {
	db   *gorm.DB
	repo paymentdomain.Repository
}

func NewV2Store(db *gorm.DB, repo paymentdomain.Repository) *V2Store {
	return &V2Store{db: db, repo: repo}
}

func (s *V2Store) Name() ledgerdomain.StoreName { return ledgerdomain.StoreV2 }

func (s *V2Store) List(ctx context.Context, scope ledgerdomain.Scope) ([]ledgerdomain.Entry, error) {
	records, err := s.repo.List(ctx, s.db, paymentdomain.ListScope{
		UserID:   scope.UserID,
		CourseID: scope.CourseID,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]ledgerdomain.Entry, 0, len(records))
	for _, record := range records {
		entries = append(entries, ledgerdomain.Entry{
			NaturalKey: record.NaturalKey,
			Store:      ledgerdomain.StoreV2,
			UserID:     record.UserID,
			CourseID:   record.CourseID,
			Amount:     record.Amount,
			Currency:   record.Currency,
			Status:     record.Status,
			SourceKind: record.SourceKind,
			CreatedAt:  record.CreatedAt.UTC(),
			UpdatedAt:  record.UpdatedAt.UTC(),
			SettledAt:  record.SettledAt,
		})
	}
	return entries, nil
}
