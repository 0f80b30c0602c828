package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository persists payment records in the v2 store.
type Repository interface {
	// InsertIfAbsent stores the record unless its natural key already exists.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, record *PaymentRecord) (bool, error)
	FindByNaturalKey(ctx context.Context, db *gorm.DB, naturalKey string) (*PaymentRecord, error)
	FindBySource(ctx context.Context, db *gorm.DB, kind SourceKind, sourceID string) (*PaymentRecord, error)
	// TransitionTerminal moves an unclaimed pending record to a terminal status.
	TransitionTerminal(ctx context.Context, db *gorm.DB, naturalKey string, status SettlementStatus, rawStatus string, at time.Time) (bool, error)
	MarkFlagged(ctx context.Context, db *gorm.DB, naturalKey string, rawStatus string, at time.Time) error
	ListPendingGateway(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]PaymentRecord, error)
	// MarkChecked stamps a revalidation attempt so the sweep rotates through the backlog.
	MarkChecked(ctx context.Context, db *gorm.DB, naturalKey string, at time.Time) error
	ListStaleClaims(ctx context.Context, db *gorm.DB, claimedBefore time.Time, limit int) ([]PaymentRecord, error)
	List(ctx context.Context, db *gorm.DB, scope ListScope) ([]PaymentRecord, error)
}
