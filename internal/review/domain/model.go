package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrReviewNotFound        = errors.New("review_not_found")
	ErrReviewAlreadyResolved = errors.New("review_already_resolved")
	ErrInvalidKind           = errors.New("review_invalid_kind")
)

const (
	KindUnknownStatus            = "unknown_status"
	KindEntitlementTargetMissing = "entitlement_target_missing"
	KindInvoiceCollision         = "invoice_collision"
	KindSettlementFailure        = "settlement_failure"
)

func ValidKind(kind string) bool {
	switch kind {
	case KindUnknownStatus, KindEntitlementTargetMissing, KindInvoiceCollision, KindSettlementFailure:
		return true
	default:
		return false
	}
}

// Review is one item in the operator queue.
type Review struct {
	ID             snowflake.ID `json:"id" gorm:"column:id"`
	NaturalKey     string       `json:"natural_key" gorm:"column:natural_key"`
	Kind           string       `json:"kind" gorm:"column:kind"`
	Detail         string       `json:"detail" gorm:"column:detail"`
	CreatedAt      time.Time    `json:"created_at" gorm:"column:created_at"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty" gorm:"column:resolved_at"`
	ResolvedBy     string       `json:"resolved_by,omitempty" gorm:"column:resolved_by"`
	ResolutionNote string       `json:"resolution_note,omitempty" gorm:"column:resolution_note"`
}

func (Review) TableName() string { return "operator_reviews" }

type Service interface {
	Enqueue(ctx context.Context, naturalKey, kind, detail string) error
	ListOpen(ctx context.Context, limit int) ([]Review, error)
	Get(ctx context.Context, id snowflake.ID) (*Review, error)
	Resolve(ctx context.Context, id snowflake.ID, resolvedBy, note string) (*Review, error)
}
