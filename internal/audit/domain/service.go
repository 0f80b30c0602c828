package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepay/internal/actor"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionManualPaymentDecided = "manual_payment.decided"
	ActionInvoiceVoided        = "invoice.voided"
	ActionReviewResolved       = "review.resolved"
)

const (
	TargetPayment = "payment"
	TargetInvoice = "invoice"
	TargetReview  = "review"
)

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidActor     = errors.New("invalid_actor")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)

// AuditLog records one privileged operator action.
type AuditLog struct {
	ID         snowflake.ID      `json:"id" gorm:"column:id"`
	ActorRole  string            `json:"actor_role" gorm:"column:actor_role"`
	ActorID    string            `json:"actor_id" gorm:"column:actor_id"`
	Action     string            `json:"action" gorm:"column:action"`
	TargetType string            `json:"target_type" gorm:"column:target_type"`
	TargetID   string            `json:"target_id" gorm:"column:target_id"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty" gorm:"column:metadata"`
	RequestID  string            `json:"request_id,omitempty" gorm:"column:request_id"`
	CreatedAt  time.Time         `json:"created_at" gorm:"column:created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

type Service interface {
	AuditLog(ctx context.Context, a actor.Actor, action, targetType, targetID string, metadata map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]AuditLog, error)
}
