package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
)

var (
	ErrEntitlementTargetNotFound = errors.New("entitlement_target_not_found")
	ErrInvalidGrant              = errors.New("entitlement_invalid_grant")
)

type State string

const (
	StateNone     State = "none"
	StateEntitled State = "entitled"
)

// Entitlement grants a user access to a course. At most one exists per (user, course).
type Entitlement struct {
	ID               snowflake.ID `json:"id" gorm:"column:id"`
	UserID           string       `json:"user_id" gorm:"column:user_id"`
	CourseID         string       `json:"course_id" gorm:"column:course_id"`
	SourcePaymentKey string       `json:"-" gorm:"column:source_payment_key"`
	GrantedAt        time.Time    `json:"granted_at" gorm:"column:granted_at"`
}

func (Entitlement) TableName() string { return "entitlements" }

// Access is what the learner receives once a course is unlocked.
type Access struct {
	CourseID  string `json:"course_id"`
	Title     string `json:"title"`
	AccessURL string `json:"access_url"`
}

type GrantResult struct {
	Entitlement Entitlement
	Access      Access
	Created     bool
}

type Service interface {
	Grant(ctx context.Context, record paymentdomain.PaymentRecord) (GrantResult, error)
	HasEntitlement(ctx context.Context, userID, courseID string) (bool, *Access, error)
	State(ctx context.Context, userID, courseID string) (State, error)
}
