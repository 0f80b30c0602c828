package domain

import (
	"context"
	"errors"
	"time"

	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
)

var (
	ErrClaimLost     = errors.New("settlement_claim_lost")
	ErrNotBlocked    = errors.New("settlement_not_blocked")
	ErrEmptyKey      = errors.New("settlement_key_empty")
	ErrInvalidStatus = errors.New("settlement_invalid_status")
)

// Outcome is the result of trying to begin a settlement.
type Outcome string

const (
	Acquired       Outcome = "acquired"
	AlreadySettled Outcome = "already_settled"
	InFlight       Outcome = "in_flight"
)

// Claim is handed to the winner of a settlement race. Token scopes the
// follow-up Complete or Block call to that winner.
type Claim struct {
	NaturalKey string
	Outcome    Outcome
	Token      string
	Status     paymentdomain.SettlementStatus
}

// Review kinds raised by the settlement path.
const (
	ReviewUnknownStatus            = "unknown_status"
	ReviewEntitlementTargetMissing = "entitlement_target_missing"
	ReviewInvoiceCollision         = "invoice_collision"
	ReviewSettlementFailure        = "settlement_failure"
)

// ReviewQueue receives records that need a human decision.
type ReviewQueue interface {
	Enqueue(ctx context.Context, naturalKey, kind, detail string) error
}

// Guard ensures the side effects of settling a natural key run at most once.
type Guard interface {
	TryBeginSettlement(ctx context.Context, naturalKey string) (Claim, error)
	Complete(ctx context.Context, naturalKey, token, rawStatus string, settledAt time.Time) error
	Block(ctx context.Context, naturalKey, token, kind, reason string) error
	Reject(ctx context.Context, naturalKey string, status paymentdomain.SettlementStatus, rawStatus string) (Claim, error)
	Release(ctx context.Context, naturalKey string) error
}
