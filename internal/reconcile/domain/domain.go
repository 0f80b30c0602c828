package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepay/internal/actor"
	entitlementdomain "github.com/smallbiznis/coursepay/internal/entitlement/domain"
	invoicedomain "github.com/smallbiznis/coursepay/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
	reviewdomain "github.com/smallbiznis/coursepay/internal/review/domain"
)

var (
	ErrSubmissionMismatch = errors.New("submission_mismatch")
	ErrNotOwner           = errors.New("payment_not_owner")
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
)

// Outcome describes what a single reconcile call did.
type Outcome string

const (
	OutcomeSettled        Outcome = "settled"
	OutcomeAlreadySettled Outcome = "already_settled"
	OutcomeInFlight       Outcome = "in_flight"
	OutcomePending        Outcome = "pending"
	OutcomeRejected       Outcome = "rejected"
	OutcomeFailed         Outcome = "failed"
	OutcomeBlocked        Outcome = "blocked"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ManualDecision is an operator's verdict on a manual submission.
type ManualDecision struct {
	SubmissionID string
	OperatorID   string
	Decision     Decision
}

type Result struct {
	NaturalKey  string
	Outcome     Outcome
	Status      paymentdomain.SettlementStatus
	Entitlement *entitlementdomain.Entitlement
	Invoice     *invoicedomain.Invoice
	Access      *entitlementdomain.Access
}

const (
	PublicPending   = "pending"
	PublicConfirmed = "confirmed"
)

// PublicState is the only status end users see.
func (r Result) PublicState() string {
	if r.Status == paymentdomain.StatusSettled {
		return PublicConfirmed
	}
	return PublicPending
}

type Service interface {
	HandleGatewayEvent(ctx context.Context, raw []byte, headers http.Header) (Result, error)
	ValidateGateway(ctx context.Context, transactionID string) (Result, error)
	SubmitManual(ctx context.Context, a actor.Actor, raw []byte) (Result, error)
	DecideManual(ctx context.Context, a actor.Actor, decision ManualDecision) (Result, error)
	ResolveReview(ctx context.Context, a actor.Actor, id snowflake.ID, note string) (*reviewdomain.Review, error)
	RevalidatePending(ctx context.Context) (int, error)
	RecoverStaleClaims(ctx context.Context) (int, error)
}
