package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepay/internal/actor"
	auditdomain "github.com/smallbiznis/coursepay/internal/audit/domain"
	"github.com/smallbiznis/coursepay/internal/authorization"
	"github.com/smallbiznis/coursepay/internal/clock"
	"github.com/smallbiznis/coursepay/internal/config"
	entitlementdomain "github.com/smallbiznis/coursepay/internal/entitlement/domain"
	"github.com/smallbiznis/coursepay/internal/gatewayclient"
	invoicedomain "github.com/smallbiznis/coursepay/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/coursepay/internal/ledger/domain"
	obscontext "github.com/smallbiznis/coursepay/internal/observability/context"
	"github.com/smallbiznis/coursepay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/coursepay/internal/observability/metrics"
	"github.com/smallbiznis/coursepay/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
	"github.com/smallbiznis/coursepay/internal/payment/status"
	"github.com/smallbiznis/coursepay/internal/reconcile/domain"
	reviewdomain "github.com/smallbiznis/coursepay/internal/review/domain"
	settlementdomain "github.com/smallbiznis/coursepay/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         paymentdomain.Repository
	Registry     *adapters.Registry
	Guard        settlementdomain.Guard
	Entitlements entitlementdomain.Service
	Invoices     invoicedomain.Service
	Reviews      reviewdomain.Service
	Authz        authorization.Service
	Tunables     *config.ReconcilerConfigHolder
	Ledger       ledgerdomain.Service  `optional:"true"`
	Gateway      *gatewayclient.Client `optional:"true"`
	Audit        auditdomain.Service   `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics   `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         paymentdomain.Repository
	registry     *adapters.Registry
	guard        settlementdomain.Guard
	entitlements entitlementdomain.Service
	invoices     invoicedomain.Service
	reviews      reviewdomain.Service
	authz        authorization.Service
	tunables     *config.ReconcilerConfigHolder
	ledger       ledgerdomain.Service
	gateway      *gatewayclient.Client
	audit        auditdomain.Service
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("reconcile.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		registry:     p.Registry,
		guard:        p.Guard,
		entitlements: p.Entitlements,
		invoices:     p.Invoices,
		reviews:      p.Reviews,
		authz:        p.Authz,
		tunables:     p.Tunables,
		ledger:       p.Ledger,
		gateway:      p.Gateway,
		audit:        p.Audit,
		obsMetrics:   p.ObsMetrics,
	}
}

// HandleGatewayEvent processes a webhook or redirect callback. Redelivery of
// the same transaction is safe.
func (s *Service) HandleGatewayEvent(ctx context.Context, raw []byte, headers http.Header) (domain.Result, error) {
	adapter, err := s.registry.Adapter(paymentdomain.SourceGateway)
	if err != nil {
		return domain.Result{}, err
	}
	if verifier, ok := adapter.(paymentdomain.Verifier); ok {
		if err := verifier.Verify(ctx, raw, headers); err != nil {
			s.logFor(ctx).Warn("gateway event rejected", zap.Error(err))
			return domain.Result{}, err
		}
	}
	return s.ingest(ctx, paymentdomain.SourceGateway, raw)
}

// ValidateGateway polls the gateway for a transaction. A slow or unreachable
// gateway leaves the record pending.
func (s *Service) ValidateGateway(ctx context.Context, transactionID string) (domain.Result, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return domain.Result{}, paymentdomain.Malformed("transactionId", "is required")
	}
	if !s.gateway.Configured() {
		return domain.Result{}, domain.ErrGatewayUnavailable
	}

	naturalKey := paymentdomain.GatewayNaturalKey(transactionID)
	ctx = obscontext.WithNaturalKey(ctx, naturalKey)

	res, err := s.gateway.Validate(ctx, transactionID)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrTransientIO) {
			s.obsMetrics.RecordSettlementOutcome(ctx, string(paymentdomain.SourceGateway), "deferred")
			s.logFor(ctx).Warn("gateway validation deferred", zap.Error(err))
			return s.currentState(ctx, naturalKey)
		}
		return domain.Result{}, err
	}
	return s.ingest(ctx, paymentdomain.SourceGateway, res.Payload)
}

// SubmitManual records a manual transfer claim. It never settles anything.
func (s *Service) SubmitManual(ctx context.Context, a actor.Actor, raw []byte) (domain.Result, error) {
	if !a.Valid() {
		return domain.Result{}, authorization.ErrInvalidActor
	}
	record, err := s.registry.Normalize(raw, paymentdomain.SourceManual)
	if err != nil {
		s.dropMalformed(ctx, paymentdomain.SourceManual, err)
		return domain.Result{}, err
	}
	if !a.IsStaff() && record.UserID != a.UserID {
		return domain.Result{}, domain.ErrNotOwner
	}
	if st, _ := status.Normalize(record.RawStatus, paymentdomain.SourceManual); st != paymentdomain.StatusPending {
		return domain.Result{}, paymentdomain.Malformed("status", "must be pending on submission")
	}

	return s.process(ctx, record)
}

// DecideManual applies an operator's approve or reject. A repeated approve
// observes the first one and has no further effect.
func (s *Service) DecideManual(ctx context.Context, a actor.Actor, decision domain.ManualDecision) (domain.Result, error) {
	if err := s.authz.Authorize(ctx, a, authorization.ObjectManualPayment, authorization.ActionManualPaymentDecide); err != nil {
		return domain.Result{}, err
	}

	submissionID := strings.TrimSpace(decision.SubmissionID)
	if submissionID == "" {
		return domain.Result{}, paymentdomain.ErrSubmissionNotFound
	}
	operatorID := strings.TrimSpace(decision.OperatorID)
	if operatorID == "" {
		operatorID = a.UserID
	}

	record, err := s.repo.FindBySource(ctx, s.db, paymentdomain.SourceManual, submissionID)
	if err != nil {
		return domain.Result{}, err
	}
	if record == nil {
		return domain.Result{}, paymentdomain.ErrSubmissionNotFound
	}

	ctx = obscontext.WithNaturalKey(ctx, record.NaturalKey)
	log := s.logFor(ctx).With(zap.String("operator_id", operatorID), zap.String("decision", string(decision.Decision)))

	var res domain.Result
	verdict := domain.Decision(strings.ToLower(strings.TrimSpace(string(decision.Decision))))
	switch verdict {
	case domain.DecisionApprove:
		log.Info("manual payment approved")
		res, err = s.settle(ctx, *record, "approved")
	case domain.DecisionReject:
		log.Info("manual payment rejected")
		res, err = s.reject(ctx, *record, paymentdomain.StatusRejected, "rejected")
	default:
		return domain.Result{}, paymentdomain.ErrInvalidDecision
	}
	if err != nil {
		return res, err
	}

	s.auditLog(ctx, a, auditdomain.ActionManualPaymentDecided, auditdomain.TargetPayment, submissionID, map[string]any{
		"decision":    string(verdict),
		"operator_id": operatorID,
		"reference":   record.Reference,
		"outcome":     string(res.Outcome),
	})
	return res, nil
}

// ResolveReview closes an operator review and frees a blocked settlement so
// the next event for it can retry.
func (s *Service) ResolveReview(ctx context.Context, a actor.Actor, id snowflake.ID, note string) (*reviewdomain.Review, error) {
	if err := s.authz.Authorize(ctx, a, authorization.ObjectReview, authorization.ActionReviewResolve); err != nil {
		return nil, err
	}
	review, err := s.reviews.Resolve(ctx, id, a.UserID, note)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Release(ctx, review.NaturalKey); err != nil && !errors.Is(err, settlementdomain.ErrNotBlocked) {
		return nil, err
	}

	s.auditLog(ctx, a, auditdomain.ActionReviewResolved, auditdomain.TargetReview, review.ID.String(), map[string]any{
		"kind": review.Kind,
		"note": review.ResolutionNote,
	})
	return review, nil
}

func (s *Service) auditLog(ctx context.Context, a actor.Actor, action, targetType, targetID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.AuditLog(ctx, a, action, targetType, targetID, metadata)
}

// RevalidatePending polls the gateway for stale pending gateway payments.
func (s *Service) RevalidatePending(ctx context.Context) (int, error) {
	if !s.gateway.Configured() {
		return 0, nil
	}
	tunables := s.currentTunables()
	cutoff := s.clock.Now().UTC().Add(-tunables.RevalidateAfter)

	records, err := s.repo.ListPendingGateway(ctx, s.db, cutoff, tunables.RevalidateBatch)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, record := range records {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if err := s.repo.MarkChecked(ctx, s.db, record.NaturalKey, s.clock.Now().UTC()); err != nil {
			s.log.Warn("mark revalidation attempt failed",
				zap.String("natural_key", record.NaturalKey),
				zap.Error(err),
			)
		}
		if _, err := s.ValidateGateway(ctx, record.SourceID); err != nil {
			s.log.Warn("revalidate pending payment failed",
				zap.String("natural_key", record.NaturalKey),
				zap.Error(err),
			)
			continue
		}
		processed++
	}
	return processed, nil
}

// RecoverStaleClaims finishes settlements whose claimant died before
// completing. Only a settled event or an approval ever takes a claim, so the
// record is settled again under a fresh claim.
func (s *Service) RecoverStaleClaims(ctx context.Context) (int, error) {
	tunables := s.currentTunables()
	cutoff := s.clock.Now().UTC().Add(-tunables.ClaimLease)

	records, err := s.repo.ListStaleClaims(ctx, s.db, cutoff, tunables.RevalidateBatch)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, record := range records {
		if ctx.Err() != nil {
			return recovered, ctx.Err()
		}
		recordCtx := obscontext.WithNaturalKey(ctx, record.NaturalKey)
		res, err := s.settle(recordCtx, record, settledRawStatus(record))
		if err != nil {
			s.logFor(recordCtx).Warn("recover stale settlement claim failed", zap.Error(err))
			continue
		}
		if res.Outcome == domain.OutcomeSettled || res.Outcome == domain.OutcomeBlocked {
			recovered++
		}
	}
	return recovered, nil
}

func settledRawStatus(record paymentdomain.PaymentRecord) string {
	if st, warning := status.Normalize(record.RawStatus, record.SourceKind); warning == nil && st == paymentdomain.StatusSettled {
		return record.RawStatus
	}
	if record.SourceKind == paymentdomain.SourceManual {
		return "approved"
	}
	return "valid"
}

func (s *Service) ingest(ctx context.Context, kind paymentdomain.SourceKind, raw []byte) (domain.Result, error) {
	record, err := s.registry.Normalize(raw, kind)
	if err != nil {
		s.dropMalformed(ctx, kind, err)
		return domain.Result{}, err
	}
	return s.process(ctx, record)
}

// process stores the record if new and moves it as far as its normalized
// status allows.
func (s *Service) process(ctx context.Context, record paymentdomain.PaymentRecord) (domain.Result, error) {
	ctx = obscontext.WithNaturalKey(ctx, record.NaturalKey)
	log := s.logFor(ctx)

	st, warning := status.Normalize(record.RawStatus, record.SourceKind)
	s.obsMetrics.RecordPaymentEvent(ctx, string(record.SourceKind), string(st))

	stored, err := s.store(ctx, record)
	if err != nil {
		return domain.Result{}, err
	}
	if stored.Amount != record.Amount || stored.UserID != record.UserID || stored.CourseID != record.CourseID {
		log.Warn("payment event disagrees with stored record",
			zap.Int64("event_amount", record.Amount),
			zap.Int64("stored_amount", stored.Amount),
		)
	}

	if warning != nil {
		s.flagUnknown(ctx, *stored, *warning)
		return s.resultFor(ctx, *stored, domain.OutcomePending), nil
	}

	switch st {
	case paymentdomain.StatusSettled:
		return s.settle(ctx, *stored, record.RawStatus)
	case paymentdomain.StatusRejected, paymentdomain.StatusFailed:
		return s.reject(ctx, *stored, st, record.RawStatus)
	default:
		if stored.Status.IsTerminal() {
			return s.resultFor(ctx, *stored, domain.OutcomeAlreadySettled), nil
		}
		return s.resultFor(ctx, *stored, domain.OutcomePending), nil
	}
}

func (s *Service) store(ctx context.Context, record paymentdomain.PaymentRecord) (*paymentdomain.PaymentRecord, error) {
	now := s.clock.Now().UTC()
	record.ID = s.genID.Generate()
	record.Status = paymentdomain.StatusPending
	record.CreatedAt = now
	record.UpdatedAt = now
	record.SettledAt = nil

	inserted, err := s.repo.InsertIfAbsent(ctx, s.db, &record)
	if err != nil {
		return nil, err
	}
	if inserted {
		s.invalidateLedger(ctx)
	}
	stored, err := s.repo.FindByNaturalKey(ctx, s.db, record.NaturalKey)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		// The source id is already bound to a different natural key.
		return nil, fmt.Errorf("%w: %s %s", domain.ErrSubmissionMismatch, record.SourceKind, record.SourceID)
	}
	return stored, nil
}

func (s *Service) settle(ctx context.Context, record paymentdomain.PaymentRecord, rawStatus string) (domain.Result, error) {
	source := string(record.SourceKind)
	claim, err := s.guard.TryBeginSettlement(ctx, record.NaturalKey)
	if err != nil {
		return domain.Result{}, err
	}
	switch claim.Outcome {
	case settlementdomain.AlreadySettled:
		s.obsMetrics.RecordSettlementOutcome(ctx, source, string(domain.OutcomeAlreadySettled))
		record.Status = claim.Status
		return s.resultFor(ctx, record, domain.OutcomeAlreadySettled), nil
	case settlementdomain.InFlight:
		s.obsMetrics.RecordSettlementOutcome(ctx, source, string(domain.OutcomeInFlight))
		return domain.Result{NaturalKey: record.NaturalKey, Outcome: domain.OutcomeInFlight, Status: paymentdomain.StatusPending}, nil
	}

	log := s.logFor(ctx)
	settledAt := s.clock.Now().UTC()
	record.SettledAt = &settledAt

	grant, err := s.entitlements.Grant(ctx, record)
	if err != nil {
		kind := settlementdomain.ReviewSettlementFailure
		if errors.Is(err, entitlementdomain.ErrEntitlementTargetNotFound) {
			kind = settlementdomain.ReviewEntitlementTargetMissing
		}
		return s.block(ctx, record, claim.Token, kind, err)
	}

	invoice, err := s.invoices.Issue(ctx, record)
	if err != nil {
		kind := settlementdomain.ReviewSettlementFailure
		if errors.Is(err, invoicedomain.ErrInvoiceNumberCollision) {
			kind = settlementdomain.ReviewInvoiceCollision
		}
		return s.block(ctx, record, claim.Token, kind, err)
	}

	if err := s.guard.Complete(ctx, record.NaturalKey, claim.Token, rawStatus, settledAt); err != nil {
		if errors.Is(err, settlementdomain.ErrClaimLost) {
			log.Warn("settlement claim expired before completion")
			return domain.Result{NaturalKey: record.NaturalKey, Outcome: domain.OutcomeInFlight, Status: paymentdomain.StatusPending}, nil
		}
		return domain.Result{}, err
	}

	s.invalidateLedger(ctx)
	s.obsMetrics.RecordSettlementOutcome(ctx, source, string(domain.OutcomeSettled))
	log.Info("payment settled",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Bool("entitlement_created", grant.Created),
	)

	access := grant.Access
	return domain.Result{
		NaturalKey:  record.NaturalKey,
		Outcome:     domain.OutcomeSettled,
		Status:      paymentdomain.StatusSettled,
		Entitlement: &grant.Entitlement,
		Invoice:     &invoice,
		Access:      &access,
	}, nil
}

// block parks a claimed settlement for an operator. Money has moved at this
// point, so the caller sees pending rather than an error.
func (s *Service) block(ctx context.Context, record paymentdomain.PaymentRecord, token, kind string, cause error) (domain.Result, error) {
	s.logFor(ctx).Error("settlement needs operator review",
		zap.String("kind", kind),
		zap.Error(cause),
	)
	if err := s.guard.Block(ctx, record.NaturalKey, token, kind, cause.Error()); err != nil {
		return domain.Result{}, err
	}
	s.obsMetrics.RecordSettlementOutcome(ctx, string(record.SourceKind), string(domain.OutcomeBlocked))
	s.obsMetrics.RecordOperatorReview(ctx, kind)
	return domain.Result{NaturalKey: record.NaturalKey, Outcome: domain.OutcomeBlocked, Status: paymentdomain.StatusPending}, nil
}

func (s *Service) reject(ctx context.Context, record paymentdomain.PaymentRecord, st paymentdomain.SettlementStatus, rawStatus string) (domain.Result, error) {
	claim, err := s.guard.Reject(ctx, record.NaturalKey, st, rawStatus)
	if err != nil {
		return domain.Result{}, err
	}

	source := string(record.SourceKind)
	switch claim.Outcome {
	case settlementdomain.Acquired:
		outcome := domain.OutcomeFailed
		if st == paymentdomain.StatusRejected {
			outcome = domain.OutcomeRejected
		}
		s.obsMetrics.RecordSettlementOutcome(ctx, source, string(outcome))
		s.invalidateLedger(ctx)
		return domain.Result{NaturalKey: record.NaturalKey, Outcome: outcome, Status: st}, nil
	case settlementdomain.AlreadySettled:
		s.obsMetrics.RecordSettlementOutcome(ctx, source, string(domain.OutcomeAlreadySettled))
		record.Status = claim.Status
		return s.resultFor(ctx, record, domain.OutcomeAlreadySettled), nil
	default:
		s.obsMetrics.RecordSettlementOutcome(ctx, source, string(domain.OutcomeInFlight))
		return domain.Result{NaturalKey: record.NaturalKey, Outcome: domain.OutcomeInFlight, Status: paymentdomain.StatusPending}, nil
	}
}

func (s *Service) flagUnknown(ctx context.Context, record paymentdomain.PaymentRecord, warning paymentdomain.UnknownStatusWarning) {
	log := s.logFor(ctx)
	log.Warn("unknown payment status", zap.String("raw_status", warning.RawStatus), zap.String("source", warning.Source))
	s.obsMetrics.RecordUnknownStatus(ctx, warning.Source)

	if record.Status.IsTerminal() {
		return
	}
	if err := s.repo.MarkFlagged(ctx, s.db, record.NaturalKey, warning.RawStatus, s.clock.Now().UTC()); err != nil {
		log.Warn("flag payment record failed", zap.Error(err))
	} else {
		s.invalidateLedger(ctx)
	}
	if err := s.reviews.Enqueue(ctx, record.NaturalKey, reviewdomain.KindUnknownStatus, warning.String()); err != nil {
		log.Warn("enqueue unknown status review failed", zap.Error(err))
		return
	}
	s.obsMetrics.RecordOperatorReview(ctx, reviewdomain.KindUnknownStatus)
}

// invalidateLedger drops cached snapshots after any change to payment_records.
func (s *Service) invalidateLedger(ctx context.Context) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Invalidate(ctx); err != nil {
		s.logFor(ctx).Warn("ledger snapshot invalidation failed", zap.Error(err))
	}
}

func (s *Service) dropMalformed(ctx context.Context, kind paymentdomain.SourceKind, err error) {
	s.obsMetrics.RecordSettlementOutcome(ctx, string(kind), "dropped")
	s.logFor(ctx).Warn("payment event dropped", zap.String("source", string(kind)), zap.Error(err))
}

// resultFor fills in what the caller is allowed to see for an existing record.
func (s *Service) resultFor(ctx context.Context, record paymentdomain.PaymentRecord, outcome domain.Outcome) domain.Result {
	result := domain.Result{NaturalKey: record.NaturalKey, Outcome: outcome, Status: record.Status}
	if record.Status != paymentdomain.StatusSettled {
		return result
	}
	if invoice, err := s.invoices.GetByPaymentKey(ctx, record.NaturalKey); err == nil {
		result.Invoice = &invoice
	}
	if ok, access, err := s.entitlements.HasEntitlement(ctx, record.UserID, record.CourseID); err == nil && ok {
		result.Access = access
	}
	return result
}

func (s *Service) currentState(ctx context.Context, naturalKey string) (domain.Result, error) {
	record, err := s.repo.FindByNaturalKey(ctx, s.db, naturalKey)
	if err != nil {
		return domain.Result{}, err
	}
	if record == nil {
		return domain.Result{NaturalKey: naturalKey, Outcome: domain.OutcomePending, Status: paymentdomain.StatusPending}, nil
	}
	outcome := domain.OutcomePending
	if record.Status.IsTerminal() {
		outcome = domain.OutcomeAlreadySettled
	}
	return s.resultFor(ctx, *record, outcome), nil
}

func (s *Service) currentTunables() config.ReconcilerConfig {
	if s.tunables == nil {
		return config.DefaultReconcilerConfig()
	}
	return s.tunables.Get()
}

func (s *Service) logFor(ctx context.Context) *zap.Logger {
	return logger.WithContext(ctx, s.log)
}
