package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/coursepay/internal/actor"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectManualPayment = "manual_payment"
	ObjectInvoice       = "invoice"
	ObjectLedger        = "ledger"
	ObjectReview        = "review"
	ObjectPayment       = "payment"
	ObjectAudit         = "audit"
)

const (
	ActionManualPaymentDecide = "manual_payment.decide"
	ActionInvoiceVoid         = "invoice.void"
	ActionInvoiceViewAll      = "invoice.view_all"
	ActionLedgerViewAll       = "ledger.view_all"
	ActionReviewView          = "review.view"
	ActionReviewResolve       = "review.resolve"
	ActionPaymentRevalidate   = "payment.revalidate"
	ActionAuditView           = "audit.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

// Authorize checks the actor's role against the seeded policy. The role comes
// from the signed credential; nothing here looks it up again.
func (s *ServiceImpl) Authorize(ctx context.Context, a actor.Actor, object string, action string) error {
	if !a.Valid() {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(roleSubject(a.Role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("actor_id", a.UserID),
			zap.String("role", string(a.Role)),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}

	if shouldLogGrant(action) {
		s.log.Info("authorization granted",
			zap.String("actor_id", a.UserID),
			zap.String("role", string(a.Role)),
			zap.String("action", action),
		)
	}
	return nil
}

func roleSubject(role actor.Role) string {
	return fmt.Sprintf("role:%s", role)
}

func shouldLogGrant(action string) bool {
	switch action {
	case ActionInvoiceVoid, ActionReviewResolve:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Operator permissions
		{roleSubject(actor.RoleOperator), ObjectManualPayment, ActionManualPaymentDecide},
		{roleSubject(actor.RoleOperator), ObjectReview, ActionReviewView},
		{roleSubject(actor.RoleOperator), ObjectReview, ActionReviewResolve},
		{roleSubject(actor.RoleOperator), ObjectLedger, ActionLedgerViewAll},
		{roleSubject(actor.RoleOperator), ObjectInvoice, ActionInvoiceViewAll},

		// Admin permissions
		{roleSubject(actor.RoleAdmin), ObjectInvoice, ActionInvoiceVoid},
		{roleSubject(actor.RoleAdmin), ObjectPayment, ActionPaymentRevalidate},
		{roleSubject(actor.RoleAdmin), ObjectAudit, ActionAuditView},

		// System permissions (background jobs)
		{roleSubject(actor.RoleSystem), ObjectPayment, ActionPaymentRevalidate},
		{roleSubject(actor.RoleSystem), ObjectLedger, ActionLedgerViewAll},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	inheritance := [][]string{
		{roleSubject(actor.RoleAdmin), roleSubject(actor.RoleOperator)},
		{roleSubject(actor.RoleSuperAdmin), roleSubject(actor.RoleAdmin)},
	}
	for _, rule := range inheritance {
		if _, err := enforcer.AddGroupingPolicy(rule); err != nil {
			return err
		}
	}
	return nil
}
