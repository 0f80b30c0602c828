package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/coursepay/internal/actor"
	"github.com/smallbiznis/coursepay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer(testutil.NewDB(t))
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeRoleHierarchy(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	student := actor.Actor{UserID: "u-1", Role: actor.RoleStudent}
	operator := actor.Actor{UserID: "op-1", Role: actor.RoleOperator}
	admin := actor.Actor{UserID: "ad-1", Role: actor.RoleAdmin}
	super := actor.Actor{UserID: "su-1", Role: actor.RoleSuperAdmin}

	assert.ErrorIs(t, svc.Authorize(ctx, student, ObjectManualPayment, ActionManualPaymentDecide), ErrForbidden)
	assert.NoError(t, svc.Authorize(ctx, operator, ObjectManualPayment, ActionManualPaymentDecide))
	assert.ErrorIs(t, svc.Authorize(ctx, operator, ObjectInvoice, ActionInvoiceVoid), ErrForbidden)

	assert.NoError(t, svc.Authorize(ctx, admin, ObjectInvoice, ActionInvoiceVoid))
	assert.NoError(t, svc.Authorize(ctx, admin, ObjectReview, ActionReviewResolve))
	assert.NoError(t, svc.Authorize(ctx, admin, ObjectAudit, ActionAuditView))
	assert.ErrorIs(t, svc.Authorize(ctx, operator, ObjectAudit, ActionAuditView), ErrForbidden)

	assert.NoError(t, svc.Authorize(ctx, super, ObjectInvoice, ActionInvoiceVoid))
	assert.NoError(t, svc.Authorize(ctx, super, ObjectLedger, ActionLedgerViewAll))
}

func TestAuthorizeRejectsInvalidInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, actor.Actor{Role: actor.RoleAdmin}, ObjectInvoice, ActionInvoiceVoid), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, actor.Actor{UserID: "x", Role: "root"}, ObjectInvoice, ActionInvoiceVoid), ErrInvalidActor)

	admin := actor.Actor{UserID: "ad-1", Role: actor.RoleAdmin}
	assert.ErrorIs(t, svc.Authorize(ctx, admin, "", ActionInvoiceVoid), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, admin, ObjectInvoice, " "), ErrInvalidAction)
}

func TestSystemActorRevalidates(t *testing.T) {
	svc := newTestService(t)
	assert.NoError(t, svc.Authorize(context.Background(), actor.System, ObjectPayment, ActionPaymentRevalidate))
	assert.ErrorIs(t, svc.Authorize(context.Background(), actor.System, ObjectInvoice, ActionInvoiceVoid), ErrForbidden)
}
