package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/coursepay/internal/actor"
	auditdomain "github.com/smallbiznis/coursepay/internal/audit/domain"
	"github.com/smallbiznis/coursepay/internal/audit/repository"
	"github.com/smallbiznis/coursepay/internal/clock"
	obscontext "github.com/smallbiznis/coursepay/internal/observability/context"
	"github.com/smallbiznis/coursepay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    testutil.NewDB(t),
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, clk
}

func TestAuditLogMasksReferences(t *testing.T) {
	svc, _ := newTestService(t)
	operator := actor.Actor{UserID: "op-1", Role: actor.RoleOperator}
	ctx := obscontext.WithRequestID(context.Background(), "req-1")

	require.NoError(t, svc.AuditLog(ctx, operator, auditdomain.ActionManualPaymentDecided, auditdomain.TargetPayment, "s-1", map[string]any{
		"decision":  "approve",
		"reference": "TRX-1234567890",
	}))

	logs, err := svc.List(context.Background(), auditdomain.ListFilter{TargetID: "s-1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "op-1", logs[0].ActorID)
	assert.Equal(t, "operator", logs[0].ActorRole)
	assert.Equal(t, "req-1", logs[0].RequestID)
	assert.Equal(t, "approve", logs[0].Metadata["decision"])
	assert.Equal(t, "****7890", logs[0].Metadata["reference"])
}

func TestAuditLogRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.AuditLog(ctx, actor.Actor{UserID: "op-1", Role: actor.RoleOperator}, " ", auditdomain.TargetInvoice, "INV-1", nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)

	err = svc.AuditLog(ctx, actor.Actor{}, auditdomain.ActionInvoiceVoided, auditdomain.TargetInvoice, "INV-1", nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidActor)
}

func TestListFiltersAndOrders(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	admin := actor.Actor{UserID: "ad-1", Role: actor.RoleAdmin}

	require.NoError(t, svc.AuditLog(ctx, admin, auditdomain.ActionInvoiceVoided, auditdomain.TargetInvoice, "INV-1", nil))
	clk.Advance(time.Minute)
	require.NoError(t, svc.AuditLog(ctx, admin, auditdomain.ActionReviewResolved, auditdomain.TargetReview, "42", nil))
	clk.Advance(time.Minute)
	require.NoError(t, svc.AuditLog(ctx, admin, auditdomain.ActionInvoiceVoided, auditdomain.TargetInvoice, "INV-2", nil))

	logs, err := svc.List(ctx, auditdomain.ListFilter{Action: auditdomain.ActionInvoiceVoided})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "INV-2", logs[0].TargetID)
	assert.Equal(t, "INV-1", logs[1].TargetID)

	logs, err = svc.List(ctx, auditdomain.ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	start := clk.Now()
	end := start.Add(-time.Hour)
	_, err = svc.List(ctx, auditdomain.ListFilter{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
