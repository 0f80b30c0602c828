package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/coursepay/internal/actor"
	auditdomain "github.com/smallbiznis/coursepay/internal/audit/domain"
	"github.com/smallbiznis/coursepay/internal/authorization"
	"github.com/smallbiznis/coursepay/internal/config"
	entitlementdomain "github.com/smallbiznis/coursepay/internal/entitlement/domain"
	invoicedomain "github.com/smallbiznis/coursepay/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/coursepay/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
	reconciledomain "github.com/smallbiznis/coursepay/internal/reconcile/domain"
	reviewdomain "github.com/smallbiznis/coursepay/internal/review/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

type fakeReconciler struct {
	result    reconciledomain.Result
	err       error
	lastRaw   []byte
	decisions []reconciledomain.ManualDecision
}

func (f *fakeReconciler) HandleGatewayEvent(_ context.Context, raw []byte, _ http.Header) (reconciledomain.Result, error) {
	f.lastRaw = raw
	return f.result, f.err
}

func (f *fakeReconciler) ValidateGateway(context.Context, string) (reconciledomain.Result, error) {
	return f.result, f.err
}

func (f *fakeReconciler) SubmitManual(_ context.Context, _ actor.Actor, raw []byte) (reconciledomain.Result, error) {
	f.lastRaw = raw
	return f.result, f.err
}

func (f *fakeReconciler) DecideManual(_ context.Context, _ actor.Actor, d reconciledomain.ManualDecision) (reconciledomain.Result, error) {
	f.decisions = append(f.decisions, d)
	return f.result, f.err
}

func (f *fakeReconciler) ResolveReview(_ context.Context, a actor.Actor, id snowflake.ID, note string) (*reviewdomain.Review, error) {
	return &reviewdomain.Review{ID: id, ResolvedBy: a.UserID, ResolutionNote: note}, f.err
}

func (f *fakeReconciler) RevalidatePending(context.Context) (int, error) { return 3, f.err }

func (f *fakeReconciler) RecoverStaleClaims(context.Context) (int, error) { return 0, f.err }

type fakeEntitlements struct {
	entitled map[string]bool
}

func (f *fakeEntitlements) Grant(context.Context, paymentdomain.PaymentRecord) (entitlementdomain.GrantResult, error) {
	return entitlementdomain.GrantResult{}, nil
}

func (f *fakeEntitlements) HasEntitlement(_ context.Context, userID, courseID string) (bool, *entitlementdomain.Access, error) {
	if f.entitled[userID+"/"+courseID] {
		return true, &entitlementdomain.Access{CourseID: courseID, Title: "Go 101", AccessURL: "https://learn.test/" + courseID}, nil
	}
	return false, nil, nil
}

func (f *fakeEntitlements) State(ctx context.Context, userID, courseID string) (entitlementdomain.State, error) {
	ok, _, _ := f.HasEntitlement(ctx, userID, courseID)
	if ok {
		return entitlementdomain.StateEntitled, nil
	}
	return entitlementdomain.StateNone, nil
}

type fakeInvoices struct {
	byNumber map[string]invoicedomain.Invoice
	voided   []string
}

func (f *fakeInvoices) Issue(context.Context, paymentdomain.PaymentRecord) (invoicedomain.Invoice, error) {
	return invoicedomain.Invoice{}, nil
}

func (f *fakeInvoices) Get(_ context.Context, number string) (invoicedomain.Invoice, error) {
	inv, ok := f.byNumber[number]
	if !ok {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	return inv, nil
}

func (f *fakeInvoices) GetByPaymentKey(_ context.Context, key string) (invoicedomain.Invoice, error) {
	for _, inv := range f.byNumber {
		if inv.PaymentNaturalKey == key {
			return inv, nil
		}
	}
	return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
}

func (f *fakeInvoices) GetByAccessCode(_ context.Context, code string) (invoicedomain.Invoice, error) {
	for _, inv := range f.byNumber {
		if inv.AccessCode == code {
			return inv, nil
		}
	}
	return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
}

func (f *fakeInvoices) Void(_ context.Context, number, reason, actorID string) (invoicedomain.Invoice, error) {
	inv, ok := f.byNumber[number]
	if !ok {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	if inv.Status == invoicedomain.InvoiceStatusVoid {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceAlreadyVoid
	}
	inv.Status = invoicedomain.InvoiceStatusVoid
	inv.VoidReason = reason
	inv.VoidedBy = actorID
	f.byNumber[number] = inv
	f.voided = append(f.voided, number)
	return inv, nil
}

func (f *fakeInvoices) RenderPDF(context.Context, string) ([]byte, error) {
	return []byte("%PDF-1.4 test"), nil
}

type fakeLedger struct {
	lastFilter ledgerdomain.Filter
	summary    ledgerdomain.Summary
}

func (f *fakeLedger) Snapshot(_ context.Context, filter ledgerdomain.Filter) (ledgerdomain.Summary, error) {
	f.lastFilter = filter
	return f.summary, nil
}

func (f *fakeLedger) Invalidate(context.Context) error { return nil }

type fakeReviews struct{}

func (fakeReviews) Enqueue(context.Context, string, string, string) error { return nil }

func (fakeReviews) ListOpen(context.Context, int) ([]reviewdomain.Review, error) {
	return []reviewdomain.Review{{Kind: reviewdomain.KindUnknownStatus}}, nil
}

func (fakeReviews) Get(context.Context, snowflake.ID) (*reviewdomain.Review, error) {
	return nil, reviewdomain.ErrReviewNotFound
}

func (fakeReviews) Resolve(context.Context, snowflake.ID, string, string) (*reviewdomain.Review, error) {
	return nil, reviewdomain.ErrReviewNotFound
}

// fakeAuthz grants every staff role everything except invoice.void, which
// needs admin or above.
type fakeAuthz struct{}

func (fakeAuthz) Authorize(_ context.Context, a actor.Actor, _ string, action string) error {
	if !a.Valid() {
		return authorization.ErrInvalidActor
	}
	if !a.IsStaff() {
		return authorization.ErrForbidden
	}
	if action == authorization.ActionInvoiceVoid && a.Role == actor.RoleOperator {
		return authorization.ErrForbidden
	}
	return nil
}

type fakeAudit struct {
	entries []auditdomain.AuditLog
}

func (f *fakeAudit) AuditLog(_ context.Context, a actor.Actor, action, targetType, targetID string, metadata map[string]any) error {
	f.entries = append(f.entries, auditdomain.AuditLog{
		ActorID:    a.UserID,
		ActorRole:  string(a.Role),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	})
	return nil
}

func (f *fakeAudit) List(context.Context, auditdomain.ListFilter) ([]auditdomain.AuditLog, error) {
	return f.entries, nil
}

type testServer struct {
	engine       *gin.Engine
	reconciler   *fakeReconciler
	entitlements *fakeEntitlements
	invoices     *fakeInvoices
	ledger       *fakeLedger
	audit        *fakeAudit
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	ts := &testServer{
		engine:       engine,
		reconciler:   &fakeReconciler{},
		entitlements: &fakeEntitlements{entitled: map[string]bool{"u-1/c-1": true}},
		invoices: &fakeInvoices{byNumber: map[string]invoicedomain.Invoice{
			"INV-20261017-0001": {
				InvoiceNumber:     "INV-20261017-0001",
				PaymentNaturalKey: "gw:tx-1",
				UserID:            "u-1",
				CourseID:          "c-1",
				Amount:            150000,
				Currency:          "IDR",
				AccessCode:        "ABCD-EFGH",
				Status:            invoicedomain.InvoiceStatusValid,
				IssuedAt:          time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
			},
		}},
		ledger: &fakeLedger{},
		audit:  &fakeAudit{},
	}

	srv := NewServer(ServerParams{
		Gin:          engine,
		Cfg:          config.Config{AuthJWTSecret: string(testSecret)},
		Log:          zap.NewNop(),
		Reconciler:   ts.reconciler,
		Entitlements: ts.entitlements,
		InvoiceSvc:   ts.invoices,
		LedgerSvc:    ts.ledger,
		ReviewSvc:    fakeReviews{},
		AuthzSvc:     fakeAuthz{},
		AuditSvc:     ts.audit,
	})
	srv.RegisterRoutes()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, who *actor.Actor) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who != nil {
		token, err := SignAccessToken(testSecret, *who, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var (
	student      = actor.Actor{UserID: "u-1", Role: actor.RoleStudent}
	otherStudent = actor.Actor{UserID: "u-2", Role: actor.RoleStudent}
	operator     = actor.Actor{UserID: "op-1", Role: actor.RoleOperator}
	admin        = actor.Actor{UserID: "ad-1", Role: actor.RoleAdmin}
)

func settledResult(ts *testServer) reconciledomain.Result {
	inv := ts.invoices.byNumber["INV-20261017-0001"]
	return reconciledomain.Result{
		NaturalKey: "gw:tx-1",
		Outcome:    reconciledomain.OutcomeSettled,
		Status:     paymentdomain.StatusSettled,
		Invoice:    &inv,
		Access:     &entitlementdomain.Access{CourseID: "c-1", Title: "Go 101", AccessURL: "https://learn.test/c-1"},
	}
}

func TestGatewayWebhookPassesRawBody(t *testing.T) {
	ts := newTestServer(t)
	ts.reconciler.result = reconciledomain.Result{Outcome: reconciledomain.OutcomePending}

	payload := []byte(`{"transaction_id":"tx-1","status":"pending"}`)
	rec := ts.do(t, http.MethodPost, "/v1/gateway/webhook", payload, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, ts.reconciler.lastRaw)
	assert.Equal(t, true, decodeBody(t, rec)["received"])
}

func TestGatewayWebhookErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"malformed", paymentdomain.Malformed("amount", "must be positive"), http.StatusBadRequest},
		{"bad signature", paymentdomain.ErrInvalidSignature, http.StatusUnauthorized},
		{"mismatch", reconciledomain.ErrSubmissionMismatch, http.StatusConflict},
		{"unexpected", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.reconciler.err = tc.err
			rec := ts.do(t, http.MethodPost, "/v1/gateway/webhook", []byte(`{}`), nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "gw:")
		})
	}
}

func TestMalformedErrorNamesField(t *testing.T) {
	ts := newTestServer(t)
	ts.reconciler.err = paymentdomain.Malformed("amount", "must be positive")

	rec := ts.do(t, http.MethodPost, "/v1/gateway/webhook", []byte(`{}`), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"amount"`)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/entitlements/c-1", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := SignAccessToken(testSecret, student, -time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/entitlements/c-1", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := SignAccessToken([]byte("other"), student, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/v1/entitlements/c-1", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetEntitlement(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/entitlements/c-1", nil, &student)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "entitled", data["state"])
	assert.NotNil(t, data["access"])

	rec = ts.do(t, http.MethodGet, "/v1/entitlements/c-1", nil, &otherStudent)
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "none", data["state"])
	assert.Nil(t, data["access"])
}

func TestGatewayReturnShowsDetailsToOwnerOnly(t *testing.T) {
	ts := newTestServer(t)
	ts.reconciler.result = settledResult(ts)

	rec := ts.do(t, http.MethodGet, "/v1/gateway/return?transaction_id=tx-1", nil, &student)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "confirmed", data["state"])
	assert.Equal(t, "INV-20261017-0001", data["invoice_number"])
	assert.Equal(t, "https://learn.test/c-1", data["access_url"])

	rec = ts.do(t, http.MethodGet, "/v1/gateway/return?transaction_id=tx-1", nil, &otherStudent)
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "confirmed", data["state"])
	assert.Nil(t, data["invoice_number"])

	rec = ts.do(t, http.MethodGet, "/v1/gateway/return", nil, &student)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGatewayReturnHidesInternalStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.reconciler.result = reconciledomain.Result{
		Outcome: reconciledomain.OutcomeBlocked,
		Status:  paymentdomain.StatusPending,
	}

	rec := ts.do(t, http.MethodGet, "/v1/gateway/return?transaction_id=tx-1", nil, &student)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"state":"pending"}}`, rec.Body.String())
}

func TestGatewayReturnUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.reconciler.err = reconciledomain.ErrGatewayUnavailable

	rec := ts.do(t, http.MethodGet, "/v1/gateway/return?transaction_id=tx-1", nil, &student)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSubmitManualPayment(t *testing.T) {
	ts := newTestServer(t)
	ts.reconciler.result = reconciledomain.Result{Outcome: reconciledomain.OutcomePending, Status: paymentdomain.StatusPending}

	body := []byte(`{"submission_id":"s-1","reference":"TRX-1","user_id":"u-1","course_id":"c-1","amount":100,"currency":"IDR","status":"pending"}`)
	rec := ts.do(t, http.MethodPost, "/v1/manual/submissions", body, &student)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, body, ts.reconciler.lastRaw)

	ts.reconciler.err = reconciledomain.ErrNotOwner
	rec = ts.do(t, http.MethodPost, "/v1/manual/submissions", body, &otherStudent)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDecideManualPaymentRequiresOperator(t *testing.T) {
	ts := newTestServer(t)
	ts.reconciler.result = settledResult(ts)
	body := []byte(`{"decision":"Approve"}`)

	rec := ts.do(t, http.MethodPost, "/v1/manual/submissions/s-1/decision", body, &student)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, ts.reconciler.decisions)

	rec = ts.do(t, http.MethodPost, "/v1/manual/submissions/s-1/decision", body, &operator)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ts.reconciler.decisions, 1)
	assert.Equal(t, reconciledomain.DecisionApprove, ts.reconciler.decisions[0].Decision)
	assert.Equal(t, "op-1", ts.reconciler.decisions[0].OperatorID)
	assert.Equal(t, "s-1", ts.reconciler.decisions[0].SubmissionID)
}

func TestDecideManualPaymentInvalidDecision(t *testing.T) {
	ts := newTestServer(t)
	ts.reconciler.err = paymentdomain.ErrInvalidDecision

	rec := ts.do(t, http.MethodPost, "/v1/manual/submissions/s-1/decision", []byte(`{"decision":"maybe"}`), &operator)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_decision")
}

func TestInvoiceVisibility(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/invoices/INV-20261017-0001", nil, &student)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "gw:tx-1")

	rec = ts.do(t, http.MethodGet, "/v1/invoices/INV-20261017-0001", nil, &otherStudent)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/invoices/INV-20261017-0001", nil, &operator)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/invoices/INV-missing", nil, &operator)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvoicePDF(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/invoices/INV-20261017-0001/pdf", nil, &student)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestPaymentInvoiceLookup(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/payments/gw:tx-1/invoice", nil, &student)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "INV-20261017-0001", data["invoice_number"])

	rec = ts.do(t, http.MethodGet, "/v1/payments/bogus/invoice", nil, &student)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoidInvoice(t *testing.T) {
	ts := newTestServer(t)
	body := []byte(`{"reason":"duplicate charge"}`)

	rec := ts.do(t, http.MethodPost, "/v1/invoices/INV-20261017-0001/void", body, &operator)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/invoices/INV-20261017-0001/void", body, &admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"INV-20261017-0001"}, ts.invoices.voided)

	rec = ts.do(t, http.MethodPost, "/v1/invoices/INV-20261017-0001/void", body, &admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Len(t, ts.audit.entries, 1)
	assert.Equal(t, auditdomain.ActionInvoiceVoided, ts.audit.entries[0].Action)
	assert.Equal(t, "ad-1", ts.audit.entries[0].ActorID)

	rec = ts.do(t, http.MethodGet, "/v1/audit-logs?target_type=invoice", nil, &admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate charge")
}

func TestPublicAccessCodeLookup(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/public/invoices/ABCD-EFGH", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "INV-20261017-0001", data["invoice_number"])
	assert.NotContains(t, data, "user_id")
	assert.NotContains(t, data, "access_code")

	rec = ts.do(t, http.MethodGet, "/v1/public/invoices/ZZZZ-ZZZZ", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedgerSnapshotScopesStudents(t *testing.T) {
	ts := newTestServer(t)
	settledAt := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	ts.ledger.summary = ledgerdomain.Summary{
		Currency:     "IDR",
		TotalSettled: 100,
		Entries: []ledgerdomain.Entry{{
			NaturalKey: "gw:tx-1",
			Store:      ledgerdomain.StoreV2,
			UserID:     "u-1",
			CourseID:   "c-1",
			Amount:     100,
			Currency:   "IDR",
			Status:     paymentdomain.StatusSettled,
			SourceKind: paymentdomain.SourceGateway,
			SettledAt:  &settledAt,
		}},
	}

	rec := ts.do(t, http.MethodGet, "/v1/ledger/snapshot?user_id=u-2&currency=idr", nil, &student)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", ts.ledger.lastFilter.UserID)
	assert.Equal(t, "IDR", ts.ledger.lastFilter.Currency)
	assert.NotContains(t, rec.Body.String(), "natural_key")
	assert.NotContains(t, rec.Body.String(), "v2")

	rec = ts.do(t, http.MethodGet, "/v1/ledger/snapshot?user_id=u-2&from=2026-10-01", nil, &operator)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-2", ts.ledger.lastFilter.UserID)
	require.NotNil(t, ts.ledger.lastFilter.From)

	rec = ts.do(t, http.MethodGet, "/v1/ledger/snapshot?from=yesterday", nil, &operator)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviews(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/reviews", nil, &student)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/reviews?limit=5", nil, &operator)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/reviews?limit=-1", nil, &operator)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/reviews/42/resolve", []byte(`{"note":"course restored"}`), &operator)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "course restored", data["resolution_note"])
	assert.Equal(t, "op-1", data["resolved_by"])

	rec = ts.do(t, http.MethodPost, "/v1/reviews/not-a-number/resolve", nil, &operator)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRevalidateRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/payments/revalidate", nil, &student)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/payments/revalidate", nil, &admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"processed":3}}`, rec.Body.String())
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(paymentdomain.Malformed("currency", ""))
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "invalid_currency", code)

	typ, code = classifyErrorForLog(assert.AnError)
	assert.Equal(t, "internal_error", typ)
	assert.Equal(t, "unhandled", code)

	typ, _ = classifyErrorForLog(nil)
	assert.Empty(t, typ)
}
