package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/coursepay/internal/clock"
	"github.com/smallbiznis/coursepay/internal/config"
	invoicedomain "github.com/smallbiznis/coursepay/internal/invoice/domain"
	"github.com/smallbiznis/coursepay/internal/invoice/format"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
	"github.com/smallbiznis/coursepay/internal/providers/pdf"
	"github.com/smallbiznis/coursepay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var settledAt = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clock.NewFakeClock(settledAt.Add(time.Minute)),
		Cfg:   config.Config{AppName: "coursepay"},
		PDF:   pdf.New(),
	})
	return svc.(*Service), db
}

func settledRecord(key string) paymentdomain.PaymentRecord {
	at := settledAt
	return paymentdomain.PaymentRecord{
		NaturalKey: key,
		UserID:     "u-1",
		CourseID:   "c-1",
		Amount:     150000,
		Currency:   "idr",
		Status:     paymentdomain.StatusSettled,
		SettledAt:  &at,
	}
}

func TestIssueIsReplaySafe(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, settledRecord("gw:T-1"))
	require.NoError(t, err)
	assert.Regexp(t, `^INV-202603-[A-Z2-7]{10}$`, first.InvoiceNumber)
	assert.Regexp(t, `^[A-Z2-9]{4}-[A-Z2-9]{4}$`, first.AccessCode)
	assert.Equal(t, "IDR", first.Currency)
	assert.Equal(t, invoicedomain.InvoiceStatusValid, first.Status)

	second, err := svc.Issue(ctx, settledRecord("gw:T-1"))
	require.NoError(t, err)
	assert.Equal(t, first.InvoiceNumber, second.InvoiceNumber)
	assert.Equal(t, first.AccessCode, second.AccessCode)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(1) FROM invoices`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIssueConcurrentSameKey(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	const workers = 8
	numbers := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := svc.Issue(ctx, settledRecord("man:S-1:REF-9"))
			if err == nil {
				numbers[i] = inv.InvoiceNumber
			}
		}(i)
	}
	wg.Wait()

	for _, n := range numbers {
		assert.Equal(t, numbers[0], n)
	}
	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(1) FROM invoices`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIssueNumberCollision(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	number, err := format.FormatInvoiceNumber(format.DefaultInvoiceNumberTemplate, "INV", settledAt, "gw:T-1")
	require.NoError(t, err)
	require.NoError(t, db.Exec(
		`INSERT INTO invoices (invoice_number, id, payment_natural_key, user_id, course_id, amount, currency, access_code, status, issued_at)
		 VALUES (?, 1, 'gw:OTHER', 'u-2', 'c-2', 10, 'IDR', 'ZZZZ-ZZZZ', 'valid', ?)`,
		number, settledAt,
	).Error)

	_, err = svc.Issue(ctx, settledRecord("gw:T-1"))
	assert.True(t, errors.Is(err, invoicedomain.ErrInvoiceNumberCollision))
}

func TestIssueRegeneratesTakenAccessCode(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	require.NoError(t, db.Exec(
		`INSERT INTO invoices (invoice_number, id, payment_natural_key, user_id, course_id, amount, currency, access_code, status, issued_at)
		 VALUES ('INV-OLD', 1, 'gw:OLD', 'u-2', 'c-2', 10, 'IDR', 'AAAA-AAAA', 'valid', ?)`,
		settledAt,
	).Error)

	codes := []string{"AAAA-AAAA", "BBBB-CCCC"}
	calls := 0
	svc.newAccessCode = func() (string, error) {
		code := codes[calls]
		calls++
		return code, nil
	}

	inv, err := svc.Issue(ctx, settledRecord("gw:T-2"))
	require.NoError(t, err)
	assert.Equal(t, "BBBB-CCCC", inv.AccessCode)
	assert.Equal(t, 2, calls)
}

func TestIssueAccessCodeExhausted(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	require.NoError(t, db.Exec(
		`INSERT INTO invoices (invoice_number, id, payment_natural_key, user_id, course_id, amount, currency, access_code, status, issued_at)
		 VALUES ('INV-OLD', 1, 'gw:OLD', 'u-2', 'c-2', 10, 'IDR', 'AAAA-AAAA', 'valid', ?)`,
		settledAt,
	).Error)
	svc.newAccessCode = func() (string, error) { return "AAAA-AAAA", nil }

	_, err := svc.Issue(ctx, settledRecord("gw:T-3"))
	assert.ErrorIs(t, err, invoicedomain.ErrAccessCodeExhausted)
}

func TestLookupsAndVoid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Issue(ctx, settledRecord("gw:T-5"))
	require.NoError(t, err)

	byKey, err := svc.GetByPaymentKey(ctx, "gw:T-5")
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNumber, byKey.InvoiceNumber)

	byCode, err := svc.GetByAccessCode(ctx, " "+strings.ToLower(inv.AccessCode[:4])+inv.AccessCode[5:])
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNumber, byCode.InvoiceNumber)

	_, err = svc.Get(ctx, "INV-MISSING")
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)

	_, err = svc.Void(ctx, inv.InvoiceNumber, "", "admin-1")
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidVoidReason)

	voided, err := svc.Void(ctx, inv.InvoiceNumber, "duplicate charge", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusVoid, voided.Status)
	assert.Equal(t, "duplicate charge", voided.VoidReason)
	assert.Equal(t, inv.AccessCode, voided.AccessCode)
	assert.Equal(t, inv.Amount, voided.Amount)

	_, err = svc.Void(ctx, inv.InvoiceNumber, "again", "admin-1")
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceAlreadyVoid)
}

func TestRenderPDF(t *testing.T) {
	svc, db := newTestService(t)
	testutil.SeedUser(t, db, "u-1")
	testutil.SeedCourse(t, db, "c-1", "Go for Backend Engineers")
	ctx := context.Background()

	inv, err := svc.Issue(ctx, settledRecord("gw:T-7"))
	require.NoError(t, err)

	body, err := svc.RenderPDF(ctx, inv.InvoiceNumber)
	require.NoError(t, err)
	require.True(t, len(body) > 4)
	assert.Equal(t, "%PDF", string(body[:4]))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "IDR 150000", FormatAmount(150000, "idr"))
	assert.Equal(t, "USD 12.05", FormatAmount(1205, "USD"))
}

func TestNormalizeAccessCode(t *testing.T) {
	assert.Equal(t, "ABCD-EFGH", NormalizeAccessCode("abcd efgh"))
	assert.Equal(t, "", NormalizeAccessCode("ABCD-EFG0"))
	assert.Equal(t, "", NormalizeAccessCode("ABC"))
}

func TestGenerateAccessCodeAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateAccessCode()
		require.NoError(t, err)
		assert.Equal(t, code, NormalizeAccessCode(code))
	}
}
