package repository

import (
	"context"
	"strings"
	"time"

	ledgerdomain "github.com/smallbiznis/coursepay/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
	"github.com/smallbiznis/coursepay/internal/payment/status"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LegacyStore reads the first-generation legacy_payments table. Manual rows
// keep "{submissionId}:{reference}" in txn_ref.
type LegacyStore struct {
	db  *gorm.DB
	log *zap.Logger
}

type legacyRow struct {
	TxnRef        string    `gorm:"column:txn_ref"`
	Method        string    `gorm:"column:method"`
	StudentID     string    `gorm:"column:student_id"`
	CourseRef     string    `gorm:"column:course_ref"`
	PaidAmount    int64     `gorm:"column:paid_amount"`
	CurrencyCode  string    `gorm:"column:currency_code"`
	PaymentStatus string    `gorm:"column:payment_status"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func NewLegacyStore(db *gorm.DB, log *zap.Logger) *LegacyStore {
	return &LegacyStore{db: db, log: log.Named("ledger.legacy")}
}

func (s *LegacyStore) Name() ledgerdomain.StoreName { return ledgerdomain.StoreLegacy }

func (s *LegacyStore) List(ctx context.Context, scope ledgerdomain.Scope) ([]ledgerdomain.Entry, error) {
	clauses := []string{"1 = 1"}
	args := []any{}
	if v := strings.TrimSpace(scope.UserID); v != "" {
		clauses = append(clauses, "student_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(scope.CourseID); v != "" {
		clauses = append(clauses, "course_ref = ?")
		args = append(args, v)
	}

	var rows []legacyRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT txn_ref, method, student_id, course_ref, paid_amount, currency_code,
		        payment_status, created_at, updated_at
		 FROM legacy_payments
		 WHERE `+strings.Join(clauses, " AND "),
		args...,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]ledgerdomain.Entry, 0, len(rows))
	for _, row := range rows {
		entry, ok := s.toEntry(row)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *LegacyStore) toEntry(row legacyRow) (ledgerdomain.Entry, bool) {
	kind, key := legacyNaturalKey(row.Method, row.TxnRef)
	if key == "" {
		s.log.Warn("skipping legacy payment without a natural key",
			zap.String("method", row.Method),
			zap.String("txn_ref", row.TxnRef),
		)
		return ledgerdomain.Entry{}, false
	}

	st, warning := status.NormalizeVocabulary(row.PaymentStatus, status.VocabularyLegacy)
	if warning != nil {
		s.log.Warn("legacy payment status not recognized",
			zap.String("natural_key", key),
			zap.String("raw_status", warning.RawStatus),
		)
	}

	entry := ledgerdomain.Entry{
		NaturalKey: key,
		Store:      ledgerdomain.StoreLegacy,
		UserID:     row.StudentID,
		CourseID:   row.CourseRef,
		Amount:     row.PaidAmount,
		Currency:   strings.ToUpper(row.CurrencyCode),
		Status:     st,
		SourceKind: kind,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
	if st == paymentdomain.StatusSettled {
		settled := entry.UpdatedAt
		entry.SettledAt = &settled
	}
	return entry, true
}

func legacyNaturalKey(method, txnRef string) (paymentdomain.SourceKind, string) {
	txnRef = strings.TrimSpace(txnRef)
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "gateway", "online":
		return paymentdomain.SourceGateway, paymentdomain.GatewayNaturalKey(txnRef)
	case "manual", "transfer", "bank_transfer":
		submissionID, reference, ok := strings.Cut(txnRef, ":")
		if !ok {
			return paymentdomain.SourceManual, ""
		}
		return paymentdomain.SourceManual, paymentdomain.ManualNaturalKey(submissionID, reference)
	default:
		return "", ""
	}
}
