package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepay/internal/clock"
	"github.com/smallbiznis/coursepay/internal/config"
	invoicedomain "github.com/smallbiznis/coursepay/internal/invoice/domain"
	"github.com/smallbiznis/coursepay/internal/invoice/format"
	obsmetrics "github.com/smallbiznis/coursepay/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
	"github.com/smallbiznis/coursepay/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxAccessCodeAttempts = 5

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	PDF        pdf.Provider
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	prefix     string
	template   string
	issuerName string
	pdf        pdf.Provider
	obsMetrics *obsmetrics.Metrics

	newAccessCode func() (string, error)
}

func NewService(p ServiceParam) invoicedomain.Service {
	prefix := strings.TrimSpace(p.Cfg.Invoice.NumberPrefix)
	if prefix == "" {
		prefix = format.DefaultInvoicePrefix
	}
	template := strings.TrimSpace(p.Cfg.Invoice.NumberTemplate)
	if template == "" {
		template = format.DefaultInvoiceNumberTemplate
	}
	issuer := strings.TrimSpace(p.Cfg.AppName)
	if issuer == "" {
		issuer = "coursepay"
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,

		clock:         p.Clock,
		prefix:        prefix,
		template:      template,
		issuerName:    issuer,
		pdf:           p.PDF,
		obsMetrics:    p.ObsMetrics,
		newAccessCode: generateAccessCode,
	}
}

// Issue creates the invoice for a settled payment. Issuing again for the same
// natural key returns the stored invoice unchanged.
func (s *Service) Issue(ctx context.Context, record paymentdomain.PaymentRecord) (invoicedomain.Invoice, error) {
	key := strings.TrimSpace(record.NaturalKey)
	if key == "" || record.Amount <= 0 || strings.TrimSpace(record.Currency) == "" {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoice
	}

	existing, err := s.findOne(ctx, "payment_natural_key", key)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	settledAt := s.clock.Now()
	if record.SettledAt != nil {
		settledAt = *record.SettledAt
	}
	number, err := format.FormatInvoiceNumber(s.template, s.prefix, settledAt, key)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	for attempt := 0; attempt < maxAccessCodeAttempts; attempt++ {
		code, err := s.newAccessCode()
		if err != nil {
			return invoicedomain.Invoice{}, err
		}
		taken, err := s.findOne(ctx, "access_code", code)
		if err != nil {
			return invoicedomain.Invoice{}, err
		}
		if taken != nil {
			continue
		}

		inv := invoicedomain.Invoice{
			ID:                s.genID.Generate(),
			InvoiceNumber:     number,
			PaymentNaturalKey: key,
			UserID:            record.UserID,
			CourseID:          record.CourseID,
			Amount:            record.Amount,
			Currency:          strings.ToUpper(record.Currency),
			AccessCode:        code,
			Status:            invoicedomain.InvoiceStatusValid,
			IssuedAt:          s.clock.Now().UTC(),
		}
		res := s.db.WithContext(ctx).Exec(
			`INSERT INTO invoices (
				invoice_number, id, payment_natural_key, user_id, course_id,
				amount, currency, access_code, status, issued_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING`,
			inv.InvoiceNumber,
			inv.ID,
			inv.PaymentNaturalKey,
			inv.UserID,
			inv.CourseID,
			inv.Amount,
			inv.Currency,
			inv.AccessCode,
			inv.Status,
			inv.IssuedAt,
		)
		if res.Error != nil {
			return invoicedomain.Invoice{}, res.Error
		}
		if res.RowsAffected == 1 {
			s.obsMetrics.RecordInvoiceIssued(ctx, inv.Currency)
			s.log.Info("invoice issued",
				zap.String("invoice_number", inv.InvoiceNumber),
				zap.String("natural_key", key),
			)
			return inv, nil
		}

		// Lost a race: either the same payment was issued concurrently,
		// the number belongs to another key, or the access code was taken.
		if replay, err := s.findOne(ctx, "payment_natural_key", key); err != nil {
			return invoicedomain.Invoice{}, err
		} else if replay != nil {
			return *replay, nil
		}
		if clash, err := s.findOne(ctx, "invoice_number", number); err != nil {
			return invoicedomain.Invoice{}, err
		} else if clash != nil {
			s.log.Error("invoice number collision",
				zap.String("invoice_number", number),
				zap.String("natural_key", key),
				zap.String("existing_natural_key", clash.PaymentNaturalKey),
			)
			return invoicedomain.Invoice{}, fmt.Errorf("%w: %s", invoicedomain.ErrInvoiceNumberCollision, number)
		}
	}

	return invoicedomain.Invoice{}, invoicedomain.ErrAccessCodeExhausted
}

func (s *Service) Get(ctx context.Context, invoiceNumber string) (invoicedomain.Invoice, error) {
	return s.mustFind(ctx, "invoice_number", strings.TrimSpace(invoiceNumber))
}

func (s *Service) GetByPaymentKey(ctx context.Context, naturalKey string) (invoicedomain.Invoice, error) {
	return s.mustFind(ctx, "payment_natural_key", strings.TrimSpace(naturalKey))
}

func (s *Service) GetByAccessCode(ctx context.Context, accessCode string) (invoicedomain.Invoice, error) {
	code := NormalizeAccessCode(accessCode)
	if code == "" {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	return s.mustFind(ctx, "access_code", code)
}

// Void flips the status only. Amount, number and access code never change.
func (s *Service) Void(ctx context.Context, invoiceNumber, reason, actorID string) (invoicedomain.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidVoidReason
	}
	inv, err := s.Get(ctx, invoiceNumber)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if inv.Status == invoicedomain.InvoiceStatusVoid {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceAlreadyVoid
	}

	now := s.clock.Now().UTC()
	res := s.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, void_reason = ?, voided_by = ?, voided_at = ?
		 WHERE invoice_number = ? AND status = ?`,
		invoicedomain.InvoiceStatusVoid,
		reason,
		strings.TrimSpace(actorID),
		now,
		inv.InvoiceNumber,
		invoicedomain.InvoiceStatusValid,
	)
	if res.Error != nil {
		return invoicedomain.Invoice{}, res.Error
	}
	if res.RowsAffected == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceAlreadyVoid
	}

	s.log.Info("invoice voided",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("voided_by", actorID),
	)
	return s.Get(ctx, inv.InvoiceNumber)
}

func (s *Service) RenderPDF(ctx context.Context, invoiceNumber string) ([]byte, error) {
	inv, err := s.Get(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}

	var parties struct {
		Title       string
		DisplayName string
		Email       string
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT c.title AS title, u.display_name AS display_name, u.email AS email
		 FROM courses c, users u
		 WHERE c.id = ? AND u.id = ?`,
		inv.CourseID,
		inv.UserID,
	).Scan(&parties).Error; err != nil {
		return nil, err
	}

	r, err := s.pdf.GenerateReceipt(ctx, pdf.ReceiptData{
		IssuerName:    s.issuerName,
		InvoiceNumber: inv.InvoiceNumber,
		AccessCode:    inv.AccessCode,
		IssueDate:     inv.IssuedAt.UTC().Format(time.DateOnly),
		Status:        strings.ToUpper(string(inv.Status)),
		BillToName:    parties.DisplayName,
		BillToEmail:   parties.Email,
		CourseTitle:   parties.Title,
		Total:         FormatAmount(inv.Amount, inv.Currency),
	})
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// zeroDecimalCurrencies are stored in whole units.
var zeroDecimalCurrencies = map[string]bool{
	"IDR": true,
	"JPY": true,
	"KRW": true,
	"VND": true,
}

// FormatAmount renders minor units for display.
func FormatAmount(amount int64, currency string) string {
	currency = strings.ToUpper(currency)
	if zeroDecimalCurrencies[currency] {
		return fmt.Sprintf("%s %d", currency, amount)
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, amount/100, amount%100)
}

func (s *Service) mustFind(ctx context.Context, column, value string) (invoicedomain.Invoice, error) {
	if value == "" {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	inv, err := s.findOne(ctx, column, value)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if inv == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	return *inv, nil
}

func (s *Service) findOne(ctx context.Context, column, value string) (*invoicedomain.Invoice, error) {
	switch column {
	case "invoice_number", "payment_natural_key", "access_code":
	default:
		return nil, errors.New("invoice lookup column not allowed")
	}

	var item invoicedomain.Invoice
	err := s.db.WithContext(ctx).Raw(
		`SELECT invoice_number, id, payment_natural_key, user_id, course_id,
		        amount, currency, access_code, status, void_reason, voided_by,
		        issued_at, voided_at
		 FROM invoices
		 WHERE `+column+` = ?
		 LIMIT 1`,
		value,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.InvoiceNumber == "" {
		return nil, nil
	}
	return &item, nil
}
