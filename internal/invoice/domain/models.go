// Package domain contains the invoice model issued for settled payments.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusValid InvoiceStatus = "valid"
	InvoiceStatusVoid  InvoiceStatus = "void"
)

var (
	ErrInvoiceNotFound        = errors.New("invoice_not_found")
	ErrInvoiceNumberCollision = errors.New("invoice_number_collision")
	ErrAccessCodeExhausted    = errors.New("invoice_access_code_exhausted")
	ErrInvoiceAlreadyVoid     = errors.New("invoice_already_void")
	ErrInvalidInvoice         = errors.New("invoice_invalid")
	ErrInvalidVoidReason      = errors.New("invoice_invalid_void_reason")
)

// Invoice is issued once per settled payment natural key.
type Invoice struct {
	ID                snowflake.ID  `json:"id" gorm:"column:id"`
	InvoiceNumber     string        `json:"invoice_number" gorm:"column:invoice_number;primaryKey"`
	PaymentNaturalKey string        `json:"-" gorm:"column:payment_natural_key"`
	UserID            string        `json:"user_id" gorm:"column:user_id"`
	CourseID          string        `json:"course_id" gorm:"column:course_id"`
	Amount            int64         `json:"amount" gorm:"column:amount"`
	Currency          string        `json:"currency" gorm:"column:currency"`
	AccessCode        string        `json:"access_code" gorm:"column:access_code"`
	Status            InvoiceStatus `json:"status" gorm:"column:status"`
	VoidReason        string        `json:"void_reason,omitempty" gorm:"column:void_reason"`
	VoidedBy          string        `json:"-" gorm:"column:voided_by"`
	IssuedAt          time.Time     `json:"issued_at" gorm:"column:issued_at"`
	VoidedAt          *time.Time    `json:"voided_at,omitempty" gorm:"column:voided_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

type Service interface {
	Issue(ctx context.Context, record paymentdomain.PaymentRecord) (Invoice, error)
	Get(ctx context.Context, invoiceNumber string) (Invoice, error)
	GetByPaymentKey(ctx context.Context, naturalKey string) (Invoice, error)
	GetByAccessCode(ctx context.Context, accessCode string) (Invoice, error)
	Void(ctx context.Context, invoiceNumber, reason, actorID string) (Invoice, error)
	RenderPDF(ctx context.Context, invoiceNumber string) ([]byte, error)
}
