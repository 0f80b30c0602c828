package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/coursepay/internal/audit/domain"
	"github.com/smallbiznis/coursepay/internal/authorization"
	invoicedomain "github.com/smallbiznis/coursepay/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
)

// publicInvoiceView is returned to anyone holding an access code.
type publicInvoiceView struct {
	InvoiceNumber string                      `json:"invoice_number"`
	CourseID      string                      `json:"course_id"`
	Amount        int64                       `json:"amount"`
	Currency      string                      `json:"currency"`
	Status        invoicedomain.InvoiceStatus `json:"status"`
	IssuedAt      time.Time                   `json:"issued_at"`
}

func toPublicInvoiceView(inv invoicedomain.Invoice) publicInvoiceView {
	return publicInvoiceView{
		InvoiceNumber: inv.InvoiceNumber,
		CourseID:      inv.CourseID,
		Amount:        inv.Amount,
		Currency:      inv.Currency,
		Status:        inv.Status,
		IssuedAt:      inv.IssuedAt,
	}
}

// loadOwnedInvoice hides invoices the caller may not see behind not found.
func (s *Server) loadOwnedInvoice(c *gin.Context, number string) (invoicedomain.Invoice, bool) {
	a, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return invoicedomain.Invoice{}, false
	}

	inv, err := s.invoiceSvc.Get(c.Request.Context(), number)
	if err != nil {
		AbortWithError(c, err)
		return invoicedomain.Invoice{}, false
	}

	if inv.UserID != a.UserID && !s.allowed(c, authorization.ObjectInvoice, authorization.ActionInvoiceViewAll) {
		AbortWithError(c, ErrNotFound)
		return invoicedomain.Invoice{}, false
	}
	return inv, true
}

func (s *Server) GetInvoice(c *gin.Context) {
	number := strings.TrimSpace(c.Param("number"))
	if number == "" {
		AbortWithError(c, newValidationError("number", "required", "invoice number is required"))
		return
	}

	inv, ok := s.loadOwnedInvoice(c, number)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": inv})
}

func (s *Server) GetInvoicePDF(c *gin.Context) {
	number := strings.TrimSpace(c.Param("number"))
	if number == "" {
		AbortWithError(c, newValidationError("number", "required", "invoice number is required"))
		return
	}

	inv, ok := s.loadOwnedInvoice(c, number)
	if !ok {
		return
	}

	doc, err := s.invoiceSvc.RenderPDF(c.Request.Context(), inv.InvoiceNumber)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+inv.InvoiceNumber+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

// GetPaymentInvoice resolves the invoice issued for a payment natural key.
func (s *Server) GetPaymentInvoice(c *gin.Context) {
	a, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	key := strings.TrimSpace(c.Param("key"))
	if _, valid := paymentdomain.SourceOfKey(key); !valid {
		AbortWithError(c, newValidationError("key", "invalid_key", "invalid payment key"))
		return
	}

	inv, err := s.invoiceSvc.GetByPaymentKey(c.Request.Context(), key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if inv.UserID != a.UserID && !s.allowed(c, authorization.ObjectInvoice, authorization.ActionInvoiceViewAll) {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": inv})
}

type voidInvoiceRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) VoidInvoice(c *gin.Context) {
	a, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	number := strings.TrimSpace(c.Param("number"))
	if number == "" {
		AbortWithError(c, newValidationError("number", "required", "invoice number is required"))
		return
	}

	var req voidInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inv, err := s.invoiceSvc.Void(c.Request.Context(), number, req.Reason, a.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.ledgerSvc != nil {
		_ = s.ledgerSvc.Invalidate(c.Request.Context())
	}
	if s.auditSvc != nil {
		_ = s.auditSvc.AuditLog(c.Request.Context(), a, auditdomain.ActionInvoiceVoided, auditdomain.TargetInvoice, inv.InvoiceNumber, map[string]any{
			"reason": inv.VoidReason,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": inv})
}

// LookupInvoiceByAccessCode is the unauthenticated lookup printed on
// receipts. It returns a reduced view and is rate limited per client.
func (s *Server) LookupInvoiceByAccessCode(c *gin.Context) {
	code := strings.TrimSpace(c.Param("access_code"))
	if code == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	inv, err := s.invoiceSvc.GetByAccessCode(c.Request.Context(), code)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toPublicInvoiceView(inv)})
}
