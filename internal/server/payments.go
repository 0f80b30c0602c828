package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/coursepay/internal/authorization"
	"github.com/smallbiznis/coursepay/internal/observability/logger"
	reconciledomain "github.com/smallbiznis/coursepay/internal/reconcile/domain"
	"go.uber.org/zap"
)

const maxPayloadBytes = 1 << 20

// paymentView is what a learner sees about a payment. Internal statuses,
// stores and dedup keys never leave the server.
type paymentView struct {
	State         string `json:"state"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
	AccessCode    string `json:"access_code,omitempty"`
	CourseID      string `json:"course_id,omitempty"`
	CourseTitle   string `json:"course_title,omitempty"`
	AccessURL     string `json:"access_url,omitempty"`
}

func (s *Server) toPaymentView(c *gin.Context, res reconciledomain.Result) paymentView {
	view := paymentView{State: res.PublicState()}
	if view.State != reconciledomain.PublicConfirmed {
		return view
	}

	a, _ := actorFromContext(c)
	owner := res.Invoice != nil && res.Invoice.UserID == a.UserID
	if !owner && !s.allowed(c, authorization.ObjectInvoice, authorization.ActionInvoiceViewAll) {
		return view
	}

	if res.Invoice != nil {
		view.InvoiceNumber = res.Invoice.InvoiceNumber
		view.AccessCode = res.Invoice.AccessCode
	}
	if res.Access != nil {
		view.CourseID = res.Access.CourseID
		view.CourseTitle = res.Access.Title
		view.AccessURL = res.Access.AccessURL
	}
	return view
}

func readPayload(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, invalidRequestError()
	}
	if len(body) == 0 || len(body) > maxPayloadBytes {
		return nil, invalidRequestError()
	}
	return body, nil
}

// HandleGatewayWebhook accepts gateway callbacks. The body is handed to the
// reconciler untouched so the signature can be checked against raw bytes.
func (s *Server) HandleGatewayWebhook(c *gin.Context) {
	body, err := readPayload(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.reconciler.HandleGatewayEvent(c.Request.Context(), body, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logger.FromContext(c.Request.Context()).Debug("gateway webhook processed",
		zap.String("outcome", string(res.Outcome)),
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// HandleGatewayReturn is hit when the learner is redirected back from the
// hosted checkout. It re-validates the transaction before answering.
func (s *Server) HandleGatewayReturn(c *gin.Context) {
	transactionID := strings.TrimSpace(c.Query("transaction_id"))
	if transactionID == "" {
		AbortWithError(c, newValidationError("transaction_id", "required", "transaction_id is required"))
		return
	}

	res, err := s.reconciler.ValidateGateway(c.Request.Context(), transactionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": s.toPaymentView(c, res)})
}

func (s *Server) SubmitManualPayment(c *gin.Context) {
	a, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	body, err := readPayload(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.reconciler.SubmitManual(c.Request.Context(), a, body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": s.toPaymentView(c, res)})
}

type manualDecisionRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) DecideManualPayment(c *gin.Context) {
	a, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	submissionID := strings.TrimSpace(c.Param("id"))
	if submissionID == "" {
		AbortWithError(c, newValidationError("id", "required", "submission id is required"))
		return
	}

	var req manualDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.reconciler.DecideManual(c.Request.Context(), a, reconciledomain.ManualDecision{
		SubmissionID: submissionID,
		OperatorID:   a.UserID,
		Decision:     reconciledomain.Decision(strings.ToLower(strings.TrimSpace(req.Decision))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"state":   res.PublicState(),
		"outcome": res.Outcome,
	}})
}

// RevalidatePending triggers one revalidation sweep on demand.
func (s *Server) RevalidatePending(c *gin.Context) {
	n, err := s.reconciler.RevalidatePending(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"processed": n}})
}
