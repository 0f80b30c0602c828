package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/coursepay/internal/audit/domain"
	"github.com/smallbiznis/coursepay/internal/authorization"
	entitlementdomain "github.com/smallbiznis/coursepay/internal/entitlement/domain"
	invoicedomain "github.com/smallbiznis/coursepay/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/coursepay/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
	reconciledomain "github.com/smallbiznis/coursepay/internal/reconcile/domain"
	reviewdomain "github.com/smallbiznis/coursepay/internal/review/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// mapError turns domain errors into HTTP responses. Messages are generic on
// purpose: payloads never name stores, sources or dedup keys.
func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var malformed *paymentdomain.MalformedPayloadError
	if errors.As(err, &malformed) {
		field := malformed.Field
		if field == "" {
			field = "payload"
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   field,
				Code:    "invalid_" + field,
				Message: "invalid value",
			}},
		}
	}

	if code, ok := validationErrorCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Code:    code,
				Message: "invalid value",
			}},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, reconciledomain.ErrNotOwner):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, invoicedomain.ErrInvoiceAlreadyVoid),
		errors.Is(err, reviewdomain.ErrReviewAlreadyResolved),
		errors.Is(err, reconciledomain.ErrSubmissionMismatch):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, reconciledomain.ErrGatewayUnavailable),
		errors.Is(err, paymentdomain.ErrTransientIO):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationErrorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request", true
	case errors.Is(err, paymentdomain.ErrInvalidDecision):
		return "invalid_decision", true
	case errors.Is(err, invoicedomain.ErrInvalidVoidReason):
		return "invalid_reason", true
	case errors.Is(err, invoicedomain.ErrInvalidInvoice):
		return "invalid_invoice", true
	case errors.Is(err, ledgerdomain.ErrInvalidFilter):
		return "invalid_filter", true
	case errors.Is(err, ledgerdomain.ErrMixedCurrency):
		return "currency_required", true
	case errors.Is(err, reviewdomain.ErrInvalidKind):
		return "invalid_kind", true
	case errors.Is(err, auditdomain.ErrInvalidTimeRange):
		return "invalid_time_range", true
	default:
		return "", false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, paymentdomain.ErrSubmissionNotFound),
		errors.Is(err, paymentdomain.ErrRecordNotFound),
		errors.Is(err, reviewdomain.ErrReviewNotFound),
		errors.Is(err, entitlementdomain.ErrEntitlementTargetNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog returns the response type and a stable code for the
// request log line.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 && payload.Errors[0].Code != "" {
		code = payload.Errors[0].Code
	} else if status == http.StatusInternalServerError {
		code = "unhandled"
	}
	return payload.Type, code
}
