package manual

import (
	"strings"

	"github.com/smallbiznis/coursepay/internal/payment/adapters"
	"github.com/smallbiznis/coursepay/internal/payment/domain"
	"gorm.io/datatypes"
)

// Submission is what a student files when paying outside the gateway.
type Submission struct {
	SubmissionID string          `json:"submissionId"`
	Reference    string          `json:"reference"`
	UserID       string          `json:"userId"`
	CourseID     string          `json:"courseId"`
	Amount       adapters.Amount `json:"amount"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
	RawStatus    string          `json:"rawStatus"`
}

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Kind() domain.SourceKind {
	return domain.SourceManual
}

func (a *Adapter) Normalize(raw []byte) (domain.PaymentRecord, error) {
	var sub Submission
	if err := adapters.Decode(raw, &sub); err != nil {
		return domain.PaymentRecord{}, err
	}

	submissionID := strings.TrimSpace(sub.SubmissionID)
	if submissionID == "" {
		return domain.PaymentRecord{}, domain.Malformed("submissionId", "is required")
	}
	reference := strings.TrimSpace(sub.Reference)
	if reference == "" {
		return domain.PaymentRecord{}, domain.Malformed("reference", "is required")
	}
	if strings.Contains(submissionID, ":") {
		return domain.PaymentRecord{}, domain.Malformed("submissionId", "must not contain ':'")
	}

	userID, courseID, amount, currency, err := adapters.Common(sub.UserID, sub.CourseID, sub.Amount, sub.Currency)
	if err != nil {
		return domain.PaymentRecord{}, err
	}

	rawStatus := strings.TrimSpace(sub.RawStatus)
	if rawStatus == "" {
		rawStatus = strings.TrimSpace(sub.Status)
	}
	if rawStatus == "" {
		rawStatus = "submitted"
	}

	return domain.PaymentRecord{
		NaturalKey: domain.ManualNaturalKey(submissionID, reference),
		SourceKind: domain.SourceManual,
		SourceID:   submissionID,
		Reference:  reference,
		UserID:     userID,
		CourseID:   courseID,
		Amount:     amount,
		Currency:   currency,
		RawStatus:  rawStatus,
		Status:     domain.StatusPending,
		Payload:    datatypes.JSON(raw),
	}, nil
}

var _ domain.Adapter = (*Adapter)(nil)
