package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/coursepay/internal/authorization"
	ledgerdomain "github.com/smallbiznis/coursepay/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
)

type ledgerEntryView struct {
	UserID    string                         `json:"user_id"`
	CourseID  string                         `json:"course_id"`
	Amount    int64                          `json:"amount"`
	Currency  string                         `json:"currency"`
	Status    paymentdomain.SettlementStatus `json:"status"`
	CreatedAt time.Time                      `json:"created_at"`
	SettledAt *time.Time                     `json:"settled_at,omitempty"`
}

type ledgerSnapshotView struct {
	Currency     string                       `json:"currency"`
	TotalSettled int64                        `json:"total_settled"`
	TotalPending int64                        `json:"total_pending"`
	Courses      []ledgerdomain.CourseRevenue `json:"courses"`
	Entries      []ledgerEntryView            `json:"entries"`
}

func toLedgerSnapshotView(summary ledgerdomain.Summary) ledgerSnapshotView {
	entries := make([]ledgerEntryView, 0, len(summary.Entries))
	for _, e := range summary.Entries {
		entries = append(entries, ledgerEntryView{
			UserID:    e.UserID,
			CourseID:  e.CourseID,
			Amount:    e.Amount,
			Currency:  e.Currency,
			Status:    e.Status,
			CreatedAt: e.CreatedAt,
			SettledAt: e.SettledAt,
		})
	}
	courses := summary.Courses
	if courses == nil {
		courses = []ledgerdomain.CourseRevenue{}
	}
	return ledgerSnapshotView{
		Currency:     summary.Currency,
		TotalSettled: summary.TotalSettled,
		TotalPending: summary.TotalPending,
		Courses:      courses,
		Entries:      entries,
	}
}

// GetLedgerSnapshot returns the merged ledger. Learners only ever see their
// own payments; staff may filter by any user.
func (s *Server) GetLedgerSnapshot(c *gin.Context) {
	a, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	from, err := parseOptionalTime(c.Query("from"))
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalTime(c.Query("to"))
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	filter := ledgerdomain.Filter{
		UserID:   strings.TrimSpace(c.Query("user_id")),
		CourseID: strings.TrimSpace(c.Query("course_id")),
		From:     from,
		To:       to,
		Currency: strings.ToUpper(strings.TrimSpace(c.Query("currency"))),
	}
	if !s.allowed(c, authorization.ObjectLedger, authorization.ActionLedgerViewAll) {
		filter.UserID = a.UserID
	}

	summary, err := s.ledgerSvc.Snapshot(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toLedgerSnapshotView(summary)})
}
