package rollup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smallbiznis/coursepay/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
)

// Aggregate totals a merged ledger. Rejected and failed entries are listed
// but contribute to neither total.
func Aggregate(ledger domain.Ledger, filter domain.Filter) (domain.Summary, error) {
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return domain.Summary{}, fmt.Errorf("%w: from must be before to", domain.ErrInvalidFilter)
	}
	currency := strings.ToUpper(strings.TrimSpace(filter.Currency))

	entries := make([]domain.Entry, 0, len(ledger.Entries))
	for _, entry := range ledger.Entries {
		if !matches(entry, filter, currency) {
			continue
		}
		entries = append(entries, entry)
	}

	summary := domain.Summary{
		Currency: currency,
		Courses:  []domain.CourseRevenue{},
		Entries:  entries,
	}

	courses := make(map[string]*domain.CourseRevenue)
	for _, entry := range entries {
		entryCurrency := strings.ToUpper(entry.Currency)
		if summary.Currency == "" {
			summary.Currency = entryCurrency
		} else if summary.Currency != entryCurrency {
			return domain.Summary{}, fmt.Errorf("%w: %s and %s", domain.ErrMixedCurrency, summary.Currency, entryCurrency)
		}

		course, ok := courses[entry.CourseID]
		if !ok {
			course = &domain.CourseRevenue{CourseID: entry.CourseID}
			courses[entry.CourseID] = course
		}
		course.Count++

		switch entry.Status {
		case paymentdomain.StatusSettled:
			summary.TotalSettled += entry.Amount
			course.Settled += entry.Amount
		case paymentdomain.StatusPending:
			summary.TotalPending += entry.Amount
			course.Pending += entry.Amount
		}
	}

	for _, course := range courses {
		summary.Courses = append(summary.Courses, *course)
	}
	sort.Slice(summary.Courses, func(i, j int) bool {
		return summary.Courses[i].CourseID < summary.Courses[j].CourseID
	})
	return summary, nil
}

func matches(entry domain.Entry, filter domain.Filter, currency string) bool {
	if filter.UserID != "" && entry.UserID != filter.UserID {
		return false
	}
	if filter.CourseID != "" && entry.CourseID != filter.CourseID {
		return false
	}
	if filter.From != nil && entry.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && !entry.CreatedAt.Before(*filter.To) {
		return false
	}
	if currency != "" && !strings.EqualFold(entry.Currency, currency) {
		return false
	}
	return true
}
