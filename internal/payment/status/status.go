// Package status maps source-specific status strings onto the canonical
// settlement status. Unknown inputs map to pending and are never settled.
package status

import (
	"strings"

	"github.com/smallbiznis/coursepay/internal/payment/domain"
)

// Vocabulary names a raw status table.
type Vocabulary string

const (
	VocabularyGateway Vocabulary = "gateway"
	VocabularyManual  Vocabulary = "manual"
	VocabularyLegacy  Vocabulary = "legacy"
)

var tables = map[Vocabulary]map[string]domain.SettlementStatus{
	VocabularyGateway: {
		"valid":      domain.StatusSettled,
		"completed":  domain.StatusSettled,
		"success":    domain.StatusSettled,
		"succeeded":  domain.StatusSettled,
		"paid":       domain.StatusSettled,
		"settlement": domain.StatusSettled,
		"capture":    domain.StatusSettled,
		"failed":     domain.StatusFailed,
		"failure":    domain.StatusFailed,
		"cancelled":  domain.StatusFailed,
		"canceled":   domain.StatusFailed,
		"expired":    domain.StatusFailed,
		"deny":       domain.StatusFailed,
		"denied":     domain.StatusFailed,
		"pending":    domain.StatusPending,
		"processing": domain.StatusPending,
		"created":    domain.StatusPending,
		"initiated":  domain.StatusPending,
	},
	VocabularyManual: {
		"approved":     domain.StatusSettled,
		"completed":    domain.StatusSettled,
		"verified":     domain.StatusSettled,
		"rejected":     domain.StatusRejected,
		"declined":     domain.StatusRejected,
		"cancelled":    domain.StatusFailed,
		"canceled":     domain.StatusFailed,
		"pending":      domain.StatusPending,
		"submitted":    domain.StatusPending,
		"under_review": domain.StatusPending,
	},
	VocabularyLegacy: {
		"completed": domain.StatusSettled,
		"paid":      domain.StatusSettled,
		"approved":  domain.StatusSettled,
		"valid":     domain.StatusSettled,
		"success":   domain.StatusSettled,
		"pending":   domain.StatusPending,
		"waiting":   domain.StatusPending,
		"rejected":  domain.StatusRejected,
		"failed":    domain.StatusFailed,
		"cancelled": domain.StatusFailed,
		"canceled":  domain.StatusFailed,
		"expired":   domain.StatusFailed,
	},
}

// Normalize maps a raw status for the given source. The warning is non-nil
// whenever the raw value is not in the source's table.
func Normalize(raw string, kind domain.SourceKind) (domain.SettlementStatus, *domain.UnknownStatusWarning) {
	return NormalizeVocabulary(raw, Vocabulary(kind))
}

// NormalizeVocabulary is Normalize over an explicit table, including the legacy store's.
func NormalizeVocabulary(raw string, vocabulary Vocabulary) (domain.SettlementStatus, *domain.UnknownStatusWarning) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if table, ok := tables[vocabulary]; ok {
		if status, ok := table[key]; ok {
			return status, nil
		}
	}
	return domain.StatusPending, &domain.UnknownStatusWarning{
		Source:    string(vocabulary),
		RawStatus: raw,
	}
}
