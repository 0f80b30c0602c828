package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SourceKind identifies the channel a payment arrived through.
type SourceKind string

const (
	SourceGateway SourceKind = "gateway"
	SourceManual  SourceKind = "manual"
)

func (k SourceKind) Valid() bool {
	return k == SourceGateway || k == SourceManual
}

// SettlementStatus is the canonical, closed set of payment states.
type SettlementStatus string

const (
	StatusPending  SettlementStatus = "pending"
	StatusSettled  SettlementStatus = "settled"
	StatusRejected SettlementStatus = "rejected"
	StatusFailed   SettlementStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s SettlementStatus) IsTerminal() bool {
	switch s {
	case StatusSettled, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

func (s SettlementStatus) Valid() bool {
	return s == StatusPending || s.IsTerminal()
}

// Claim states stored alongside a record by the settlement guard.
const (
	ClaimNone     = ""
	ClaimInFlight = "in_flight"
	ClaimDone     = "done"
	ClaimBlocked  = "blocked"
)

// PaymentRecord is the canonical, source-agnostic view of one payment.
type PaymentRecord struct {
	ID            snowflake.ID     `json:"id" gorm:"column:id"`
	NaturalKey    string           `json:"natural_key" gorm:"column:natural_key;primaryKey"`
	SourceKind    SourceKind       `json:"source_kind" gorm:"column:source_kind"`
	SourceID      string           `json:"source_id" gorm:"column:source_id"`
	Reference     string           `json:"reference,omitempty" gorm:"column:reference"`
	UserID        string           `json:"user_id" gorm:"column:user_id"`
	CourseID      string           `json:"course_id" gorm:"column:course_id"`
	Amount        int64            `json:"amount" gorm:"column:amount"`
	Currency      string           `json:"currency" gorm:"column:currency"`
	RawStatus     string           `json:"raw_status" gorm:"column:raw_status"`
	Status        SettlementStatus `json:"status" gorm:"column:status"`
	Flagged       bool             `json:"flagged" gorm:"column:flagged"`
	Payload       datatypes.JSON   `json:"-" gorm:"column:payload"`
	ClaimState    string           `json:"-" gorm:"column:claim_state"`
	ClaimToken    string           `json:"-" gorm:"column:claim_token"`
	ClaimedAt     *time.Time       `json:"-" gorm:"column:claimed_at"`
	BlockReason   string           `json:"-" gorm:"column:block_reason"`
	LastCheckedAt *time.Time       `json:"-" gorm:"column:last_checked_at"`
	CreatedAt     time.Time        `json:"created_at" gorm:"column:created_at"`
	UpdatedAt     time.Time        `json:"updated_at" gorm:"column:updated_at"`
	SettledAt     *time.Time       `json:"settled_at,omitempty" gorm:"column:settled_at"`
}

func (PaymentRecord) TableName() string { return "payment_records" }

// UnknownStatusWarning is reported when a raw status is outside the known vocabulary.
type UnknownStatusWarning struct {
	Source    string
	RawStatus string
}

func (w UnknownStatusWarning) String() string {
	return "unknown status " + strings.TrimSpace(w.RawStatus) + " from " + w.Source
}

// ListScope narrows record listings.
type ListScope struct {
	UserID   string
	CourseID string
	Status   SettlementStatus
	Source   SourceKind
}

const (
	gatewayKeyPrefix = "gw:"
	manualKeyPrefix  = "man:"
)

// GatewayNaturalKey derives the dedup identity of a gateway payment.
func GatewayNaturalKey(transactionID string) string {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return ""
	}
	return gatewayKeyPrefix + transactionID
}

// ManualNaturalKey derives the dedup identity of a manual submission.
func ManualNaturalKey(submissionID, reference string) string {
	submissionID = strings.TrimSpace(submissionID)
	reference = strings.TrimSpace(reference)
	if submissionID == "" || reference == "" {
		return ""
	}
	return manualKeyPrefix + submissionID + ":" + reference
}

// SourceOfKey returns the channel encoded in a natural key prefix.
func SourceOfKey(naturalKey string) (SourceKind, bool) {
	switch {
	case strings.HasPrefix(naturalKey, gatewayKeyPrefix):
		return SourceGateway, true
	case strings.HasPrefix(naturalKey, manualKeyPrefix):
		return SourceManual, true
	default:
		return "", false
	}
}
