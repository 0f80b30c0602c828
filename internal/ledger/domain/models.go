package domain

import (
	"context"
	"errors"
	"time"

	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
)

var (
	ErrMixedCurrency = errors.New("ledger_mixed_currency")
	ErrInvalidFilter = errors.New("ledger_invalid_filter")
)

// StoreName identifies the schema generation an entry was read from.
type StoreName string

const (
	StoreLegacy StoreName = "legacy"
	StoreV2     StoreName = "v2"
)

// Entry is one payment as seen by a single store.
type Entry struct {
	NaturalKey string                         `json:"natural_key"`
	Store      StoreName                      `json:"store"`
	UserID     string                         `json:"user_id"`
	CourseID   string                         `json:"course_id"`
	Amount     int64                          `json:"amount"`
	Currency   string                         `json:"currency"`
	Status     paymentdomain.SettlementStatus `json:"status"`
	SourceKind paymentdomain.SourceKind       `json:"source_kind"`
	CreatedAt  time.Time                      `json:"created_at"`
	UpdatedAt  time.Time                      `json:"updated_at"`
	SettledAt  *time.Time                     `json:"settled_at,omitempty"`
}

// Ledger is the merged view: one entry per natural key.
type Ledger struct {
	Entries []Entry
}

// Scope narrows what a store reads. Empty fields match everything.
type Scope struct {
	UserID   string
	CourseID string
}

// Filter narrows aggregation. From is inclusive and To exclusive on CreatedAt.
type Filter struct {
	UserID   string
	CourseID string
	From     *time.Time
	To       *time.Time
	Currency string
}

func (f Filter) Scope() Scope {
	return Scope{UserID: f.UserID, CourseID: f.CourseID}
}

type CourseRevenue struct {
	CourseID string `json:"course_id"`
	Settled  int64  `json:"settled"`
	Pending  int64  `json:"pending"`
	Count    int    `json:"count"`
}

type Summary struct {
	Currency     string          `json:"currency"`
	TotalSettled int64           `json:"total_settled"`
	TotalPending int64           `json:"total_pending"`
	Courses      []CourseRevenue `json:"courses"`
	Entries      []Entry         `json:"entries"`
}

// Store reads payments from one schema generation. Stores never write.
type Store interface {
	Name() StoreName
	List(ctx context.Context, scope Scope) ([]Entry, error)
}

type Service interface {
	Snapshot(ctx context.Context, filter Filter) (Summary, error)
	Invalidate(ctx context.Context) error
}
