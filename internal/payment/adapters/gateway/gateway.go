package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/coursepay/internal/payment/adapters"
	"github.com/smallbiznis/coursepay/internal/payment/domain"
	"gorm.io/datatypes"
)

const (
	SignatureHeader    = "X-Gateway-Signature"
	signatureTolerance = 5 * time.Minute
)

// Event is the gateway's notification and validation body.
type Event struct {
	TransactionID string          `json:"transactionId"`
	ValidationID  string          `json:"validationId"`
	UserID        string          `json:"userId"`
	CourseID      string          `json:"courseId"`
	Amount        adapters.Amount `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	RawStatus     string          `json:"rawStatus"`
}

type Adapter struct {
	webhookSecret string
	now           func() time.Time
}

// New builds the gateway adapter. Without a secret every webhook is rejected;
// validation payloads fetched from the gateway still normalize.
func New(webhookSecret string) *Adapter {
	return &Adapter{
		webhookSecret: strings.TrimSpace(webhookSecret),
		now:           time.Now,
	}
}

func (a *Adapter) Kind() domain.SourceKind {
	return domain.SourceGateway
}

func (a *Adapter) Normalize(raw []byte) (domain.PaymentRecord, error) {
	var event Event
	if err := adapters.Decode(raw, &event); err != nil {
		return domain.PaymentRecord{}, err
	}

	sourceID := strings.TrimSpace(event.TransactionID)
	if sourceID == "" {
		sourceID = strings.TrimSpace(event.ValidationID)
	}
	if sourceID == "" {
		return domain.PaymentRecord{}, domain.Malformed("transactionId", "is required")
	}

	userID, courseID, amount, currency, err := adapters.Common(event.UserID, event.CourseID, event.Amount, event.Currency)
	if err != nil {
		return domain.PaymentRecord{}, err
	}

	return domain.PaymentRecord{
		NaturalKey: domain.GatewayNaturalKey(sourceID),
		SourceKind: domain.SourceGateway,
		SourceID:   sourceID,
		UserID:     userID,
		CourseID:   courseID,
		Amount:     amount,
		Currency:   currency,
		RawStatus:  rawStatus(event),
		Status:     domain.StatusPending,
		Payload:    datatypes.JSON(raw),
	}, nil
}

func rawStatus(event Event) string {
	if v := strings.TrimSpace(event.RawStatus); v != "" {
		return v
	}
	return strings.TrimSpace(event.Status)
}

// Verify checks the "t=<unix>,v1=<hex>" signature over "<t>.<body>".
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if a.webhookSecret == "" {
		return domain.ErrInvalidSignature
	}
	sigHeader := strings.TrimSpace(headers.Get(SignatureHeader))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignature(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}
	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.ErrInvalidSignature
	}
	age := a.now().Sub(time.Unix(unix, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return domain.ErrInvalidSignature
	}

	expected := Sign(a.webhookSecret, timestamp, payload)
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return domain.ErrInvalidSignature
}

// Sign computes the hex HMAC-SHA256 the gateway sends for a payload.
func Sign(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%s.%s", timestamp, string(payload))))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := make([]string, 0, 1)
	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature_header")
	}
	return timestamp, signatures, nil
}

var (
	_ domain.Adapter  = (*Adapter)(nil)
	_ domain.Verifier = (*Adapter)(nil)
)
