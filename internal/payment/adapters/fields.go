package adapters

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/smallbiznis/coursepay/internal/payment/domain"
)

// Amount accepts integer minor units encoded as a JSON number or numeric string.
type Amount struct {
	Value int64
	Set   bool
	bad   bool
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			a.bad = true
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		a.bad = true
		return nil
	}
	a.Value = parsed
	a.Set = true
	return nil
}

// Decode unmarshals a JSON object or reports a malformed payload.
func Decode(raw []byte, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.Malformed("body", "is empty")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.Malformed("body", "is not a JSON object")
	}
	return nil
}

// Common validates the fields every source must carry.
func Common(userID, courseID string, amount Amount, currency string) (string, string, int64, string, error) {
	userID = strings.TrimSpace(userID)
	courseID = strings.TrimSpace(courseID)
	currency = strings.ToUpper(strings.TrimSpace(currency))

	if amount.bad || !amount.Set {
		return "", "", 0, "", domain.Malformed("amount", "must be an integer in minor units")
	}
	if amount.Value <= 0 {
		return "", "", 0, "", domain.Malformed("amount", "must be positive")
	}
	if currency == "" {
		return "", "", 0, "", domain.Malformed("currency", "is required")
	}
	if len(currency) != 3 {
		return "", "", 0, "", domain.Malformed("currency", "must be an ISO 4217 code")
	}
	if userID == "" {
		return "", "", 0, "", domain.Malformed("userId", "is required")
	}
	if courseID == "" {
		return "", "", 0, "", domain.Malformed("courseId", "is required")
	}
	return userID, courseID, amount.Value, currency, nil
}
