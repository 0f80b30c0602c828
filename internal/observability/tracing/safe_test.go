package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/v1/invoices/:number"),
		attribute.String("access_code", "ABCD-EFGH"),
		attribute.String("user_id", "u-1"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorKeepsOutermostMessage(t *testing.T) {
	err := fmt.Errorf("issue invoice: %w", errors.New("pq: duplicate key on invoices_access_code"))
	assert.EqualError(t, SafeError(err), "issue invoice")
	assert.Nil(t, SafeError(nil))
}
