// Package correlation carries one id across the webhook delivery, return
// poll and revalidation calls that concern the same payment, and across the
// hop to the gateway.
package correlation

import (
	"context"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Header is read on inbound requests and set on outbound gateway calls.
const Header = "X-Correlation-Id"

const maxIDLength = 64

type correlationKey struct{}

func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(correlationKey{}).(string); ok {
		return val
	}
	return ""
}

// ContextWithCorrelationID ignores ids that are empty or unsafe to log.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if !valid(id) {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID returns the context's id, minting a ULID when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if cid := ExtractCorrelationID(ctx); cid != "" {
		return ctx, cid
	}
	cid := ulid.Make().String()
	return ContextWithCorrelationID(ctx, cid), cid
}

// FromHeader returns the caller's id, or "" when absent or malformed.
func FromHeader(h http.Header) string {
	id := strings.TrimSpace(h.Get(Header))
	if !valid(id) {
		return ""
	}
	return id
}

// Inject copies the context's id onto outbound headers.
func Inject(ctx context.Context, h http.Header) {
	if cid := ExtractCorrelationID(ctx); cid != "" {
		h.Set(Header, cid)
	}
}

func valid(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}
