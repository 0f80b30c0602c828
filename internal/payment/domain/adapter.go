package domain

import (
	"context"
	"net/http"
)

// Adapter turns a raw source payload into a canonical record. Adapters never write.
type Adapter interface {
	Kind() SourceKind
	Normalize(raw []byte) (PaymentRecord, error)
}

// Verifier is implemented by adapters whose source signs its deliveries.
type Verifier interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
}
