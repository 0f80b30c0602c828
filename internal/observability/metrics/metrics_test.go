package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("source", "gateway"),
		attribute.String("natural_key", "gw:TX-1"),
		attribute.String("user_id", "u-1"),
		attribute.String("outcome", "acquired"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "natural_key" || attr.Key == "user_id" {
			t.Fatalf("high-cardinality label %s leaked", attr.Key)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordPaymentEvent(context.Background(), "gateway", "settled")
	m.RecordOperatorReview(context.Background(), "invoice_collision")

	noop := NewNoop()
	if noop == nil {
		t.Fatalf("expected noop metrics")
	}
	noop.RecordSettlementOutcome(context.Background(), "manual", "in_flight")
}
