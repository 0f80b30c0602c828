package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestPaymentSamplerKeepsPaymentTraffic(t *testing.T) {
	sampler := NewPaymentSampler(0, 1)
	traceID := trace.TraceID{0x0f, 0x01}

	ordinary := sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       traceID,
		Name:          "HTTP GET",
	})
	assert.Equal(t, sdktrace.Drop, ordinary.Decision)

	payment := sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       traceID,
		Name:          "HTTP POST",
		Attributes:    []attribute.KeyValue{attribute.String(PaymentSourceKey, "gateway")},
	})
	assert.Equal(t, sdktrace.RecordAndSample, payment.Decision)
}
