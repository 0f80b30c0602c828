package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// PaymentSourceKey marks spans that belong to a payment channel.
const PaymentSourceKey = "payment.source"

type paymentSampler struct {
	base    sdktrace.Sampler
	payment sdktrace.Sampler
}

// NewPaymentSampler samples root spans tagged with PaymentSourceKey at
// paymentRatio and everything else at ratio.
func NewPaymentSampler(ratio, paymentRatio float64) sdktrace.Sampler {
	return paymentSampler{
		base:    sdktrace.TraceIDRatioBased(ratio),
		payment: sdktrace.TraceIDRatioBased(paymentRatio),
	}
}

func (s paymentSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, attr := range p.Attributes {
		if attr.Key == PaymentSourceKey {
			return s.payment.ShouldSample(p)
		}
	}
	return s.base.ShouldSample(p)
}

func (s paymentSampler) Description() string {
	return fmt.Sprintf("PaymentSampler{base:%s,payment:%s}", s.base.Description(), s.payment.Description())
}
