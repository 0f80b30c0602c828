package tracing

import (
	"net/http"
	"strings"

	"github.com/smallbiznis/coursepay/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type roundTripper struct {
	base   http.RoundTripper
	tracer trace.Tracer
}

// WrapHTTPClient returns a copy of client whose requests run inside a client
// span and carry the trace context downstream. Query strings stay out of the
// span because gateway URLs embed transaction ids.
func WrapHTTPClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &roundTripper{base: base, tracer: otel.Tracer("coursepay/http-client")}
	return &wrapped
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := rt.tracer.Start(req.Context(), "HTTP "+strings.ToUpper(req.Method), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(SafeAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("server.address", req.URL.Host),
	)...)

	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	correlation.Inject(ctx, req.Header)

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		span.RecordError(SafeError(err))
		span.SetStatus(codes.Error, "transport error")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, "upstream error")
	}
	return resp, nil
}
