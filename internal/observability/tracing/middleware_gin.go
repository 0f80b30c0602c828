package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/coursepay/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware opens a server span per request and, once the handler ran,
// tags it with the payment channel, the caller's role and the payment key in
// the path. Access codes in public lookup paths are never recorded.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("coursepay/http")
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		startOpts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindServer)}
		if source := paymentSource(c.FullPath()); source != "" {
			startOpts = append(startOpts, trace.WithAttributes(attribute.String(PaymentSourceKey, source)))
		}
		ctx, span := tracer.Start(ctx, "HTTP "+method, startOpts...)
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(SafeAttributes(routeAttributes(c, route, status, time.Since(start))...)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

func routeAttributes(c *gin.Context, route string, status int, elapsed time.Duration) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
		attribute.Int64("http.server_duration_ms", elapsed.Milliseconds()),
	}
	if key := strings.TrimSpace(c.Param("key")); key != "" {
		attrs = append(attrs, attribute.String("payment.natural_key", key))
	}
	if role, _ := obscontext.ActorFromContext(c.Request.Context()); role != "" {
		attrs = append(attrs, attribute.String("actor.role", role))
	}
	return attrs
}

func paymentSource(route string) string {
	switch {
	case strings.HasPrefix(route, "/v1/gateway/"):
		return "gateway"
	case strings.HasPrefix(route, "/v1/manual/"):
		return "manual"
	}
	return ""
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
