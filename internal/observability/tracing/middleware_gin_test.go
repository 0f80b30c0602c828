package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/coursepay/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func spanAttributes(attrs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		out[string(attr.Key)] = attr.Value.Emit()
	}
	return out
}

func TestGinMiddlewareTagsPaymentRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), "operator", "op-1"))
		c.Next()
	})
	r.GET("/v1/payments/:key/invoice", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/v1/public/invoices/:access_code", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.POST("/v1/gateway/webhook", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/v1/payments/gw:TXN-1/invoice", nil),
		httptest.NewRequest(http.MethodGet, "/v1/public/invoices/ABCD-EFGH", nil),
		httptest.NewRequest(http.MethodPost, "/v1/gateway/webhook", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	payment := spanAttributes(spans[0].Attributes())
	assert.Equal(t, "HTTP GET /v1/payments/:key/invoice", spans[0].Name())
	assert.Equal(t, "gw:TXN-1", payment["payment.natural_key"])
	assert.Equal(t, "operator", payment["actor.role"])
	assert.NotContains(t, payment, "payment.source")

	public := spanAttributes(spans[1].Attributes())
	for _, value := range public {
		assert.NotContains(t, value, "ABCD-EFGH")
	}

	webhook := spanAttributes(spans[2].Attributes())
	assert.Equal(t, "gateway", webhook["payment.source"])
	assert.Equal(t, "500", webhook["http.status_code"])
	assert.Equal(t, "Error", spans[2].Status().Code.String())
}
