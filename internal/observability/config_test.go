package observability

import (
	"testing"

	"github.com/smallbiznis/coursepay/internal/config"
	"github.com/stretchr/testify/assert"
)

func mapLookup(values map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadConfig(config.Config{Environment: "production", AppVersion: "1.2.0"}, mapLookup(nil))

	assert.Equal(t, "coursepay", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.Equal(t, 1.0, cfg.PaymentSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg := loadConfig(config.Config{AppName: "coursepay-worker", Environment: "production"}, mapLookup(map[string]string{
		"LOG_LEVEL":                          " DEBUG ",
		"OTEL_ENABLED":                       "off",
		"OTEL_EXPORTER_OTLP_PROTOCOL":        "grpc",
		"OTEL_EXPORTER_OTLP_TRACES_PROTOCOL": "HTTP",
		"OTEL_SAMPLING_RATIO":                "nope",
		"OTEL_PAYMENT_SAMPLING_RATIO":        "3",
	}))

	assert.Equal(t, "coursepay-worker", cfg.ServiceName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Debug())
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.Equal(t, 1.0, cfg.PaymentSamplingRatio)
}
