package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/coursepay/internal/config"
)

// Config is the observability slice of the process configuration.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	// OtelSamplingRatio covers ordinary requests. Gateway and manual payment
	// routes are sampled at PaymentSamplingRatio.
	OtelSamplingRatio    float64
	PaymentSamplingRatio float64
}

func LoadConfig(cfg config.Config) Config {
	return loadConfig(cfg, os.LookupEnv)
}

type lookupFunc func(string) (string, bool)

func loadConfig(cfg config.Config, lookup lookupFunc) Config {
	env := envReader(lookup)

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "coursepay"
	}
	protocol := env.lower("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	if traces := env.lower("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", ""); traces != "" {
		protocol = traces
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          env.str("DEPLOYMENT_ENV", cfg.Environment),
		Version:              env.str("SERVICE_VERSION", cfg.AppVersion),
		LogLevel:             env.lower("LOG_LEVEL", "info"),
		LogFormat:            env.lower("LOG_FORMAT", "json"),
		OtelEnabled:          env.boolean("OTEL_ENABLED", true),
		OtelExporterEndpoint: env.str("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    env.ratio("OTEL_SAMPLING_RATIO", 0.1),
		PaymentSamplingRatio: env.ratio("OTEL_PAYMENT_SAMPLING_RATIO", 1),
	}
}

func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

type envReader lookupFunc

func (r envReader) str(key, def string) string {
	if value, ok := r(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(def)
}

func (r envReader) lower(key, def string) string {
	return strings.ToLower(r.str(key, def))
}

func (r envReader) boolean(key string, def bool) bool {
	switch r.lower(key, "") {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

// ratio parses a sampling ratio and clamps it to [0, 1].
func (r envReader) ratio(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(r.str(key, ""), 64)
	if err != nil {
		return def
	}
	switch {
	case parsed < 0:
		return 0
	case parsed > 1:
		return 1
	}
	return parsed
}
