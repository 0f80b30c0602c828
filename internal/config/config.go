package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	PublicBaseURL string
	AuthJWTSecret string
	NodeID        int64
	SeedDemo      bool

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBSQLitePath      string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis       RedisConfig
	Gateway     GatewayConfig
	Invoice     InvoiceConfig
	RateLimit   RateLimitConfig
	MetricsPush MetricsPushConfig
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type GatewayConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
}

// RateLimitConfig throttles public invoice lookups per client IP.
type RateLimitConfig struct {
	Enabled     bool
	LookupRate  float64
	LookupBurst int
}

// MetricsPushConfig ships worker metrics to a collector for processes that do
// not serve /metrics.
type MetricsPushConfig struct {
	Enabled   bool
	Exporter  string
	Endpoint  string
	AuthToken string
	Interval  time.Duration
}

type InvoiceConfig struct {
	NumberPrefix   string
	NumberTemplate string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "coursepay"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		NodeID:        getenvInt64("SNOWFLAKE_NODE_ID", 1),
		SeedDemo:      getenvBool("SEED_DEMO", false),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "coursepay"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBSQLitePath:      getenv("DATABASE_SQLITE_PATH", "coursepay.db"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Gateway: GatewayConfig{
			BaseURL:       strings.TrimRight(strings.TrimSpace(getenv("GATEWAY_BASE_URL", "")), "/"),
			APIKey:        strings.TrimSpace(getenv("GATEWAY_API_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("GATEWAY_WEBHOOK_SECRET", "")),
			Timeout:       time.Duration(getenvInt64("GATEWAY_TIMEOUT_MS", 5000)) * time.Millisecond,
		},
		Invoice: InvoiceConfig{
			NumberPrefix:   getenv("INVOICE_NUMBER_PREFIX", "INV"),
			NumberTemplate: getenv("INVOICE_NUMBER_TEMPLATE", "{PREFIX}-{YYYY}{MM}-{HASH10}"),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getenvBool("RATE_LIMIT_ENABLED", false),
			LookupRate:  getenvFloat64("RATE_LIMIT_LOOKUP_RATE", 1),
			LookupBurst: int(getenvInt64("RATE_LIMIT_LOOKUP_BURST", 10)),
		},
		MetricsPush: MetricsPushConfig{
			Enabled:   getenvBool("METRICS_PUSH_ENABLED", false),
			Exporter:  strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", "prometheus_pushgateway")),
			Endpoint:  strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(os.Getenv("METRICS_PUSH_AUTH_TOKEN")),
			Interval:  time.Duration(getenvInt64("METRICS_PUSH_INTERVAL_SECONDS", 30)) * time.Second,
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat64(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
