package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes reconciliation instruments.
type Metrics struct {
	paymentEvents       metric.Int64Counter
	unknownStatuses     metric.Int64Counter
	settlementOutcomes  metric.Int64Counter
	entitlementsGranted metric.Int64Counter
	invoicesIssued      metric.Int64Counter
	operatorReviews     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "coursepay"
	}
	meter := provider.Meter(name)

	paymentEvents, err := meter.Int64Counter("coursepay_payment_events_total")
	if err != nil {
		return nil, err
	}
	unknownStatuses, err := meter.Int64Counter("coursepay_unknown_status_total")
	if err != nil {
		return nil, err
	}
	settlementOutcomes, err := meter.Int64Counter("coursepay_settlement_outcomes_total")
	if err != nil {
		return nil, err
	}
	entitlementsGranted, err := meter.Int64Counter("coursepay_entitlements_granted_total")
	if err != nil {
		return nil, err
	}
	invoicesIssued, err := meter.Int64Counter("coursepay_invoices_issued_total")
	if err != nil {
		return nil, err
	}
	operatorReviews, err := meter.Int64Counter("coursepay_operator_reviews_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		paymentEvents:       paymentEvents,
		unknownStatuses:     unknownStatuses,
		settlementOutcomes:  settlementOutcomes,
		entitlementsGranted: entitlementsGranted,
		invoicesIssued:      invoicesIssued,
		operatorReviews:     operatorReviews,
	}, nil
}

// NewNoop returns instruments bound to a no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordPaymentEvent counts normalized payment events.
func (m *Metrics) RecordPaymentEvent(ctx context.Context, source, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordUnknownStatus(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.unknownStatuses.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSettlementOutcome counts guard results (acquired, already_settled, in_flight).
func (m *Metrics) RecordSettlementOutcome(ctx context.Context, source, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.settlementOutcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordEntitlementGranted(ctx context.Context, created bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.Bool("created", created))
	m.entitlementsGranted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordInvoiceIssued(ctx context.Context, currency string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("currency", strings.ToUpper(strings.TrimSpace(currency))))
	m.invoicesIssued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordOperatorReview(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.operatorReviews.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"source":      {},
	"status":      {},
	"outcome":     {},
	"created":     {},
	"currency":    {},
	"kind":        {},
	"route":       {},
	"method":      {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
