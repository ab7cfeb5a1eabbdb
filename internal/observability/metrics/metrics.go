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

// Metrics exposes application-level instruments.
type Metrics struct {
	scansCompleted   metric.Int64Counter
	scanDenials      metric.Int64Counter
	debitUnrecorded  metric.Int64Counter
	grantsApplied    metric.Int64Counter
	grantsDuplicate  metric.Int64Counter
	webhookEvents    metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
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

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "complyscan"
	}
	meter := provider.Meter(name)

	scansCompleted, err := meter.Int64Counter("complyscan_scans_completed_total")
	if err != nil {
		return nil, err
	}
	scanDenials, err := meter.Int64Counter("complyscan_scan_denials_total")
	if err != nil {
		return nil, err
	}
	debitUnrecorded, err := meter.Int64Counter("complyscan_debit_unrecorded_total")
	if err != nil {
		return nil, err
	}
	grantsApplied, err := meter.Int64Counter("complyscan_grants_applied_total")
	if err != nil {
		return nil, err
	}
	grantsDuplicate, err := meter.Int64Counter("complyscan_grants_duplicate_total")
	if err != nil {
		return nil, err
	}
	webhookEvents, err := meter.Int64Counter("complyscan_webhook_events_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("complyscan_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		scansCompleted:  scansCompleted,
		scanDenials:     scanDenials,
		debitUnrecorded: debitUnrecorded,
		grantsApplied:   grantsApplied,
		grantsDuplicate: grantsDuplicate,
		webhookEvents:   webhookEvents,
		rateLimitDenied: rateLimitDenied,
	}, nil
}

// NewNop returns instruments backed by the noop meter provider, for tests.
func NewNop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordScanCompleted increments successful scan counts.
func (m *Metrics) RecordScanCompleted(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("scan_kind", strings.TrimSpace(kind)))
	m.scansCompleted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordScanDenied increments admission denial counts.
func (m *Metrics) RecordScanDenied(ctx context.Context, kind, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("scan_kind", strings.TrimSpace(kind)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.scanDenials.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDebitUnrecorded counts scans delivered without a committed debit.
// These represent accounting drift that needs manual reconciliation.
func (m *Metrics) RecordDebitUnrecorded(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("scan_kind", strings.TrimSpace(kind)))
	m.debitUnrecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGrantApplied increments applied grant counts.
func (m *Metrics) RecordGrantApplied(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("provider", strings.TrimSpace(provider)))
	m.grantsApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGrantDuplicate counts redelivered sessions skipped by the idempotency ledger.
func (m *Metrics) RecordGrantDuplicate(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("provider", strings.TrimSpace(provider)))
	m.grantsDuplicate.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWebhookEvent increments webhook ingestion counts.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, provider, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
	)
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"scan_kind":   {},
	"reason":      {},
	"provider":    {},
	"event_type":  {},
	"endpoint":    {},
	"status_code": {},
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
