package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/givebridge/givebridge/internal/config"
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

// Metrics exposes application-level instruments.
type Metrics struct {
	webhookEvents     metric.Int64Counter
	emailsSent        metric.Int64Counter
	transfersExecuted metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.MetricsEnabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter("grpc", cfg.OTLPEndpoint)
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
		log.Info("metrics initialized", zap.String("endpoint", cfg.OTLPEndpoint))
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg config.Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = "givebridge"
	}
	meter := provider.Meter(name)

	webhookEvents, err := meter.Int64Counter("givebridge_webhook_events_total")
	if err != nil {
		return nil, err
	}
	emailsSent, err := meter.Int64Counter("givebridge_emails_sent_total")
	if err != nil {
		return nil, err
	}
	transfersExecuted, err := meter.Int64Counter("givebridge_transfers_executed_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		webhookEvents:     webhookEvents,
		emailsSent:        emailsSent,
		transfersExecuted: transfersExecuted,
	}, nil
}

// RecordWebhookEvent increments processed webhook event counts.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	attrs := filterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEmailSent increments sent email counts.
func (m *Metrics) RecordEmailSent(ctx context.Context, emailType string) {
	if m == nil {
		return
	}
	attrs := filterAttributes(attribute.String("email_type", strings.TrimSpace(emailType)))
	m.emailsSent.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTransfer increments executed transfer/payout counts.
func (m *Metrics) RecordTransfer(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := filterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.transfersExecuted.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"event_type": {},
	"email_type": {},
	"kind":       {},
}

// filterAttributes strips disallowed labels to keep metrics low-cardinality.
func filterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

var Module = fx.Module("observability.metrics",
	fx.Provide(NewProvider),
	fx.Provide(New),
)
