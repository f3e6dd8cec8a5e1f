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

// Batch edit outcomes.
const (
	BatchEditApplied  = "applied"
	BatchEditRejected = "rejected"
	BatchEditFailed   = "failed"
)

// Metrics exposes catalog instruments.
type Metrics struct {
	defaultVariations metric.Int64Counter
	batchEdits        metric.Int64Counter
	batchEditRows     metric.Int64Counter
	cacheLookups      metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
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

// New creates the catalog instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "storefront"
	}
	meter := provider.Meter(name)

	defaultVariations, err := meter.Int64Counter("storefront_default_variations_created_total",
		metric.WithDescription("Default variations created for products saved without one."))
	if err != nil {
		return nil, err
	}
	batchEdits, err := meter.Int64Counter("storefront_batch_edits_total",
		metric.WithDescription("Batch variation edit requests by result."))
	if err != nil {
		return nil, err
	}
	batchEditRows, err := meter.Int64Counter("storefront_batch_edit_rows_total",
		metric.WithDescription("Variation rows written by applied batch edits."))
	if err != nil {
		return nil, err
	}
	cacheLookups, err := meter.Int64Counter("storefront_cache_lookups_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("storefront_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		defaultVariations: defaultVariations,
		batchEdits:        batchEdits,
		batchEditRows:     batchEditRows,
		cacheLookups:      cacheLookups,
		rateLimitDenied:   rateLimitDenied,
	}, nil
}

// NewNoop returns instruments that record nothing.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordDefaultVariationCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.defaultVariations.Add(ctx, 1)
}

// RecordBatchEdit counts a batch edit request and, when applied, its rows.
func (m *Metrics) RecordBatchEdit(ctx context.Context, result string, rows int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("result", strings.TrimSpace(result)))
	m.batchEdits.Add(ctx, 1, metric.WithAttributes(attrs...))
	if result == BatchEditApplied && rows > 0 {
		m.batchEditRows.Add(ctx, int64(rows))
	}
}

func (m *Metrics) RecordCacheLookup(ctx context.Context, cache string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	attrs := FilterAttributes(
		attribute.String("cache", strings.TrimSpace(cache)),
		attribute.String("outcome", outcome),
	)
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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

// Product ids, slugs and search text never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint": {},
	"result":   {},
	"reason":   {},
	"cache":    {},
	"outcome":  {},
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
