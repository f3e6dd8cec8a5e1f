package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("result", "applied"),
		attribute.String("product_id", "456"),
		attribute.String("endpoint", "batch_edit"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "result" && attrs[1].Key != "result" {
		t.Fatalf("expected result to be retained")
	}
	if attrs[0].Key != "endpoint" && attrs[1].Key != "endpoint" {
		t.Fatalf("expected endpoint to be retained")
	}
}

func TestRecordBatchEditCountsRows(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(Config{ServiceName: "storefront-test"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordBatchEdit(ctx, BatchEditApplied, 3)
	m.RecordBatchEdit(ctx, BatchEditRejected, 3)
	m.RecordDefaultVariationCreated(ctx)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[md.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), totals["storefront_batch_edits_total"])
	assert.Equal(t, int64(3), totals["storefront_batch_edit_rows_total"])
	assert.Equal(t, int64(1), totals["storefront_default_variations_created_total"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordBatchEdit(context.Background(), BatchEditApplied, 1)
	m.RecordCacheLookup(context.Background(), "product", true)
	m.RecordRateLimitDenied(context.Background(), "batch_edit", "rate")
	m.RecordDefaultVariationCreated(context.Background())
}
