// internal/common/observability/metrics.go
package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider       *metric.MeterProvider
	meter               otelmetric.Meter
	aggregationCounter  otelmetric.Int64Counter
	aggregationDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	aggregationCounter, _ := meter.Int64Counter(
		"aggregations.completed",
		otelmetric.WithDescription("Number of aggregation runs completed"),
	)

	aggregationDuration, _ := meter.Float64Histogram(
		"aggregations.duration",
		otelmetric.WithDescription("Aggregation run duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:       provider,
		meter:               meter,
		aggregationCounter:  aggregationCounter,
		aggregationDuration: aggregationDuration,
	}
}

func (o *Observability) RecordAggregation(ctx context.Context, job, status string) {
	if o.aggregationCounter != nil {
		o.aggregationCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("job", job),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordAggregationDuration(ctx context.Context, duration time.Duration, job string) {
	if o.aggregationDuration != nil {
		o.aggregationDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("job", job),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
