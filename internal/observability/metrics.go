// Package observability wires OpenTelemetry metrics and tracing for the
// workflow service and exposes them to Prometheus.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"

	"nodebase/backend/internal/apperror"
)

// ScopeName names the instrumentation scope of the workflow service.
const ScopeName = "nodebase.workflows"

// Tracer returns the tracer used for workflow operation spans.
func Tracer() trace.Tracer {
	return otel.Tracer(ScopeName)
}

// Metrics records workflow operation outcomes.
type Metrics struct {
	operations metric.Int64Counter
	duration   metric.Float64Histogram
	graphNodes metric.Int64Histogram
}

// NewMetrics registers the workflow instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	operations, err := meter.Int64Counter(
		"workflow_operations_total",
		metric.WithDescription("Workflow operations by name and outcome"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"workflow_operation_duration_seconds",
		metric.WithDescription("Duration of workflow operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	graphNodes, err := meter.Int64Histogram(
		"workflow_graph_nodes",
		metric.WithDescription("Number of nodes per replaced graph"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100, 250),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{operations: operations, duration: duration, graphNodes: graphNodes}, nil
}

// NewNopMetrics returns Metrics that record nothing.
func NewNopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(ScopeName))
	return m
}

// Record counts one finished operation. The outcome is "ok" or the error kind.
func (m *Metrics) Record(ctx context.Context, operation string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperror.KindOf(err))
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.operations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(started).Seconds(), attrs)
}

// RecordGraphSize records the node count of an accepted graph replacement.
func (m *Metrics) RecordGraphSize(ctx context.Context, nodes int) {
	m.graphNodes.Record(ctx, int64(nodes))
}

// Provider bundles the meter provider and the /metrics handler backed by it.
type Provider struct {
	MeterProvider *sdkmetric.MeterProvider
	Handler       http.Handler
}

// Meter returns a meter for the workflow scope.
func (p *Provider) Meter() metric.Meter {
	return p.MeterProvider.Meter(ScopeName)
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.MeterProvider.Shutdown(ctx)
}

// NewPrometheusProvider builds a meter provider exporting to a dedicated
// Prometheus registry and installs it as the global provider.
func NewPrometheusProvider() (*Provider, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	return &Provider{
		MeterProvider: mp,
		Handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	}, nil
}
