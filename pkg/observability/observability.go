// Package observability provides OpenTelemetry tracing and RED metrics
// for the command exchange surface and the background drain loop.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
	Enabled        bool
	Insecure       bool
}

// Provider manages trace and metric providers plus the engine's RED
// instruments.
type Provider struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer

	requestCounter metric.Int64Counter
	errorCounter   metric.Int64Counter
	durationHist   metric.Float64Histogram
	tasksDrained   metric.Int64Counter
	commandsSaved  metric.Int64Counter
}

// New creates a provider. When disabled it returns a provider whose
// instruments are no-ops, so call sites never branch.
func New(ctx context.Context, config Config) (*Provider, error) {
	p := &Provider{config: config}
	if !config.Enabled {
		p.tracer = noop.NewTracerProvider().Tracer("")
		return p, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	p.tracer = p.tracerProvider.Tracer(config.ServiceName)

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(p.meterProvider)

	meter := p.meterProvider.Meter(config.ServiceName)
	if p.requestCounter, err = meter.Int64Counter("offchain.requests",
		metric.WithDescription("Inbound command requests")); err != nil {
		return nil, err
	}
	if p.errorCounter, err = meter.Int64Counter("offchain.request_errors",
		metric.WithDescription("Rejected inbound command requests")); err != nil {
		return nil, err
	}
	if p.durationHist, err = meter.Float64Histogram("offchain.request_duration_ms",
		metric.WithDescription("Inbound request handling duration")); err != nil {
		return nil, err
	}
	if p.tasksDrained, err = meter.Int64Counter("offchain.tasks_drained",
		metric.WithDescription("Background tasks executed")); err != nil {
		return nil, err
	}
	if p.commandsSaved, err = meter.Int64Counter("offchain.commands_saved",
		metric.WithDescription("Accepted command versions")); err != nil {
		return nil, err
	}
	return p, nil
}

// StartSpan begins a span; no-op when telemetry is disabled.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordRequest records one inbound request in the RED instruments.
func (p *Provider) RecordRequest(ctx context.Context, statusCode int, duration time.Duration) {
	if p.requestCounter == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Int("http.status_code", statusCode))
	p.requestCounter.Add(ctx, 1, attrs)
	if statusCode >= 400 {
		p.errorCounter.Add(ctx, 1, attrs)
	}
	p.durationHist.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordTask records one drained background task.
func (p *Provider) RecordTask(ctx context.Context, action string, err error) {
	if p.tasksDrained == nil {
		return
	}
	p.tasksDrained.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task.action", action),
		attribute.Bool("task.failed", err != nil),
	))
}

// RecordCommandSaved records one accepted command version.
func (p *Provider) RecordCommandSaved(ctx context.Context, commandType string) {
	if p.commandsSaved == nil {
		return
	}
	p.commandsSaved.Add(ctx, 1, metric.WithAttributes(attribute.String("command.type", commandType)))
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if p.meterProvider != nil {
		return p.meterProvider.Shutdown(ctx)
	}
	return nil
}
