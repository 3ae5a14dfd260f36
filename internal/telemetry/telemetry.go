package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "truthvision"

// Config controls telemetry setup.
type Config struct {
	Enabled  bool
	Endpoint string
	Protocol string // grpc | http
	Service  string
	Version  string
}

// Provider wires tracer/meter providers and exposes helpers.
type Provider struct {
	Enabled bool
	tracer  trace.Tracer
	meter   metric.Meter

	analysesCounter       metric.Int64Counter
	analysisDuration      metric.Float64Histogram
	sampledFrames         metric.Int64Histogram
	providerDuration      metric.Float64Histogram
	shutdownTraceProvider func(context.Context) error
	shutdownMeterProvider func(context.Context) error
}

// NewProvider configures OTEL exporters + providers. When disabled, returns no-op providers.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !cfg.Enabled {
		return newFromProviders(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider(), false), nil
	}

	protocol := strings.ToLower(strings.TrimSpace(cfg.Protocol))
	logrus.WithFields(logrus.Fields{
		"protocol": protocol,
		"endpoint": cfg.Endpoint,
	}).Info("telemetry enabled (OpenTelemetry OTLP); if no collector is listening, periodic 'failed to upload metrics' warnings are expected")

	service := cfg.Service
	if service == "" {
		service = instrumentationName
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", service),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	var (
		traceExp  sdktrace.SpanExporter
		metricExp sdkmetric.Exporter
	)
	switch protocol {
	case "", "grpc":
		traceExp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, err
		}
		metricExp, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithInsecure())
		if err != nil {
			return nil, err
		}
	case "http":
		traceExp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
		if err != nil {
			return nil, err
		}
		metricExp, err = otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported telemetry protocol %q", cfg.Protocol)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
	otel.SetMeterProvider(mp)

	p := newFromProviders(tp, mp, true)
	p.shutdownTraceProvider = tp.Shutdown
	p.shutdownMeterProvider = mp.Shutdown
	return p, nil
}

func newFromProviders(tp trace.TracerProvider, mp metric.MeterProvider, enabled bool) *Provider {
	p := &Provider{
		Enabled: enabled,
		tracer:  tp.Tracer(instrumentationName),
		meter:   mp.Meter(instrumentationName),
	}
	p.initInstruments()
	return p
}

func (p *Provider) initInstruments() {
	if p == nil {
		return
	}
	// Use meter to create instruments; ignore errors to keep telemetry best-effort.
	p.analysesCounter, _ = p.meter.Int64Counter("truthvision_analyses_total")
	p.analysisDuration, _ = p.meter.Float64Histogram("truthvision_analysis_duration_ms")
	p.sampledFrames, _ = p.meter.Int64Histogram("truthvision_sampled_frames")
	p.providerDuration, _ = p.meter.Float64Histogram("truthvision_provider_duration_ms")
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return tracenoop.NewTracerProvider().Tracer("")
	}
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	if p == nil {
		return metricnoop.NewMeterProvider().Meter("")
	}
	return p.meter
}

// Shutdown flushes providers.
func (p *Provider) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}
	if p.shutdownTraceProvider != nil {
		_ = p.shutdownTraceProvider(ctx)
	}
	if p.shutdownMeterProvider != nil {
		_ = p.shutdownMeterProvider(ctx)
	}
}

// RecordAnalysis emits the per-request counter and latency. frames is only
// recorded for video analyses.
func (p *Provider) RecordAnalysis(ctx context.Context, inputType, outcome string, durMs float64, frames int) {
	if p == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("truthvision.input_type", inputType),
		attribute.String("truthvision.outcome", outcome),
	)
	p.analysesCounter.Add(ctx, 1, labels)
	p.analysisDuration.Record(ctx, durMs, labels)
	if frames > 0 {
		p.sampledFrames.Record(ctx, int64(frames), labels)
	}
}

// RecordProviderDuration records one secondary-provider round trip.
func (p *Provider) RecordProviderDuration(ctx context.Context, provider, outcome string, durMs float64) {
	if p == nil {
		return
	}
	p.providerDuration.Record(ctx, durMs, metric.WithAttributes(
		attribute.String("truthvision.provider", provider),
		attribute.String("truthvision.outcome", outcome),
	))
}
