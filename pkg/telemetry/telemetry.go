package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/mikeboe/deep-research/pkg/deepresearch"
)

const serviceName = "deep-research"

// Provider owns the tracer provider lifecycle. A Provider built without an
// endpoint is a no-op and is always safe to use.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Init sets up an OTLP HTTP trace exporter. An empty endpoint disables
// tracing entirely.
func Init(ctx context.Context, endpoint string, insecure bool) (*Provider, error) {
	if endpoint == "" {
		return &Provider{}, nil
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(stripScheme(endpoint)),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

// Tracer returns the research tracer backed by this provider.
func (p *Provider) Tracer() deepresearch.Tracer {
	if p.tp == nil {
		return deepresearch.NoopTracer()
	}
	return &tracer{tracer: p.tp.Tracer(serviceName)}
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// tracer adapts an OpenTelemetry tracer to the engine's narrow interface.
type tracer struct {
	tracer oteltrace.Tracer
}

func (t *tracer) StartSpan(ctx context.Context, name string) (context.Context, deepresearch.Span) {
	ctx, s := t.tracer.Start(ctx, name)
	return ctx, &span{span: s}
}

type span struct {
	span oteltrace.Span
}

func (s *span) SetString(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

func (s *span) SetInt(key string, value int) {
	s.span.SetAttributes(attribute.Int(key, value))
}

func (s *span) RecordError(err error) {
	s.span.RecordError(err)
}

func (s *span) End() {
	s.span.End()
}

// stripScheme removes the scheme prefix; the HTTP exporter expects host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return endpoint
}
