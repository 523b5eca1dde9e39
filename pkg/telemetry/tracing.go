package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/batchlane/batchlane/internal/build"
)

const DefaultServiceName = "batchlane"

type TracerOption func(d *customTracer)

func WithOTLPEndpoint(endpoint string) TracerOption {
	return func(d *customTracer) {
		d.endpoint = endpoint
	}
}

func WithServiceName(serviceName string) TracerOption {
	return func(d *customTracer) {
		d.serviceName = serviceName
	}
}

func WithSamplingRatio(samplingRatio float64) TracerOption {
	return func(d *customTracer) {
		d.samplingRatio = samplingRatio
	}
}

// WithSlowBatchThreshold keeps only the traces whose root span (one batch)
// took at least the given duration. Zero exports every trace.
func WithSlowBatchThreshold(threshold time.Duration) TracerOption {
	return func(d *customTracer) {
		d.slowBatchThreshold = threshold
	}
}

// WithExporter replaces the OTLP exporter. Used by tests.
func WithExporter(exp sdktrace.SpanExporter) TracerOption {
	return func(d *customTracer) {
		d.exporter = exp
	}
}

type customTracer struct {
	endpoint    string
	serviceName string

	samplingRatio      float64
	slowBatchThreshold time.Duration

	exporter sdktrace.SpanExporter
}

// MustNewTracerProvider builds a batching OTLP/gRPC tracer provider, installs
// it as the global provider and sets the W3C propagators. It panics when the
// exporter cannot be created.
func MustNewTracerProvider(opts ...TracerOption) TracerProvider {
	tracer := &customTracer{
		serviceName:   DefaultServiceName,
		samplingRatio: 1,
	}

	for _, opt := range opts {
		opt(tracer)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceNameKey.String(tracer.serviceName),
			semconv.ServiceVersionKey.String(build.Version),
		))
	if err != nil {
		panic(err)
	}

	exp := tracer.exporter
	if exp == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		exp, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(tracer.endpoint),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to establish a connection with the otlp exporter: %v", err))
		}
	}

	if tracer.slowBatchThreshold > 0 {
		exp = NewSlowBatchSpanExporter(exp, tracer.slowBatchThreshold)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tracer.samplingRatio))),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exp)),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetTracerProvider(tp)

	return &tracerProvider{tp: tp}
}

// TraceError marks span as failed with err.
func TraceError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

type slowBatchSpanExporter struct {
	wrapped   sdktrace.SpanExporter
	threshold time.Duration
}

var _ sdktrace.SpanExporter = (*slowBatchSpanExporter)(nil)

// NewSlowBatchSpanExporter forwards to exporter only the spans belonging to a
// trace whose root span lasted at least threshold.
//
// If the exporter is nil, spans are dropped.
func NewSlowBatchSpanExporter(exporter sdktrace.SpanExporter, threshold time.Duration) sdktrace.SpanExporter {
	return &slowBatchSpanExporter{wrapped: exporter, threshold: threshold}
}

func (s *slowBatchSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if s.wrapped == nil {
		return nil
	}

	slow := make(map[trace.TraceID]struct{})
	for _, span := range spans {
		if span.Parent().IsValid() {
			continue
		}
		if span.EndTime().Sub(span.StartTime()) >= s.threshold {
			slow[span.SpanContext().TraceID()] = struct{}{}
		}
	}

	keep := make([]sdktrace.ReadOnlySpan, 0, len(spans))
	for _, span := range spans {
		if _, ok := slow[span.SpanContext().TraceID()]; ok {
			keep = append(keep, span)
		}
	}
	if len(keep) == 0 {
		return nil
	}

	return s.wrapped.ExportSpans(ctx, keep)
}

func (s *slowBatchSpanExporter) Shutdown(ctx context.Context) error {
	if s.wrapped == nil {
		return nil
	}
	return s.wrapped.Shutdown(ctx)
}
