package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitOtelSDK installs global tracer, meter and logger providers exporting
// to the OTLP/HTTP collector at endpoint (host:port). The returned function
// flushes pending data and shuts every provider down.
func InitOtelSDK(
	ctx context.Context, endpoint, serviceName, version string, pushInterval time.Duration,
) (func(context.Context) error, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("missing otel collector endpoint")
	}
	if pushInterval <= 0 {
		pushInterval = 5 * time.Second
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build otel resource: %w", err)
	}

	tracerProvider, err := newTracerProvider(ctx, endpoint, res, pushInterval)
	if err != nil {
		return nil, err
	}
	meterProvider, err := newMeterProvider(ctx, endpoint, res, pushInterval)
	if err != nil {
		// nolint
		tracerProvider.Shutdown(ctx)
		return nil, err
	}
	loggerProvider, err := newLoggerProvider(ctx, endpoint, res)
	if err != nil {
		// nolint
		tracerProvider.Shutdown(ctx)
		// nolint
		meterProvider.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	global.SetLoggerProvider(loggerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	log.Infof("exporting telemetry to %s every %s", endpoint, pushInterval)

	return func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.ForceFlush(ctx), tracerProvider.Shutdown(ctx),
			meterProvider.ForceFlush(ctx), meterProvider.Shutdown(ctx),
			loggerProvider.ForceFlush(ctx), loggerProvider.Shutdown(ctx),
		)
	}, nil
}

func newTracerProvider(
	ctx context.Context, endpoint string, res *resource.Resource, pushInterval time.Duration,
) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(
		ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(pushInterval)),
		sdktrace.WithResource(res),
	), nil
}

func newMeterProvider(
	ctx context.Context, endpoint string, res *resource.Resource, pushInterval time.Duration,
) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetrichttp.New(
		ctx, otlpmetrichttp.WithEndpoint(endpoint), otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(pushInterval)),
		),
	), nil
}

func newLoggerProvider(
	ctx context.Context, endpoint string, res *resource.Resource,
) (*sdklog.LoggerProvider, error) {
	exporter, err := otlploghttp.New(
		ctx, otlploghttp.WithEndpoint(endpoint), otlploghttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp log exporter: %w", err)
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	), nil
}
