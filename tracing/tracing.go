// Package tracing wraps OpenTelemetry so the kernel can open a span per
// syscall without depending on the SDK directly. Until Init is called every
// span is a no-op.
package tracing

import (
	"context"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/FlashLizard/os-pke-lab"

var (
	providerOnce sync.Once
	providerErr  error
	provider     *sdktrace.TracerProvider
	output       io.Closer
)

// Init installs a stdout exporter writing to outputFile, or to stdout when
// outputFile is empty. Only the first call has any effect; the file is
// closed by Shutdown.
func Init(service, instance, outputFile string) error {
	var (
		w io.Writer = os.Stdout
		f *os.File
	)

	if outputFile != "" {
		var err error

		f, err = os.Create(outputFile)
		if err != nil {
			return err
		}
		w = f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		closeFile(f)
		return err
	}

	installed, err := install(service, instance, exporter)
	if !installed {
		closeFile(f)
		return err
	}

	if f != nil {
		output = f
	}

	return err
}

func InitWithExporter(service, instance string, exporter sdktrace.SpanExporter) error {
	if exporter == nil {
		return nil
	}

	_, err := install(service, instance, exporter)
	return err
}

func install(service, instance string, exporter sdktrace.SpanExporter) (bool, error) {
	var installed bool

	providerOnce.Do(func() {
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				attribute.String("service.name", service),
				attribute.String("service.instance.id", instance),
			),
		)
		if err != nil {
			providerErr = err
			return
		}

		provider = sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
			sdktrace.WithResource(res),
		)

		otel.SetTracerProvider(provider)
		installed = true
	})

	return installed, providerErr
}

func closeFile(f *os.File) {
	if f != nil {
		f.Close()
	}
}

// Shutdown flushes and stops the installed provider, if any, and closes
// the trace file opened by Init.
func Shutdown(ctx context.Context) error {
	var err error

	if provider != nil {
		err = provider.Shutdown(ctx)
		provider = nil
	}

	if output != nil {
		if cerr := output.Close(); err == nil {
			err = cerr
		}
		output = nil
	}

	return err
}

type Span struct {
	span trace.Span
}

func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	return ctx, &Span{span: span}
}

func (s *Span) SetInt(key string, v int64) *Span {
	if s == nil {
		return s
	}

	s.span.SetAttributes(attribute.Int64(key, v))
	return s
}

func (s *Span) SetString(key, v string) *Span {
	if s == nil {
		return s
	}

	s.span.SetAttributes(attribute.String(key, v))
	return s
}

// SetStatus records err on the span, or an OK status when err is nil.
func (s *Span) SetStatus(err error) {
	if s == nil {
		return
	}

	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
}

func (s *Span) End() {
	if s == nil {
		return
	}

	s.span.End()
}
