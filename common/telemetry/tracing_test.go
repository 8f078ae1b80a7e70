package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/burakmert236/volei-list/common/config"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), config.TracingConfig{Enabled: false}, "roster", nil)
	require.NoError(t, err)
	require.False(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "noop")
	require.False(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_StdoutExportsOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(context.Background(), config.TracingConfig{
		Enabled:    true,
		Exporter:   ExporterStdout,
		SampleRate: 1,
	}, "roster", &buf)
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "roster.register")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	require.Contains(t, buf.String(), "roster.register")
}

func TestNewProvider_UnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), config.TracingConfig{
		Enabled:  true,
		Exporter: "zipkin",
	}, "roster", nil)
	require.ErrorContains(t, err, "unsupported exporter type")
}

func TestEndSpan_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	EndSpan(span, errors.New("boom"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, codes.Error, ended[0].Status().Code)
	require.Equal(t, "boom", ended[0].Status().Description)
}
