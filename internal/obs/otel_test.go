package obs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracer_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{ServiceName: "fanpass"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	_, span := Tracer().Start(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
}

func TestConfig_ForComponent(t *testing.T) {
	cfg := Config{ServiceName: "fanpass", Version: "1.0.0"}

	consumers := cfg.ForComponent("consumers")
	assert.Equal(t, "fanpass-consumers", consumers.ServiceName)
	assert.Equal(t, "1.0.0", consumers.Version)
	assert.Equal(t, "fanpass", cfg.ServiceName)
	assert.Equal(t, "fanpass", cfg.ForComponent("").ServiceName)
}

func TestInitTracer_WithEndpointRecordsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := InitTracer(context.Background(), Config{ServiceName: "fanpass", Endpoint: "127.0.0.1:1"}.ForComponent("consumers"))
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "Reconciler.Reconcile")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	// коллектора нет, ошибка экспорта при остановке ожидаема
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
}
