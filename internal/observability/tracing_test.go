package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewTracer_Disabled(t *testing.T) {
	tracer, err := NewTracer(TracerConfig{ServiceName: "test", Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tracer)
	assert.NotNil(t, tracer.Tracer())

	// Shutdown of a disabled tracer is a no-op.
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewTracer_EnabledWithoutEndpoint(t *testing.T) {
	tracer, err := NewTracer(TracerConfig{
		ServiceName:  "test",
		Enabled:      true,
		SamplingRate: 1.0,
	})
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.Tracer().Start(context.Background(), "test-span")
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestCreateSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), createSampler(1.0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), createSampler(2.0).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), createSampler(0).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), createSampler(-1).Description())

	ratio := createSampler(0.5)
	assert.Contains(t, ratio.Description(), "ParentBased")
}
