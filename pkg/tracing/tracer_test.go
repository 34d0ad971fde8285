package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false}, zap.NewNop())

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestConfigSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), Config{SampleRate: 1}.Sampler().Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), Config{SampleRate: 0}.Sampler().Description())
	assert.Contains(t, Config{SampleRate: 0.5}.Sampler().Description(), "TraceIDRatioBased")
}

func TestConfigIsProduction(t *testing.T) {
	assert.True(t, Config{Environment: "production"}.IsProduction())
	assert.True(t, Config{Environment: "staging"}.IsProduction())
	assert.False(t, Config{Environment: "development"}.IsProduction())
}
