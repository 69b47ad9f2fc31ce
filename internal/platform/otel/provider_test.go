package otel_test

import (
	"context"
	"testing"

	"github.com/phrazzld/enroll-api/internal/config"
	"github.com/phrazzld/enroll-api/internal/platform/otel"
	"github.com/stretchr/testify/require"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := otel.Setup(context.Background(), config.TelemetryConfig{ServiceName: "enroll-api"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address, so nothing is exported.
	shutdown, err := otel.Setup(context.Background(), config.TelemetryConfig{
		OTLPEndpoint: "http://192.0.2.1:4318",
		ServiceName:  "enroll-api",
	})
	require.NoError(t, err)
	// No spans were recorded, so shutdown has nothing to flush.
	require.NoError(t, shutdown(context.Background()))
}
