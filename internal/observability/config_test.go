package observability

import (
	"testing"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFromPortalConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "production",
		AppVersion:  "1.2.3",
		Telemetry: config.TelemetryConfig{
			LogLevel:      "warn",
			LogFormat:     "json",
			OTLPEnabled:   true,
			OTLPEndpoint:  "otel:4317",
			OTLPProtocol:  "grpc",
			SamplingRatio: 7,
		},
	})

	assert.Equal(t, defaultServiceName, cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "otel:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestDebugInDevelopment(t *testing.T) {
	assert.True(t, Config{Environment: "development", LogLevel: "info"}.Debug())
	assert.True(t, Config{Environment: "production", LogLevel: "DEBUG"}.Debug())
}
