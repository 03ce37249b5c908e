package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-observations", cfg.KafkaSourceTopic)
	assert.Equal(t, "risk-predictions", cfg.KafkaSinkTopic)
	assert.Equal(t, "rockfall-risk", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, "ml/artifacts", cfg.ArtifactsDir)
	assert.Equal(t, time.Hour, cfg.Bucket)
	assert.Equal(t, 2*time.Hour, cfg.SensorTolerance)
	assert.Equal(t, 30*time.Minute, cfg.EnvTolerance)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("ARTIFACTS_DIR", "/var/lib/rockfall/artifacts")
	t.Setenv("ALIGN_BUCKET", "30m")
	t.Setenv("ALIGN_SENSOR_TOLERANCE", "1h")
	t.Setenv("ALIGN_ENV_TOLERANCE", "15m")
	t.Setenv("DATABASE_URL", "postgres://localhost/rockfall")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, "/var/lib/rockfall/artifacts", cfg.ArtifactsDir)
	assert.Equal(t, 30*time.Minute, cfg.Bucket)
	assert.Equal(t, time.Hour, cfg.SensorTolerance)
	assert.Equal(t, 15*time.Minute, cfg.EnvTolerance)
	assert.Equal(t, "postgres://localhost/rockfall", cfg.DatabaseURL)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad shutdown timeout", "SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"bad batch size", "BATCH_SIZE", "zero"},
		{"negative batch size", "BATCH_SIZE", "-5"},
		{"bad bucket", "ALIGN_BUCKET", "1 hour"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}
