package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Model artifact locations. The gateway expects model.json,
	// feature_names.json, and metadata.json under ArtifactsDir.
	ArtifactsDir string

	// Training data sources. DatabaseURL is optional; when set, sensor
	// readings come from Postgres instead of the CSV directory.
	EnvJSONPath string
	SensorDir   string
	DatabaseURL string

	// Alignment parameters.
	Bucket          time.Duration
	SensorTolerance time.Duration
	EnvTolerance    time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	flushInterval, err := envDuration("BATCH_FLUSH_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	bucket, err := envDuration("ALIGN_BUCKET", time.Hour)
	if err != nil {
		return nil, err
	}
	sensorTol, err := envDuration("ALIGN_SENSOR_TOLERANCE", 2*time.Hour)
	if err != nil {
		return nil, err
	}
	envTol, err := envDuration("ALIGN_ENV_TOLERANCE", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	batchSize, err := envInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   envOrDefault("KAFKA_SOURCE_TOPIC", "raw-observations"),
		KafkaSinkTopic:     envOrDefault("KAFKA_SINK_TOPIC", "risk-predictions"),
		KafkaGroupID:       envOrDefault("KAFKA_GROUP_ID", "rockfall-risk"),
		HTTPAddr:           envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		ArtifactsDir:       envOrDefault("ARTIFACTS_DIR", "ml/artifacts"),
		EnvJSONPath:        envOrDefault("ENV_JSON_PATH", "data/environmental.json"),
		SensorDir:          envOrDefault("SENSOR_DIR", "data/sensors"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Bucket:             bucket,
		SensorTolerance:    sensorTol,
		EnvTolerance:       envTol,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.ArtifactsDir == "" {
		return nil, errors.New("ARTIFACTS_DIR is required")
	}
	if cfg.Bucket <= 0 || cfg.SensorTolerance <= 0 || cfg.EnvTolerance <= 0 {
		return nil, errors.New("alignment durations must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
