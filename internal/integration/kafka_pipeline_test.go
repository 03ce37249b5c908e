//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkatc "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/slopesense/rockfall-risk/internal/adapter/kafka"
	"github.com/slopesense/rockfall-risk/internal/config"
	"github.com/slopesense/rockfall-risk/internal/domain"
	"github.com/slopesense/rockfall-risk/internal/gateway"
	"github.com/slopesense/rockfall-risk/internal/model"
	"github.com/slopesense/rockfall-risk/internal/observability"
	"github.com/slopesense/rockfall-risk/internal/pipeline"
)

const (
	testSourceTopic = "test-observations"
	testSinkTopic   = "test-predictions"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-node Kafka container and returns its broker
// address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := kafkatc.Run(ctx, "confluentinc/confluent-local:7.5.0",
		kafkatc.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// trainArtifacts writes a rainfall/vibration artifact triple where high
// readings mark the positive class.
func trainArtifacts(t *testing.T, dir string) {
	t.Helper()
	rng := rand.New(rand.NewSource(31))
	var x [][]float64
	var y []float64
	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			x = append(x, []float64{50 + rng.Float64()*20, 0.8 + rng.Float64()*0.4})
			y = append(y, 1)
		} else {
			x = append(x, []float64{rng.Float64() * 5, rng.Float64() * 0.2})
			y = append(y, 0)
		}
	}
	m, meta, err := model.Train(x, y, model.TrainConfig{})
	require.NoError(t, err)
	require.NoError(t, model.SaveArtifacts(dir, m, []string{"rainfall_mm", "vibrations"}, meta))
}

func loadedGateway(t *testing.T) *gateway.Gateway {
	t.Helper()
	dir := t.TempDir()
	trainArtifacts(t, dir)
	g := gateway.New(dir, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, g.Load())
	return g
}

// readPrediction reads one prediction from the sink consumer.
func readPrediction(ctx context.Context, t *testing.T, consumer *kafkago.Reader) (domain.Prediction, map[string]string) {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var prediction domain.Prediction
	require.NoError(t, json.Unmarshal(msg.Value, &prediction), "unmarshal sink message")
	return prediction, headers
}

// TestKafkaReaderWriter verifies the adapter layer round-trips an
// observation through Kafka and a prediction back out.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("test-reader-%d", time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}

	payload := []byte(`{"timestamp": "2025-02-01T03:00:00Z", "rainfall_mm": 62.5, "vibrations": 1.1}`)
	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte("ridge-7"),
		Value: payload,
	}))

	// Extract via kafka.Reader. Retry because the consumer group may need
	// time to rebalance before partitions are assigned.
	reader := kafkaadapter.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawMessage
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("ridge-7"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	// Score and publish.
	scorer := pipeline.NewScorer(loadedGateway(t), discardLogger())
	prediction, err := scorer.Score(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, gateway.ClassHigh, prediction.RiskClass)

	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.Prediction{prediction}))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got, headers := readPrediction(ctx, t, consumer)
	assert.Equal(t, gateway.ClassHigh, headers["risk_class"])
	_, err = time.Parse(time.RFC3339, headers["scored_at"])
	assert.NoError(t, err, "scored_at should be valid RFC3339")
	assert.Equal(t, gateway.ClassHigh, got.RiskClass)
	assert.Greater(t, got.Probability, 0.66)
	assert.Equal(t, time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC), got.ObservedAt)
}

// TestPipelineEndToEnd wires the full scoring loop with real Kafka and
// verifies every observation comes back with the expected risk class.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("test-pipeline-%d", time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}

	// Half calm, half stormy observations.
	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	const total = 20
	msgs := make([]kafkago.Message, 0, total)
	for i := 0; i < total; i++ {
		payload := `{"rainfall_mm": 1.5, "vibrations": 0.1}`
		if i%2 == 1 {
			payload = `{"rainfall_mm": 65, "vibrations": 1.2}`
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(fmt.Sprintf("obs-%d", i)),
			Value: []byte(payload),
		})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	reader := kafkaadapter.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	scorer := pipeline.NewScorer(loadedGateway(t), discardLogger())
	p := pipeline.New(reader, scorer, writer, discardLogger(), observability.NewMetricsForTesting(), 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	classCounts := map[string]int{}
	for i := 0; i < total; i++ {
		prediction, headers := readPrediction(ctx, t, consumer)
		classCounts[prediction.RiskClass]++
		assert.Equal(t, prediction.RiskClass, headers["risk_class"])
		assert.False(t, prediction.ScoredAt.IsZero(), "missing scored_at")
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	assert.Equal(t, total/2, classCounts[gateway.ClassHigh], "high-risk count")
	assert.Equal(t, total/2, classCounts[gateway.ClassLow], "low-risk count")
}

// TestPipelinePoisonPill verifies an unparsable observation is skipped and
// the pipeline keeps scoring valid ones.
func TestPipelinePoisonPill(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("test-poison-%d", time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("good"), Value: []byte(`{"rainfall_mm": 65, "vibrations": 1.2}`)},
	))

	reader := kafkaadapter.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	scorer := pipeline.NewScorer(loadedGateway(t), discardLogger())
	p := pipeline.New(reader, scorer, writer, discardLogger(), observability.NewMetricsForTesting(), 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	prediction, _ := readPrediction(ctx, t, consumer)
	assert.Equal(t, gateway.ClassHigh, prediction.RiskClass)

	// No second message should arrive; the poison pill was skipped.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
