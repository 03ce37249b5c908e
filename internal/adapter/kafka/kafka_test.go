package kafka

import (
	"context"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slopesense/rockfall-risk/internal/domain"
)

func TestMapMessage(t *testing.T) {
	r := &Reader{}
	msg := kafkago.Message{
		Key:       []byte("ridge-7"),
		Value:     []byte(`{"rainfall_mm": 12.5}`),
		Topic:     "raw-observations",
		Partition: 2,
		Offset:    42,
	}

	raw := r.mapMessage(msg)

	assert.Equal(t, []byte("ridge-7"), raw.Key)
	assert.JSONEq(t, `{"rainfall_mm": 12.5}`, string(raw.Value))
	assert.Equal(t, "raw-observations", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.NotNil(t, raw.Commit)
}

func TestSerializeToMessage(t *testing.T) {
	observed := time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC)
	scored := time.Date(2025, 2, 1, 3, 0, 5, 0, time.UTC)
	prediction := domain.Prediction{
		Probability: 0.91,
		RiskClass:   "HIGH",
		ObservedAt:  observed,
		ScoredAt:    scored,
	}

	msg, err := serializeToMessage(prediction)
	require.NoError(t, err)

	assert.Equal(t, []byte("2025-02-01T03:00:00Z"), msg.Key)
	assert.Contains(t, string(msg.Value), `"risk_class":"HIGH"`)
	assert.Contains(t, string(msg.Value), `"probability":0.91`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "risk_class", msg.Headers[0].Key)
	assert.Equal(t, []byte("HIGH"), msg.Headers[0].Value)
	assert.Equal(t, "scored_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(scored.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestWriter_LoadBatchEmpty(t *testing.T) {
	w := &Writer{}
	assert.NoError(t, w.LoadBatch(context.Background(), nil))
}
