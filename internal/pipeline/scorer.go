package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/slopesense/rockfall-risk/internal/domain"
	"github.com/slopesense/rockfall-risk/internal/gateway"
	"github.com/slopesense/rockfall-risk/internal/stream"
)

// GatewayScorer implements Scorer by decoding observation payloads and
// scoring them through the model gateway.
type GatewayScorer struct {
	gateway *gateway.Gateway
	logger  *slog.Logger
}

// NewScorer creates a GatewayScorer.
func NewScorer(g *gateway.Gateway, logger *slog.Logger) *GatewayScorer {
	return &GatewayScorer{gateway: g, logger: logger}
}

func (s *GatewayScorer) Score(ctx context.Context, raw domain.RawMessage) (domain.Prediction, error) {
	obs, err := decodeObservation(raw.Value)
	if err != nil {
		return domain.Prediction{}, err
	}
	return s.gateway.PredictOne(obs)
}

// decodeObservation parses a JSON observation payload. Numeric fields and
// numeric strings become features; a "timestamp" field, when parsable,
// becomes the observation time. Non-numeric fields are dropped; an
// unparsable or empty payload is a malformed observation.
func decodeObservation(value []byte) (domain.Observation, error) {
	var payload map[string]any
	if err := json.Unmarshal(value, &payload); err != nil {
		return domain.Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	if len(payload) == 0 {
		return domain.Observation{}, fmt.Errorf("decode observation: empty payload")
	}

	obs := domain.Observation{Fields: make(map[string]float64, len(payload))}
	for name, v := range payload {
		if name == "timestamp" {
			if ts, ok := stream.ParseTimestamp(v); ok {
				obs.Timestamp = ts
			}
			continue
		}
		switch n := v.(type) {
		case float64:
			obs.Fields[name] = n
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				obs.Fields[name] = f
			}
		}
	}
	return obs, nil
}
