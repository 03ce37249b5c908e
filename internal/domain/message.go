package domain

import "context"

// RawMessage is one unparsed observation message pulled from the source
// topic, with enough transport metadata for logging and offset commits.
type RawMessage struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte

	// Commit acknowledges the message at the source once its prediction is
	// safely published. Nil when the source does not track offsets.
	Commit func(ctx context.Context) error
}
