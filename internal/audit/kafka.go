package audit

import (
	"context"
	"encoding/json"
	"fmt"
)

// RecordPublisher is the slice of the Kafka producer the sink needs.
type RecordPublisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// KafkaSink writes events as JSON records keyed by member id, so every event
// for one member lands on the same partition in order.
type KafkaSink struct {
	producer RecordPublisher
}

func NewKafkaSink(producer RecordPublisher) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.producer.Publish(ctx, []byte(event.MemberID), value)
}
