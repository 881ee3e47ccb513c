package repository

import (
	"context"

	"AllocDesk/internal/domain/models"
	"AllocDesk/internal/domain/repository"
	pkgkafka "AllocDesk/pkg/kafka"
)

// KafkaSnapshotPublisher ships allocation snapshots to a Kafka topic,
// keyed by session ID so one session's snapshots stay ordered on a
// single partition.
type KafkaSnapshotPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSnapshotPublisher creates the publisher.
func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) repository.SnapshotPublisher {
	if topic == "" {
		topic = "allocdesk.snapshots"
	}
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

func (p *KafkaSnapshotPublisher) Publish(ctx context.Context, snap *models.AllocationSnapshot) error {
	return p.producer.Publish(ctx, p.topic, []byte(snap.SessionID), snap)
}

func (p *KafkaSnapshotPublisher) Close() error {
	return p.producer.Close()
}
