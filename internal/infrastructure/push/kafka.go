// Package push implements realtime.NotificationSender backends.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v5"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	sharedConfig "github.com/orris-inc/livedesk/internal/shared/config"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

const defaultSendAttempts = 3

// Message is the record published for the push gateway.
type Message struct {
	RecipientID ids.UserID        `json:"recipient_id"`
	RoomID      ids.RoomID        `json:"room_id"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewSaramaConfig returns a producer config that waits for all in-sync
// replicas, as required by SyncProducer.
func NewSaramaConfig(cfg sharedConfig.KafkaConfig) *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = cfg.ClientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	return config
}

// NewKafkaProducer connects a sync producer to the configured brokers.
func NewKafkaProducer(cfg sharedConfig.KafkaConfig) (sarama.SyncProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return producer, nil
}

// KafkaSender publishes push requests to a Kafka topic keyed by recipient,
// so one recipient's pushes stay ordered.
type KafkaSender struct {
	producer     sarama.SyncProducer
	topic        string
	maxAttempts  uint
	initialDelay time.Duration
	logger       logger.Interface
}

func NewKafkaSender(producer sarama.SyncProducer, topic string, log logger.Interface) *KafkaSender {
	return &KafkaSender{
		producer:     producer,
		topic:        topic,
		maxAttempts:  defaultSendAttempts,
		initialDelay: 100 * time.Millisecond,
		logger:       log,
	}
}

func (s *KafkaSender) SendNewMessageNotification(ctx context.Context, recipient ids.UserID, roomID ids.RoomID, title, body string, data map[string]string) error {
	value, err := json.Marshal(Message{
		RecipientID: recipient,
		RoomID:      roomID,
		Title:       title,
		Body:        body,
		Data:        data,
		CreatedAt:   biztime.NowUTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode push message: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initialDelay

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		partition, offset, err := s.producer.SendMessage(&sarama.ProducerMessage{
			Topic: s.topic,
			Key:   sarama.StringEncoder(recipient.String()),
			Value: sarama.ByteEncoder(value),
		})
		if err != nil {
			s.logger.Warnw("push publish attempt failed",
				"recipient_id", recipient,
				"room_id", roomID,
				"error", err,
			)
			return struct{}{}, err
		}
		s.logger.Debugw("push published",
			"recipient_id", recipient,
			"partition", partition,
			"offset", offset,
		)
		return struct{}{}, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(s.maxAttempts))
	if err != nil {
		return fmt.Errorf("failed to publish push message: %w", err)
	}
	return nil
}

func (s *KafkaSender) Close() error {
	return s.producer.Close()
}
