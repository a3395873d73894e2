package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nguyentranbao-ct/family-chat/internal/config"
	"github.com/nguyentranbao-ct/family-chat/internal/models"
	"github.com/nguyentranbao-ct/family-chat/internal/usecase"
	log "github.com/nguyentranbao-ct/family-chat/pkg/logger/logctx"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier hands notifications to the dispatcher through a kafka topic,
// one record per recipient keyed by the recipient id.
type KafkaNotifier struct {
	writer messageWriter
}

var _ usecase.Notifier = (*KafkaNotifier)(nil)

func NewKafkaNotifier(conf *config.Config) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(conf.Kafka.Brokers...),
			Topic:        conf.Kafka.NotificationTopic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

type record struct {
	RecipientID string `json:"recipient_id"`
	models.Notification
}

func encode(n models.Notification) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(n.RecipientIDs))
	for _, id := range n.RecipientIDs {
		value, err := json.Marshal(record{RecipientID: id.Hex(), Notification: n})
		if err != nil {
			return nil, fmt.Errorf("marshal notification: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(id.Hex()),
			Value: value,
			Time:  n.CreatedAt,
		})
	}
	return msgs, nil
}

func (k *KafkaNotifier) Notify(ctx context.Context, n models.Notification) error {
	msgs, err := encode(n)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write notifications: %w", err)
	}
	log.Debugw(ctx, "notifications queued", "chat_id", n.ChatID.Hex(), "message_id", n.MessageID.Hex(), "recipients", len(msgs))
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

// LogNotifier only logs, for deployments without kafka.
type LogNotifier struct{}

var _ usecase.Notifier = LogNotifier{}

func (LogNotifier) Notify(ctx context.Context, n models.Notification) error {
	log.Debugw(ctx, "notification dropped, kafka disabled", "chat_id", n.ChatID.Hex(), "recipients", len(n.RecipientIDs))
	return nil
}
