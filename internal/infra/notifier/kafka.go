package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"class-reminder/internal/domain/entity"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the notifier uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig contains configuration for publishing reminders to Kafka topics.
type KafkaConfig struct {
	Brokers []string

	// WriteTimeout bounds one produce request.
	WriteTimeout time.Duration
}

// KafkaNotifier publishes each reminder as a JSON event. The target destination is
// the topic; the dispatch key is the message key so consumers can deduplicate.
type KafkaNotifier struct {
	writer messageWriter
}

// ReminderEvent is the Kafka message value.
type ReminderEvent struct {
	DispatchKey  string    `json:"dispatch_key"`
	SessionID    string    `json:"session_id"`
	ReminderType string    `json:"reminder_type"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	CourseName   string    `json:"course_name"`
	SessionName  string    `json:"session_name"`
	StartAt      time.Time `json:"start_at"`
	JoinURL      string    `json:"join_url,omitempty"`
	RenderedAt   time.Time `json:"rendered_at"`
}

// NewKafkaNotifier creates a KafkaNotifier with a writer that routes by message topic.
func NewKafkaNotifier(config KafkaConfig) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           config.WriteTimeout,
		AllowAutoTopicCreation: false,
	}
	return &KafkaNotifier{writer: w}
}

func newKafkaNotifierWithWriter(w messageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: w}
}

func buildReminderEvent(n *entity.Notification) ReminderEvent {
	return ReminderEvent{
		DispatchKey:  n.Key.String(),
		SessionID:    n.Key.SessionID,
		ReminderType: string(n.Key.Type),
		Subject:      n.Subject,
		Body:         n.Body,
		CourseName:   n.CourseName,
		SessionName:  n.SessionName,
		StartAt:      n.StartAt.UTC(),
		JoinURL:      n.JoinURL,
		RenderedAt:   n.RenderedAt.UTC(),
	}
}

// Send implements Notifier for kafka targets.
func (k *KafkaNotifier) Send(ctx context.Context, n *entity.Notification, target entity.ChannelTarget) error {
	if err := invalidTarget(entity.ChannelKafka, target); err != nil {
		return err
	}

	value, err := json.Marshal(buildReminderEvent(n))
	if err != nil {
		return fmt.Errorf("marshal reminder event: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Topic: target.Destination,
		Key:   []byte(n.Key.String()),
		Value: value,
		Time:  n.RenderedAt,
		Headers: []kafka.Header{
			{Key: "reminder_type", Value: []byte(n.Key.Type)},
		},
	})
	if err != nil {
		return classifyKafkaError(target.Destination, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

// classifyKafkaError marks broker rejections of the topic itself as permanent.
// Everything else (leader election, timeouts, network) stays transient.
func classifyKafkaError(topic string, err error) error {
	// a single-message write reports its failure inside WriteErrors
	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) && len(writeErrs) == 1 && writeErrs[0] != nil {
		err = writeErrs[0]
	}

	var kerr kafka.Error
	if errors.As(err, &kerr) {
		switch kerr {
		case kafka.UnknownTopicOrPartition, kafka.InvalidTopic, kafka.TopicAuthorizationFailed, kafka.MessageSizeTooLarge:
			return &ClientError{Message: fmt.Sprintf("kafka topic %s: %s", topic, kerr.Error())}
		}
	}
	return &ServerError{Message: fmt.Sprintf("kafka topic %s: %s", topic, strings.TrimSpace(err.Error()))}
}
