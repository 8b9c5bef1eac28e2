package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/opensource-delivery/kite/internal/domain"
)

// KafkaBus implements EventBus using Kafka.
// Used for multi-node deployments where durable, replayable streams are
// required. One writer is kept per topic; each subscription runs its own
// consumer-group reader.
type KafkaBus struct {
	mu      sync.Mutex
	brokers []string
	groupID string
	writers map[string]*kafka.Writer
	subs    map[string]*kafkaSubscription
	closed  bool
}

type kafkaSubscription struct {
	id     string
	topic  string
	reader *kafka.Reader
	cancel context.CancelFunc
	done   chan struct{}
}

// NewKafkaBus creates a new Kafka-based event bus.
func NewKafkaBus(cfg domain.EventBusConfig) (*KafkaBus, error) {
	brokers := cfg.KafkaBrokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	groupID := cfg.KafkaGroupID
	if groupID == "" {
		groupID = "kite"
	}

	// Verify at least one broker is reachable before accepting traffic.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, fmt.Errorf("failed to connect to kafka broker %s: %w", brokers[0], err)
	}
	conn.Close()

	slog.Info("Kafka connected", "brokers", brokers, "group_id", groupID)

	return &KafkaBus{
		brokers: brokers,
		groupID: groupID,
		writers: make(map[string]*kafka.Writer),
		subs:    make(map[string]*kafkaSubscription),
	}, nil
}

// Publish sends a message to a Kafka topic.
func (b *KafkaBus) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := &domain.Message{
		ID:        uuid.New().String(),
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	writer, err := b.writer(topic)
	if err != nil {
		return err
	}

	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ID),
		Value: data,
	})
}

func (b *KafkaBus) writer(topic string) (*kafka.Writer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	if w, ok := b.writers[topic]; ok {
		return w, nil
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(b.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	b.writers[topic] = w
	return w, nil
}

// Subscribe registers a handler for a Kafka topic. Messages are consumed
// through the configured consumer group, so each message is delivered to
// one instance per group.
func (b *KafkaBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.brokers,
		GroupID:  b.groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	subCtx, cancel := context.WithCancel(ctx)
	sub := &kafkaSubscription{
		id:     uuid.New().String(),
		topic:  topic,
		reader: reader,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		for {
			m, err := reader.ReadMessage(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				slog.Error("failed to read kafka message", "topic", topic, "error", err)
				continue
			}

			var msg domain.Message
			if err := json.Unmarshal(m.Value, &msg); err != nil {
				slog.Error("failed to unmarshal kafka message",
					"topic", topic,
					"error", err,
				)
				continue
			}

			if err := handler(subCtx, &msg); err != nil {
				slog.Error("handler error",
					"topic", topic,
					"message_id", msg.ID,
					"error", err,
				)
			}
		}
	}()

	b.subs[sub.id] = sub
	return sub, nil
}

// Ping checks broker connectivity.
func (b *KafkaBus) Ping(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("bus is closed")
	}
	brokers := b.brokers
	b.mu.Unlock()

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return err
	}
	return conn.Close()
}

// Close closes all writers and readers.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, sub := range b.subs {
		sub.cancel()
		_ = sub.reader.Close()
	}
	b.subs = make(map[string]*kafkaSubscription)

	var firstErr error
	for _, w := range b.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.writers = make(map[string]*kafka.Writer)
	return firstErr
}

// Unsubscribe stops the reader loop.
func (s *kafkaSubscription) Unsubscribe() error {
	s.cancel()
	err := s.reader.Close()
	<-s.done
	return err
}

// Topic returns the subscribed topic.
func (s *kafkaSubscription) Topic() string {
	return s.topic
}
