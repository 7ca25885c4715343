package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"stayhub/internal/config"
	"stayhub/internal/events"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType = "event-type"
	writeTimeout    = 5 * time.Second
)

var ErrPublisherClosed = errors.New("publisher is closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards bus events to a Kafka topic, keyed by property so
// that events of one listing stay ordered.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
	closed bool
	mu     sync.RWMutex
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *zerolog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	log := logger.With().Str("component", "kafka").Str("topic", cfg.Topic).Logger()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("messages", len(messages)).Msg("kafka write failed")
			}
		},
		Logger:      kafka.LoggerFunc(func(string, ...interface{}) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) { log.Error().Msgf(msg, args...) }),
	}

	return newKafkaPublisher(writer, cfg.Topic, log), nil
}

func newKafkaPublisher(writer messageWriter, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, logger: logger}
}

// Handle is an events.EventHandler.
func (p *KafkaPublisher) Handle(event *events.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	msg := kafka.Message{
		Key:   []byte(messageKey(event)),
		Value: event.Payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.Type)},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// messageKey picks the partitioning key: the property id when the payload
// has one, else the event type.
func messageKey(event *events.Event) string {
	var keyed struct {
		PropertyID int64 `json:"property_id"`
	}
	if err := json.Unmarshal(event.Payload, &keyed); err == nil && keyed.PropertyID != 0 {
		return "property-" + strconv.FormatInt(keyed.PropertyID, 10)
	}
	return event.Type
}

// Attach subscribes the publisher to every event type on the bus.
func (p *KafkaPublisher) Attach(bus *events.EventBus) {
	bus.SubscribeAll(p.Handle)
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
