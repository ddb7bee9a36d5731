package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kerm1977/rifas/internal/config"
	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes ledger events. The topic is chosen per message.
type Producer struct {
	Writer  messageWriter
	Brokers []string
	Topics  config.TopicConfig
	Logger  *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &Producer{Writer: writer, Brokers: brokers, Topics: topics, Logger: log}
}

// Publish writes one message to topic.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

// TopicFor maps an event type to its configured topic.
func (p *Producer) TopicFor(eventType models.EventType) (string, error) {
	switch eventType {
	case models.EventSelectionClaimed:
		return p.Topics.SelectionClaimed, nil
	case models.EventSelectionReleased:
		return p.Topics.SelectionReleased, nil
	case models.EventSelectionCanceled:
		return p.Topics.SelectionCanceled, nil
	case models.EventWinnersAnnounced:
		return p.Topics.WinnersAnnounced, nil
	case models.EventWinnersReset:
		return p.Topics.WinnersReset, nil
	}
	return "", fmt.Errorf("no topic for event type %q", eventType)
}

// PublishSelectionEvent streams the event keyed by raffle id, so events of one
// raffle stay ordered within a partition.
func (p *Producer) PublishSelectionEvent(ctx context.Context, event models.SelectionEvent) error {
	topic, err := p.TopicFor(event.Type)
	if err != nil {
		return err
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.Publish(ctx, topic, strconv.FormatInt(event.RaffleID, 10), value); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	if p.Logger != nil {
		p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("raffle=%d numbers=%v", event.RaffleID, event.Numbers))
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
