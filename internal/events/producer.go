package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/orderdesk/backoffice/pkg/models"
)

const (
	OrderCreatedTopic = "order.created"
	OrderUpdatedTopic = "order.updated"
	OrderDeletedTopic = "order.deleted"
)

// OrderEvent is published for every store mutation. Created/updated events
// carry the full canonical record so consumers can upsert without a
// round-trip; deletes carry only the id. Demo marks locally synthesized
// orders that other instances should ignore.
type OrderEvent struct {
	OrderID     string        `json:"order_id"`
	OrderNumber string        `json:"order_number,omitempty"`
	Total       float64       `json:"total,omitempty"`
	Status      string        `json:"status,omitempty"`
	Demo        bool          `json:"demo"`
	Order       *models.Order `json:"order,omitempty"`
	EventTime   time.Time     `json:"event_time"`
}

type Producer struct {
	producer sarama.SyncProducer
	logger   *logrus.Logger
}

func NewProducer(brokers string, logger *logrus.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), config)
	if err != nil {
		return nil, err
	}

	return &Producer{
		producer: producer,
		logger:   logger,
	}, nil
}

// PublishOrderEvent sends one event keyed by order id so per-order ordering
// is preserved within a partition.
func (p *Producer) PublishOrderEvent(topic string, event OrderEvent) error {
	event.EventTime = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithField("topic", topic).Error("Failed to send order event to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
		"order_id":  event.OrderID,
	}).Info("Order event published to Kafka")

	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
