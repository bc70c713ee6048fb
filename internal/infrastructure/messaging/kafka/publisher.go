package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/domain/transaction"
)

// DefaultTopic carries one message per risk event
const DefaultTopic = "fraud.risk-events"

const eventTypeHeader = "event_type"

var (
	ErrNoBrokers = errors.New("at least one kafka broker is required")
	ErrNoTopic   = errors.New("kafka topic must not be empty")
)

// Config holds producer settings
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration

	// Breaker settings. The breaker opens after FailureThreshold
	// consecutive failed writes and half-opens after OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher implements fraud.EventPublisher on top of a kafka-go writer
type Publisher struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker
	topic   string
	timeout time.Duration
	logger  *zap.Logger
}

var _ fraud.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher writing to cfg.Topic
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = DefaultTopic
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: false,
		WriteTimeout:           cfg.WriteTimeout,
	}
	return newPublisherWithWriter(cfg, w, logger)
}

func newPublisherWithWriter(cfg Config, w messageWriter, logger *zap.Logger) (*Publisher, error) {
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, ErrNoTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	logger = logger.With(zap.String("component", "risk_event_publisher"), zap.String("topic", cfg.Topic))
	threshold := cfg.FailureThreshold

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-" + cfg.Topic,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Publisher{
		writer:  w,
		breaker: breaker,
		topic:   cfg.Topic,
		timeout: cfg.WriteTimeout,
		logger:  logger,
	}, nil
}

// riskEventMessage is the JSON value of every message
type riskEventMessage struct {
	Transaction transactionSnapshot `json:"transaction"`
	Event       fraud.RiskEvent     `json:"event"`
}

type transactionSnapshot struct {
	ID        string `json:"id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	RiskScore int    `json:"risk_score"`
	Status    string `json:"status"`
	Version   int64  `json:"version"`
}

// PublishRiskEvents writes one message per event, keyed by transaction id so
// a transaction's events stay ordered within a partition
func (p *Publisher) PublishRiskEvents(ctx context.Context, tx *transaction.Transaction, events []fraud.RiskEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs, err := buildMessages(tx, events)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.writer.WriteMessages(ctx, msgs...)
	})
	if err != nil {
		return fmt.Errorf("publish %d risk events for %s: %w", len(events), tx.ID, err)
	}

	p.logger.Debug("risk events published",
		zap.String("transaction_id", tx.ID.String()),
		zap.Int("count", len(msgs)),
	)
	return nil
}

// State reports the breaker state
func (p *Publisher) State() gobreaker.State {
	return p.breaker.State()
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func buildMessages(tx *transaction.Transaction, events []fraud.RiskEvent) ([]kafkago.Message, error) {
	snapshot := transactionSnapshot{
		ID:        tx.ID.String(),
		Amount:    tx.Amount.StringFixed(2),
		Currency:  string(tx.Currency),
		RiskScore: tx.RiskScore,
		Status:    string(tx.Status),
		Version:   tx.Version,
	}
	key := []byte(tx.ID.String())

	msgs := make([]kafkago.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(riskEventMessage{Transaction: snapshot, Event: e})
		if err != nil {
			return nil, fmt.Errorf("encode risk event %s: %w", e.ID, err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:     key,
			Value:   value,
			Headers: []kafkago.Header{{Key: eventTypeHeader, Value: []byte(e.EventType)}},
			Time:    e.CreatedAt,
		})
	}
	return msgs, nil
}
