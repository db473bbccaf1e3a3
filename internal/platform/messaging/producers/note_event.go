package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/nfe-ledger/internal/config"
)

// NoteIngestedEvent is emitted after a fiscal document has been committed
// to the ledger. Duplicates never produce an event.
type NoteIngestedEvent struct {
	NoteID     int64           `json:"note_id"`
	NaturalKey string          `json:"natural_key"`
	Direction  string          `json:"direction"`
	IssuedAt   time.Time       `json:"issued_at"`
	Total      decimal.Decimal `json:"total"`
	ItemCount  int             `json:"item_count"`
}

type NoteIngestedProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewNoteIngestedProducer creates the note event producer and ensures its
// topic exists. Returns nil, nil when messaging is disabled; callers treat
// a nil producer as a no-op.
func NewNoteIngestedProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*NoteIngestedProducer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.NoteEventsTopic == "" {
		return nil, fmt.Errorf("kafka note events topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for note event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.NoteEventsTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure note events topic %s exists: %w", cfg.NoteEventsTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.NoteEventsTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Events are advisory, keep the ingest path fast
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages asynchronously", "topic", cfg.NoteEventsTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages asynchronously", "topic", cfg.NoteEventsTopic, "count", len(messages))
			}
		},
	}

	return &NoteIngestedProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.NoteEventsTopic,
	}, nil
}

func (p *NoteIngestedProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal note event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish note event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish note event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published note event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *NoteIngestedProducer) Close() error {
	p.logger.Info("Closing note event Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
