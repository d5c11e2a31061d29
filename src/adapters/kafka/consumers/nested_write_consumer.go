package consumers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"graphorm/src/domain"
	"graphorm/src/domain/entities"
	"graphorm/src/infra/kafka"
)

// GraphWriter is implemented by *graph.GraphService.
type GraphWriter interface {
	CreateGraph(ctx context.Context, request domain.CreateGraphRequest) (*entities.Entity, error)
}

// NestedWriteConsumer aplica cada mensagem como uma escrita aninhada própria.
// Mensagens inválidas são descartadas com log; falhas transitórias do store são
// tentadas de novo e, esgotadas as tentativas, devolvem o lote para o Kafka.
type NestedWriteConsumer struct {
	logger      *slog.Logger
	graphWriter GraphWriter
	maxAttempts int
	backoff     time.Duration
}

func NewNestedWriteConsumer(
	logger *slog.Logger,
	graphWriter GraphWriter,
) *NestedWriteConsumer {
	return &NestedWriteConsumer{
		logger:      logger,
		graphWriter: graphWriter,
		maxAttempts: 3,
		backoff:     200 * time.Millisecond,
	}
}

// WithRetry ajusta tentativas e espera base entre elas.
func (c *NestedWriteConsumer) WithRetry(maxAttempts int, backoff time.Duration) *NestedWriteConsumer {
	clone := *c
	clone.maxAttempts = max(maxAttempts, 1)
	clone.backoff = backoff
	return &clone
}

func (c *NestedWriteConsumer) Start(ctx context.Context, kafkaClient *kafka.KafkaClient, topic string) error {
	c.logger.Info("Starting nested write consumer", "topic", topic)

	handler := func(messages []kafka.Message) error {
		return c.HandleMessages(ctx, messages)
	}

	return kafkaClient.Consumer(ctx, handler, topic)
}

func (c *NestedWriteConsumer) HandleMessages(ctx context.Context, messages []kafka.Message) error {
	if len(messages) == 0 {
		return nil
	}

	c.logger.Info("Processing messages batch", "count", len(messages))

	created := 0
	for _, msg := range messages {
		var request domain.CreateGraphRequest
		decoder := json.NewDecoder(bytes.NewReader(msg.Value))
		decoder.UseNumber()
		if err := decoder.Decode(&request); err != nil {
			c.logger.Error("Failed to unmarshal message, skipping",
				"error", err,
				"key", msg.Key,
				"value", string(msg.Value))
			continue
		}

		if kind := msg.Headers["entity_type"]; request.Kind == "" && kind != "" {
			request.Kind = kind
		}

		if err := c.apply(ctx, msg, request); err != nil {
			return err
		}
		created++
	}

	c.logger.Info("Successfully processed messages batch",
		"count", len(messages),
		"created", created)

	return nil
}

func (c *NestedWriteConsumer) apply(ctx context.Context, msg kafka.Message, request domain.CreateGraphRequest) error {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var root *entities.Entity
		root, err = c.graphWriter.CreateGraph(ctx, request)
		if err == nil {
			c.logger.Debug("Nested write applied", "key", msg.Key, "kind", request.Kind, "id", root.ID)
			return nil
		}

		if !transient(err) {
			// payload inválido não melhora com retry
			c.logger.Error("Nested write rejected, skipping",
				"error", err,
				"key", msg.Key,
				"kind", request.Kind)
			return nil
		}

		c.logger.Warn("Nested write failed, retrying",
			"error", err,
			"key", msg.Key,
			"attempt", attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}

	return fmt.Errorf("nested write for key %s failed after %d attempts: %w", msg.Key, c.maxAttempts, err)
}

func transient(err error) bool {
	return errors.Is(err, domain.ErrWriteConflict) || errors.Is(err, domain.ErrStoreUnavailable)
}
