package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"graphorm/src/domain"
	"graphorm/src/domain/entities"
	"graphorm/src/infra/kafka"
	"graphorm/src/write"
)

// Producer is implemented by *kafka.KafkaClient.
type Producer interface {
	Producer(messages []kafka.Message, topic string) error
}

type DomainEventPublisher struct {
	logger      *slog.Logger
	kafkaClient Producer
	topic       string
	now         func() time.Time
}

func NewDomainEventPublisher(
	logger *slog.Logger,
	kafkaClient Producer,
	topic string,
) *DomainEventPublisher {
	return &DomainEventPublisher{
		logger:      logger,
		kafkaClient: kafkaClient,
		topic:       topic,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// DomainEventWithMetadata wraps a domain event with metadata needed for headers
type DomainEventWithMetadata struct {
	domain.DomainEvent
	EventID   string
	EventType string
}

// AfterCommit publica um entity_created por nó criado e um relationship_created
// por aresta. Falhas são logadas: o commit já aconteceu e não é desfeito.
func (p *DomainEventPublisher) AfterCommit(ctx context.Context, result write.Result) {
	events := p.Transform(result)
	if err := p.PublishDomainEvents(ctx, events); err != nil {
		p.logger.Error("Failed to publish nested write events",
			"error", err,
			"root_type", result.Root.Label,
			"root_id", result.Root.ID)
	}
}

// Transform converts a committed write into domain events, root first.
func (p *DomainEventPublisher) Transform(result write.Result) []DomainEventWithMetadata {
	timestamp := p.now()
	events := make([]DomainEventWithMetadata, 0, 1+len(result.Created)+len(result.Edges))

	for _, e := range append([]*entities.Entity{result.Root}, result.Created...) {
		properties := make(map[string]domain.PropertyChange, len(e.Attributes))
		for k, v := range e.Attributes {
			properties[k] = domain.PropertyChange{New: v}
		}

		events = append(events, DomainEventWithMetadata{
			DomainEvent: domain.DomainEvent{
				IdempotencyKey: generateIdempotencyKey("entity", reference(e.ID), e.Label, timestamp),
				EventTimestamp: timestamp,
				Data: domain.DomainEventData{
					Type:       e.Label,
					Reference:  reference(e.ID),
					Properties: properties,
				},
			},
			EventID:   uuid.New().String(),
			EventType: domain.EventEntityCreated,
		})
	}

	for _, edge := range result.Edges {
		target := reference(edge.RightEntityID)
		events = append(events, DomainEventWithMetadata{
			DomainEvent: domain.DomainEvent{
				IdempotencyKey: generateIdempotencyKey("relationship", reference(edge.LeftEntityID), edge.RelationshipType+">"+target, timestamp),
				EventTimestamp: timestamp,
				Data: domain.DomainEventData{
					Reference:             reference(edge.LeftEntityID),
					TargetEntityReference: &target,
					Properties: map[string]domain.PropertyChange{
						"relationship_type": {New: edge.RelationshipType},
					},
				},
			},
			EventID:   uuid.New().String(),
			EventType: domain.EventRelationshipCreated,
		})
	}

	return events
}

// PublishDomainEvents publica o lote inteiro numa única chamada ao producer.
// Eventos que não serializam são descartados e logados.
func (p *DomainEventPublisher) PublishDomainEvents(ctx context.Context, events []DomainEventWithMetadata) error {
	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msg, err := p.encode(event)
		if err != nil {
			p.logger.ErrorContext(ctx, "Dropping unserializable domain event",
				"error", err,
				"event_id", event.EventID,
				"reference", event.Data.Reference)
			continue
		}
		messages = append(messages, msg)
	}

	if err := p.kafkaClient.Producer(messages, p.topic); err != nil {
		return fmt.Errorf("DomainEventPublisher.PublishDomainEvents - topic %s: %w", p.topic, err)
	}

	p.logger.DebugContext(ctx, "Domain events published", "topic", p.topic, "count", len(messages))
	return nil
}

// encode serializa só o DomainEvent; EventID e EventType viajam nos headers.
// A chave é a referência da origem para manter a ordem por entidade.
func (p *DomainEventPublisher) encode(event DomainEventWithMetadata) (kafka.Message, error) {
	body, err := json.Marshal(event.DomainEvent)
	if err != nil {
		return kafka.Message{}, err
	}

	headers := map[string]string{
		"event_type":     event.EventType,
		"event_id":       event.EventID,
		"source_service": "graphorm",
		"schema_version": "v1",
	}
	switch event.EventType {
	case domain.EventRelationshipCreated:
		if label, ok := event.Data.Properties["relationship_type"]; ok && label.New != nil {
			headers["relation_type"] = fmt.Sprint(label.New)
		}
	default:
		headers["entity_type"] = event.Data.Type
		if fields := slices.Sorted(maps.Keys(event.Data.Properties)); len(fields) > 0 {
			headers["fields_changed"] = strings.Join(fields, ",")
		}
	}

	return kafka.Message{Key: event.Data.Reference, Value: body, Headers: headers}, nil
}

func reference(id int64) string {
	return "entity-" + strconv.FormatInt(id, 10)
}

// generateIdempotencyKey é estável para o mesmo fato no mesmo commit.
func generateIdempotencyKey(prefix, entityRef, discriminator string, timestamp time.Time) string {
	sum := sha256.Sum256([]byte(prefix + "|" + entityRef + "|" + discriminator + "|" + strconv.FormatInt(timestamp.UnixNano(), 10)))
	return hex.EncodeToString(sum[:16])
}
