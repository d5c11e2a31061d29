package domain

import "time"

const (
	EventEntityCreated       = "entity_created"
	EventRelationshipCreated = "relationship_created"
)

type PropertyChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

type DomainEventData struct {
	Type                  string                    `json:"type,omitempty"`
	Reference             string                    `json:"reference"`
	TargetEntityReference *string                   `json:"target_entity_reference,omitempty"`
	Properties            map[string]PropertyChange `json:"properties"`
}

// DomainEvent é o payload publicado no tópico de eventos de domínio.
type DomainEvent struct {
	IdempotencyKey string          `json:"idempotency_key"`
	EventTimestamp time.Time       `json:"event_timestamp"`
	Data           DomainEventData `json:"data"`
}
