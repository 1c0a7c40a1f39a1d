package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/config"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.InventoryTopic == "" {
		return nil, fmt.Errorf("inventory topic is required")
	}
	if cfg.SessionsTopic == "" {
		return nil, fmt.Errorf("sessions topic is required")
	}
	if cfg.OrdersTopic == "" {
		return nil, fmt.Errorf("orders topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	inventoryTopic := cfg.InventoryTopic
	sessionsTopic := cfg.SessionsTopic
	ordersTopic := cfg.OrdersTopic

	for _, eventType := range []enums.OutboxEventType{
		enums.EventItemInserted,
		enums.EventItemUpdated,
		enums.EventItemDeleted,
	} {
		reg.register(EventDescriptor{
			EventType:      eventType,
			AggregateType:  enums.AggregateInventoryItem,
			Topic:          inventoryTopic,
			PayloadFactory: func() interface{} { return &payloads.ItemChangeEvent{} },
		})
	}
	for _, eventType := range []enums.OutboxEventType{
		enums.EventStagedItemInserted,
		enums.EventStagedItemUpdated,
		enums.EventStagedItemDeleted,
	} {
		reg.register(EventDescriptor{
			EventType:      eventType,
			AggregateType:  enums.AggregateStagedItem,
			Topic:          inventoryTopic,
			PayloadFactory: func() interface{} { return &payloads.StagedItemChangeEvent{} },
		})
	}

	reg.register(EventDescriptor{
		EventType:      enums.EventOrderRecorded,
		AggregateType:  enums.AggregateOrder,
		Topic:          ordersTopic,
		PayloadFactory: func() interface{} { return &payloads.OrderRecordedEvent{} },
	})
	reg.register(EventDescriptor{
		EventType:      enums.EventOrderVoided,
		AggregateType:  enums.AggregateOrder,
		Topic:          ordersTopic,
		PayloadFactory: func() interface{} { return &payloads.OrderVoidedEvent{} },
	})

	for _, eventType := range []enums.OutboxEventType{
		enums.EventSessionCreated,
		enums.EventSessionJoined,
		enums.EventSessionJoinPending,
		enums.EventSessionJoinDecided,
		enums.EventSessionEnded,
		enums.EventSessionLeft,
	} {
		reg.register(EventDescriptor{
			EventType:      eventType,
			AggregateType:  enums.AggregateShareSession,
			Topic:          sessionsTopic,
			PayloadFactory: func() interface{} { return &payloads.SessionLifecycleEvent{} },
		})
	}

	reg.register(EventDescriptor{
		EventType:      enums.EventPlanChanged,
		AggregateType:  enums.AggregateSubscription,
		Topic:          sessionsTopic,
		PayloadFactory: func() interface{} { return &payloads.PlanChangedEvent{} },
	})
	reg.register(EventDescriptor{
		EventType:      enums.EventPlanLimitEnforced,
		AggregateType:  enums.AggregateSubscription,
		Topic:          inventoryTopic,
		PayloadFactory: func() interface{} { return &payloads.PlanLimitEnforcedEvent{} },
	})
	reg.register(EventDescriptor{
		EventType:      enums.EventSubscriptionUpdated,
		AggregateType:  enums.AggregateSubscription,
		Topic:          sessionsTopic,
		PayloadFactory: func() interface{} { return &payloads.SubscriptionUpdatedEvent{} },
	})

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
