package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateInventoryItem OutboxAggregateType = "inventory_item"
	AggregateStagedItem    OutboxAggregateType = "staged_item"
	AggregateOrder         OutboxAggregateType = "order"
	AggregateShareSession  OutboxAggregateType = "share_session"
	AggregateSubscription  OutboxAggregateType = "subscription"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateInventoryItem,
	AggregateStagedItem,
	AggregateOrder,
	AggregateShareSession,
	AggregateSubscription,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventItemInserted        OutboxEventType = "item_inserted"
	EventItemUpdated         OutboxEventType = "item_updated"
	EventItemDeleted         OutboxEventType = "item_deleted"
	EventStagedItemInserted  OutboxEventType = "staged_item_inserted"
	EventStagedItemUpdated   OutboxEventType = "staged_item_updated"
	EventStagedItemDeleted   OutboxEventType = "staged_item_deleted"
	EventOrderRecorded       OutboxEventType = "order_recorded"
	EventOrderVoided         OutboxEventType = "order_voided"
	EventSessionCreated      OutboxEventType = "session_created"
	EventSessionJoined       OutboxEventType = "session_joined"
	EventSessionJoinPending  OutboxEventType = "session_join_pending"
	EventSessionJoinDecided  OutboxEventType = "session_join_decided"
	EventSessionEnded        OutboxEventType = "session_ended"
	EventSessionLeft         OutboxEventType = "session_left"
	EventPlanChanged         OutboxEventType = "plan_changed"
	EventPlanLimitEnforced   OutboxEventType = "plan_limit_enforced"
	EventSubscriptionUpdated OutboxEventType = "subscription_updated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventItemInserted,
	EventItemUpdated,
	EventItemDeleted,
	EventStagedItemInserted,
	EventStagedItemUpdated,
	EventStagedItemDeleted,
	EventOrderRecorded,
	EventOrderVoided,
	EventSessionCreated,
	EventSessionJoined,
	EventSessionJoinPending,
	EventSessionJoinDecided,
	EventSessionEnded,
	EventSessionLeft,
	EventPlanChanged,
	EventPlanLimitEnforced,
	EventSubscriptionUpdated,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
