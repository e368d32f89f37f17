package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregatePayment OutboxAggregateType = "payment"
	AggregateOrder   OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePayment,
	AggregateOrder,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType names the kind of event stored in outbox_events.
type OutboxEventType string

const (
	EventPaymentConfirmed OutboxEventType = "payment_confirmed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPaymentConfirmed,
}

// IsValid reports whether the value is a known outbox event type.
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
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
