package enums

import "fmt"

// OrderStatus tracks the lifecycle of a customer order.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusCanceled OrderStatus = "canceled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusCanceled,
}

// orderTransitions lists the only allowed edges; paid and canceled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCanceled},
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves this status.
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(orderTransitions[s]) == 0
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
