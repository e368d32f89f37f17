package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusCanceled, true},
		{OrderStatusPaid, OrderStatusCanceled, false},
		{OrderStatusPaid, OrderStatusPending, false},
		{OrderStatusCanceled, OrderStatusPaid, false},
		{OrderStatusCanceled, OrderStatusPending, false},
		{OrderStatusPending, OrderStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if OrderStatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	if !OrderStatusPaid.IsTerminal() || !OrderStatusCanceled.IsTerminal() {
		t.Fatal("paid and canceled must be terminal")
	}
	if OrderStatus("bogus").IsTerminal() {
		t.Fatal("unknown status must not report terminal")
	}
}

func TestParseStatuses(t *testing.T) {
	if got, err := ParseOrderStatus("paid"); err != nil || got != OrderStatusPaid {
		t.Fatalf("expected paid, got %q err=%v", got, err)
	}
	if _, err := ParseOrderStatus("PAID"); err == nil {
		t.Fatal("expected case-sensitive parse to fail")
	}
	if _, err := ParsePaymentStatus("refunded"); err != nil {
		t.Fatalf("expected refunded to parse: %v", err)
	}
	if _, err := ParseOutboxEventType("payment_confirmed"); err != nil {
		t.Fatalf("expected payment_confirmed to parse: %v", err)
	}
}
