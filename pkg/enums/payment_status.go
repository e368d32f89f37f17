package enums

import "fmt"

// PaymentStatus records the outcome of a confirmed external payment.
type PaymentStatus string

const (
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusCanceled   PaymentStatus = "canceled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusSuccessful,
	PaymentStatusCanceled,
	PaymentStatusRefunded,
}

// String implements fmt.Stringer.
func (s PaymentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentStatus.
func (s PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
