package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentConfirmedEvent is emitted once a paid order has been committed.
type PaymentConfirmedEvent struct {
	PaymentID         uuid.UUID       `json:"payment_id"`
	OrderID           uuid.UUID       `json:"order_id"`
	UserID            uuid.UUID       `json:"user_id"`
	ExternalPaymentID string          `json:"external_payment_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	CustomerEmail     string          `json:"customer_email,omitempty"`
	MovieIDs          []uuid.UUID     `json:"movie_ids"`
	PaidAt            time.Time       `json:"paid_at"`
}
