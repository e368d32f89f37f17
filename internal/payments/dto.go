package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zazmarga/online-cinema/pkg/enums"
	"github.com/zazmarga/online-cinema/pkg/pagination"
)

// PaymentItemDTO is the final price of one order item.
type PaymentItemDTO struct {
	ID             uuid.UUID       `json:"id"`
	OrderItemID    uuid.UUID       `json:"order_item_id"`
	MovieID        *uuid.UUID      `json:"movie_id,omitempty"`
	MovieName      string          `json:"movie_name,omitempty"`
	PriceAtPayment decimal.Decimal `json:"price_at_payment"`
}

// PaymentDTO is the read projection of a confirmed payment.
type PaymentDTO struct {
	ID                uuid.UUID           `json:"id"`
	UserID            uuid.UUID           `json:"user_id"`
	OrderID           uuid.UUID           `json:"order_id"`
	Status            enums.PaymentStatus `json:"status"`
	Amount            decimal.Decimal     `json:"amount"`
	Currency          string              `json:"currency"`
	ExternalPaymentID string              `json:"external_payment_id"`
	CreatedAt         time.Time           `json:"created_at"`
	Items             []PaymentItemDTO    `json:"items"`
}

// PaymentList is a cursor page of payments.
type PaymentList = pagination.Page[PaymentDTO]

// AdminListParams filters the admin payment listing. Dates are inclusive calendar days.
type AdminListParams struct {
	UserIDs  []uuid.UUID
	DateFrom *time.Time
	DateTo   *time.Time
	Statuses []enums.PaymentStatus
	pagination.Params
}

func paymentCursor(p PaymentDTO) pagination.Cursor {
	return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
}
