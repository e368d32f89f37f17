package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zazmarga/online-cinema/pkg/enums"
	"github.com/zazmarga/online-cinema/pkg/pagination"
)

// User-facing outcomes of order operations.
const (
	MessageEmptyCart          = "User's cart not found or empty."
	MessageOrderCreated       = "Order has been created successfully."
	MessageOrderNotCreated    = "Order has not been created."
	MessageOrderCanceled      = "Order has been canceled successfully."
	MessageOrderNotCancelable = "Order not found or already finalized."
	MessageOrderNotFound      = "Order not found."
)

// droppedItemMessage is prepended once per cart item that did not make it into the order.
func droppedItemMessage(movieID uuid.UUID) string {
	return "Movie with id=" + movieID.String() + " deleted from cart. "
}

// CreateOrderResult summarizes a checkout attempt. OrderID is nil when no order persisted.
type CreateOrderResult struct {
	Message string     `json:"message"`
	OrderID *uuid.UUID `json:"order_id,omitempty"`
}

// OrderItemDTO is one frozen line of an order.
type OrderItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	MovieID      uuid.UUID       `json:"movie_id"`
	MovieName    string          `json:"movie_name"`
	PriceAtOrder decimal.Decimal `json:"price_at_order"`
}

// OrderDTO is the read projection of an order and its items.
type OrderDTO struct {
	ID          uuid.UUID         `json:"id"`
	UserID      uuid.UUID         `json:"user_id"`
	Status      enums.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Items       []OrderItemDTO    `json:"items"`
}

// OrderList is a cursor page of orders.
type OrderList = pagination.Page[OrderDTO]

// AdminListParams filters the admin order listing. Dates are inclusive calendar days.
type AdminListParams struct {
	UserIDs  []uuid.UUID
	DateFrom *time.Time
	DateTo   *time.Time
	Statuses []enums.OrderStatus
	pagination.Params
}

func orderCursor(o OrderDTO) pagination.Cursor {
	return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}
