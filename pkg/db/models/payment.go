package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zazmarga/online-cinema/pkg/enums"
)

// Payment records one confirmed external transaction for exactly one order.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Status            enums.PaymentStatus `gorm:"column:status;type:varchar(16);not null"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	Currency          string              `gorm:"column:currency;type:varchar(8);not null"`
	ExternalPaymentID string              `gorm:"column:external_payment_id;not null;uniqueIndex:ux_payments_external_payment_id"`
	CustomerEmail     *string             `gorm:"column:customer_email"`
	CreatedAt         time.Time           `gorm:"column:created_at;not null;index"`
	Items             []PaymentItem       `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
}

// PaymentItem is the final price freeze of one order item.
type PaymentItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID      uuid.UUID       `gorm:"column:payment_id;type:uuid;not null;index"`
	OrderItemID    uuid.UUID       `gorm:"column:order_item_id;type:uuid;not null"`
	PriceAtPayment decimal.Decimal `gorm:"column:price_at_payment;type:numeric(10,2);not null"`
}
