package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zazmarga/online-cinema/pkg/enums"
)

// Order is the snapshot of a cart checkout attempt with frozen prices.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index:idx_orders_user_created,priority:1"`
	Status      enums.OrderStatus `gorm:"column:status;type:varchar(16);not null;index"`
	TotalAmount decimal.Decimal   `gorm:"column:total_amount;type:numeric(10,2);not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;not null;index:idx_orders_user_created,priority:2"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;not null"`
	Items       []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem freezes the catalog price of one movie at order time.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	MovieID      uuid.UUID       `gorm:"column:movie_id;type:uuid;not null;index"`
	PriceAtOrder decimal.Decimal `gorm:"column:price_at_order;type:numeric(10,2);not null"`
}
