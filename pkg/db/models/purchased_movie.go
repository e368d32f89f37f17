package models

import (
	"time"

	"github.com/google/uuid"
)

// PurchasedMovie is one ownership fact in the purchase ledger.
type PurchasedMovie struct {
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey"`
	MovieID     uuid.UUID  `gorm:"column:movie_id;type:uuid;primaryKey"`
	OrderID     *uuid.UUID `gorm:"column:order_id;type:uuid"`
	PurchasedAt time.Time  `gorm:"column:purchased_at;not null"`
}
