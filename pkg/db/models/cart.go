package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the per-user staging area; exactly one row per user.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_carts_user_id"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
}

// CartItem is a movie the user intends to buy.
type CartItem struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID  uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_movie,priority:1"`
	MovieID uuid.UUID `gorm:"column:movie_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_movie,priority:2"`
	AddedAt time.Time `gorm:"column:added_at;not null"`
}
