package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Movie is the read-only catalog projection consumed by the order flow.
type Movie struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	Year      int             `gorm:"column:year;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Genres    []string        `gorm:"column:genres;type:jsonb;serializer:json"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
