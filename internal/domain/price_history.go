package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PriceChange is an append-only record of an admin price edit.
type PriceChange struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"type:uuid;index"`
	Currency  string    `gorm:"size:3"`
	OldPrice  *float64  `gorm:"type:decimal(12,2)"`
	NewPrice  *float64  `gorm:"type:decimal(12,2)"`
	CreatedAt time.Time
}

func (PriceChange) TableName() string { return "price_history" }

type PriceHistoryRepo interface {
	Append(ctx context.Context, c *PriceChange) error
	ListForProduct(ctx context.Context, productID uuid.UUID) ([]PriceChange, error)
}
