package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nooratelier/boutique/internal/domain"
)

type PriceHistoryRepo struct{ db *gorm.DB }

func NewPriceHistoryRepo(db *gorm.DB) *PriceHistoryRepo {
	return &PriceHistoryRepo{db: db}
}

func (r *PriceHistoryRepo) Append(ctx context.Context, c *domain.PriceChange) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *PriceHistoryRepo) ListForProduct(ctx context.Context, productID uuid.UUID) ([]domain.PriceChange, error) {
	var list []domain.PriceChange
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("created_at desc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
