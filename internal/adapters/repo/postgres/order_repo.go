package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nooratelier/boutique/internal/domain"
)

type OrderRepo struct{ db *gorm.DB }

func NewOrderRepo(db *gorm.DB) *OrderRepo { return &OrderRepo{db: db} }

// Record inserts the header and its items and reserves stock per item, all in
// one transaction. The unique index on payment_id is the real idempotency
// guard; the SELECT beforehand is only the fast path. When two deliveries of
// the same payment race, the loser's insert hits the constraint, the whole
// transaction rolls back (stock included) and the winner's order is returned.
func (r *OrderRepo) Record(ctx context.Context, o *domain.Order) (uuid.UUID, bool, error) {
	if existing, err := r.FindByPaymentID(ctx, o.PaymentID); err == nil {
		return existing.ID, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return uuid.Nil, false, err
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range o.Items {
			it := &o.Items[i]
			it.OrderID = o.ID
			if it.ProductID == nil {
				it.QtyFromStock = 0
				it.QtyPreorder = it.Qty
				continue
			}
			before, after, err := allocateTx(tx, *it.ProductID, it.Qty)
			if err != nil {
				return err
			}
			a := domain.SplitAllocation(it.Qty, before, after)
			it.QtyFromStock = a.FromStock
			it.QtyPreorder = a.Preorder
		}
		if err := tx.Omit("Items").Create(o).Error; err != nil {
			return err
		}
		return tx.Create(&o.Items).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, ferr := r.FindByPaymentID(ctx, o.PaymentID); ferr == nil {
				return existing.ID, false, nil
			}
		}
		return uuid.Nil, false, err
	}
	return o.ID, true, nil
}

func (r *OrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&o, "payment_id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) List(ctx context.Context) ([]domain.Order, error) {
	var list []domain.Order
	if err := r.db.WithContext(ctx).Preload("Items").Order("created_at desc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *OrderRepo) Save(ctx context.Context, o *domain.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Save(o).Error
}
