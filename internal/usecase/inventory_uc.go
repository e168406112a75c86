package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nooratelier/boutique/internal/domain"
)

type InventoryUC struct {
	Products domain.ProductRepo
}

// Allocate splits a requested purchase quantity between on-hand stock and
// pre-order backlog and commits the on-hand decrement. The decrement is a
// single atomic clamped UPDATE; the split is derived from the before/after
// counters it returns, never from a separate read.
func (uc *InventoryUC) Allocate(ctx context.Context, productID uuid.UUID, qty int) (*domain.Allocation, error) {
	if productID == uuid.Nil {
		return nil, errors.New("empty product id")
	}
	if qty < 1 {
		return nil, errors.New("quantity must be >= 1")
	}
	before, after, err := uc.Products.AllocateStock(ctx, productID, qty)
	if err != nil {
		return nil, err
	}
	a := domain.SplitAllocation(qty, before, after)
	return &a, nil
}

// Release returns reserved units when a later step of the flow fails.
func (uc *InventoryUC) Release(ctx context.Context, productID uuid.UUID, qty int) error {
	if productID == uuid.Nil || qty < 1 {
		return errors.New("release params")
	}
	return uc.Products.RestoreStock(ctx, productID, qty)
}
