package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nooratelier/boutique/internal/domain"
)

func activeProduct(qty int) *domain.Product {
	total := qty
	return &domain.Product{
		ID:                uuid.New(),
		Code:              "NA-TEST-0001",
		Name:              "Oud Silk Abaya",
		Status:            domain.ProductStatusActive,
		QuantityAvailable: qty,
		TotalQuantity:     &total,
	}
}

func TestAllocateFullyFromStock(t *testing.T) {
	p := activeProduct(10)
	uc := &InventoryUC{Products: newFakeProductRepo(p)}

	a, err := uc.Allocate(context.Background(), p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, a.FromStock)
	assert.Equal(t, 0, a.Preorder)
	assert.Equal(t, 7, a.Remaining)
}

func TestAllocateSplitsIntoPreorder(t *testing.T) {
	p := activeProduct(2)
	repo := newFakeProductRepo(p)
	uc := &InventoryUC{Products: repo}

	a, err := uc.Allocate(context.Background(), p.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, a.FromStock)
	assert.Equal(t, 3, a.Preorder)
	assert.Equal(t, 0, a.Remaining)

	got, err := repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuantityAvailable, "stock never goes negative")
}

func TestAllocateZeroStockAllPreorder(t *testing.T) {
	p := activeProduct(0)
	p.Status = domain.ProductStatusPreOrder
	d := time.Now().AddDate(0, 1, 0)
	p.PreOrderDate = &d
	uc := &InventoryUC{Products: newFakeProductRepo(p)}

	a, err := uc.Allocate(context.Background(), p.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, a.FromStock)
	assert.Equal(t, 4, a.Preorder)
}

func TestAllocateRejectsNonAllocatableStatus(t *testing.T) {
	for _, status := range []domain.ProductStatus{domain.ProductStatusInactive, domain.ProductStatusOutOfStock} {
		p := activeProduct(5)
		p.Status = status
		uc := &InventoryUC{Products: newFakeProductRepo(p)}

		_, err := uc.Allocate(context.Background(), p.ID, 1)
		assert.ErrorIs(t, err, domain.ErrNotAllocatable, "status %s", status)
	}
}

func TestAllocateValidatesInput(t *testing.T) {
	uc := &InventoryUC{Products: newFakeProductRepo()}

	_, err := uc.Allocate(context.Background(), uuid.Nil, 1)
	assert.Error(t, err)

	_, err = uc.Allocate(context.Background(), uuid.New(), 0)
	assert.Error(t, err)
}

// Many buyers racing for the last units must never push stock negative and
// must collectively receive exactly the on-hand quantity from stock.
func TestAllocateConcurrentNeverOversells(t *testing.T) {
	const stock = 7
	const buyers = 50
	p := activeProduct(stock)
	repo := newFakeProductRepo(p)
	uc := &InventoryUC{Products: repo}

	var wg sync.WaitGroup
	results := make([]*domain.Allocation, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := uc.Allocate(context.Background(), p.ID, 1)
			if err == nil {
				results[i] = a
			}
		}(i)
	}
	wg.Wait()

	fromStock := 0
	preorder := 0
	for _, a := range results {
		require.NotNil(t, a)
		fromStock += a.FromStock
		preorder += a.Preorder
	}
	assert.Equal(t, stock, fromStock, "exactly the on-hand units ship from stock")
	assert.Equal(t, buyers-stock, preorder)

	got, err := repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuantityAvailable)
}

func TestReleaseClampsToTotalQuantity(t *testing.T) {
	p := activeProduct(3)
	repo := newFakeProductRepo(p)
	uc := &InventoryUC{Products: repo}

	// Returning more than was ever produced clamps at the run size.
	require.NoError(t, uc.Release(context.Background(), p.ID, 100))
	got, err := repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, *p.TotalQuantity, got.QuantityAvailable)
}

func TestSplitAllocationDerivation(t *testing.T) {
	cases := []struct {
		name                     string
		requested, before, after int
		fromStock, preorder      int
	}{
		{"all from stock", 3, 10, 7, 3, 0},
		{"partial split", 5, 2, 0, 2, 3},
		{"nothing on hand", 4, 0, 0, 0, 4},
		{"exact drain", 2, 2, 0, 2, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := domain.SplitAllocation(tc.requested, tc.before, tc.after)
			assert.Equal(t, tc.fromStock, a.FromStock)
			assert.Equal(t, tc.preorder, a.Preorder)
			assert.Equal(t, tc.after, a.Remaining)
		})
	}
}
