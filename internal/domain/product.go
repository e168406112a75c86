package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ProductStatus string

const (
	ProductStatusActive     ProductStatus = "active"
	ProductStatusInactive   ProductStatus = "inactive"
	ProductStatusOutOfStock ProductStatus = "out-of-stock"
	ProductStatusPreOrder   ProductStatus = "pre-order"
)

// CurrencyAED and CurrencyGBP are the two supported regions. A product with a
// nil price for a currency is not purchasable in that region.
const (
	CurrencyAED = "AED"
	CurrencyGBP = "GBP"
)

type Product struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code              string    `gorm:"size:40;uniqueIndex"`
	Name              string    `gorm:"size:180"`
	Subtitle          string    `gorm:"size:180"`
	Description       string    `gorm:"type:text"`
	Category          string    `gorm:"size:100;index"`
	Materials         []string  `gorm:"type:jsonb;serializer:json"`
	Essences          []string  `gorm:"type:jsonb;serializer:json"`
	Images            []ProductImage
	PriceAED          *float64      `gorm:"type:decimal(12,2)"`
	PriceGBP          *float64      `gorm:"type:decimal(12,2)"`
	QuantityAvailable int           `gorm:"not null;default:0"`
	TotalQuantity     *int          `gorm:"type:int"`
	Status            ProductStatus `gorm:"type:varchar(20);index"`
	PreOrderDate      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type ProductImage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"type:uuid;index"`
	URL       string    `gorm:"size:255"`
	Alt       string    `gorm:"size:140"`
	CreatedAt time.Time
}

// PriceFor returns the product price for the given currency, nil when the
// product is not sold in that region.
func (p *Product) PriceFor(currency string) *float64 {
	switch currency {
	case CurrencyAED:
		return p.PriceAED
	case CurrencyGBP:
		return p.PriceGBP
	}
	return nil
}

// Allocatable reports whether stock may be reserved against this product.
// Pre-order products participate: their quantity_available counts units
// already produced and immediately shippable.
func (p *Product) Allocatable() bool {
	return p.Status == ProductStatusActive || p.Status == ProductStatusPreOrder
}

// PendingProduction derives how many units of the run are not yet on hand.
func (p *Product) PendingProduction() int {
	if p.TotalQuantity == nil {
		return 0
	}
	pending := *p.TotalQuantity - p.QuantityAvailable
	if pending < 0 {
		return 0
	}
	return pending
}

type ProductFilter struct {
	Status   ProductStatus
	Category string
	Query    string
	Page     int
	PageSize int
}

// Allocation is the result of splitting a requested quantity between on-hand
// stock and pre-order backlog.
type Allocation struct {
	FromStock int
	Preorder  int
	Remaining int
}

// SplitAllocation derives the stock/pre-order split from the on-hand counter
// observed before and after an atomic clamped decrement.
func SplitAllocation(requested, before, after int) Allocation {
	fromStock := before - after
	if fromStock > requested {
		fromStock = requested
	}
	if fromStock < 0 {
		fromStock = 0
	}
	return Allocation{
		FromStock: fromStock,
		Preorder:  requested - fromStock,
		Remaining: after,
	}
}

type ProductRepo interface {
	Save(ctx context.Context, p *Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindByCode(ctx context.Context, code string) (*Product, error)
	List(ctx context.Context, f ProductFilter) ([]Product, int64, error)
	ListActive(ctx context.Context) ([]Product, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	DistinctActiveCategories(ctx context.Context) ([]string, error)

	// AllocateStock atomically clamps quantity_available down by qty and
	// returns the counter before and after. ErrNotFound when no allocatable
	// row matches.
	AllocateStock(ctx context.Context, id uuid.UUID, qty int) (before, after int, err error)
	// RestoreStock returns units reserved by a failed flow, clamped to
	// total_quantity when the run size is known.
	RestoreStock(ctx context.Context, id uuid.UUID, qty int) error
}
