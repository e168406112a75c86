package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nooratelier/boutique/internal/domain"
)

const maxActiveCategories = 10

type CatalogUC struct {
	Products domain.ProductRepo
	Prices   domain.PriceHistoryRepo
}

func (uc *CatalogUC) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if id == uuid.Nil {
		return nil, errors.New("empty product id")
	}
	return uc.Products.FindByID(ctx, id)
}

func (uc *CatalogUC) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	if f.PageSize == 0 {
		f.PageSize = 20
	}
	return uc.Products.List(ctx, f)
}

func (uc *CatalogUC) ListActive(ctx context.Context) ([]domain.Product, error) {
	return uc.Products.ListActive(ctx)
}

func (uc *CatalogUC) Create(ctx context.Context, p *domain.Product) error {
	if p == nil {
		return errors.New("nil product")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name required")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if strings.TrimSpace(p.Code) == "" {
		p.Code = generateCode(p)
	}
	if p.Status == "" {
		p.Status = domain.ProductStatusActive
	}
	if err := validateStatusFields(p.Status, p.QuantityAvailable, p.PreOrderDate); err != nil {
		return err
	}
	if err := uc.checkCategoryCap(ctx, p.Category); err != nil {
		return err
	}
	return uc.Products.Save(ctx, p)
}

// generateCode derives a human-assignable product code when the admin left it
// blank, e.g. "NA-SILKABAY-3F2A".
func generateCode(p *domain.Product) string {
	base := strings.ToUpper(strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, p.Name))
	if len(base) > 8 {
		base = base[:8]
	}
	if base == "" {
		base = "ITEM"
	}
	suffix := strings.ToUpper(p.ID.String()[:4])
	return "NA-" + base + "-" + suffix
}

// Update applies a partial edit of the descriptive fields. Stock, price,
// status and pre-order date have their own entry points with their own
// invariants and are rejected here.
func (uc *CatalogUC) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return errors.New("empty update")
	}
	for k := range fields {
		switch k {
		case "name", "subtitle", "description", "category", "materials", "essences", "total_quantity":
		default:
			return fmt.Errorf("field %q not updatable here", k)
		}
	}
	if n, ok := fields["name"].(string); ok && strings.TrimSpace(n) == "" {
		return errors.New("name required")
	}
	if c, ok := fields["category"].(string); ok {
		if err := uc.checkCategoryCap(ctx, c); err != nil {
			return err
		}
	}
	// jsonb columns take pre-encoded values on the map update path.
	for _, k := range []string{"materials", "essences"} {
		if v, ok := fields[k]; ok {
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			fields[k] = string(b)
		}
	}
	return uc.Products.UpdateFields(ctx, id, fields)
}

func (uc *CatalogUC) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errors.New("empty product id")
	}
	return uc.Products.Delete(ctx, id)
}

// Category cap is advisory, enforced at write time only: 10 distinct
// categories across active products.
func (uc *CatalogUC) checkCategoryCap(ctx context.Context, category string) error {
	c := strings.TrimSpace(category)
	if c == "" {
		return nil
	}
	cats, err := uc.Products.DistinctActiveCategories(ctx)
	if err != nil {
		return err
	}
	for _, existing := range cats {
		if strings.EqualFold(existing, c) {
			return nil
		}
	}
	if len(cats) >= maxActiveCategories {
		return fmt.Errorf("category cap reached (%d active categories)", maxActiveCategories)
	}
	return nil
}

// SetStock is the admin override: an absolute assignment, no allocation
// splitting involved.
func (uc *CatalogUC) SetStock(ctx context.Context, id uuid.UUID, qty int) error {
	if qty < 0 {
		return errors.New("stock cannot be negative")
	}
	return uc.Products.UpdateFields(ctx, id, map[string]any{"quantity_available": qty})
}

// SetPrice updates one regional price and appends to price history.
func (uc *CatalogUC) SetPrice(ctx context.Context, id uuid.UUID, currency string, price *float64) error {
	if currency != domain.CurrencyAED && currency != domain.CurrencyGBP {
		return fmt.Errorf("unsupported currency %q", currency)
	}
	if price != nil && *price < 0 {
		return errors.New("price cannot be negative")
	}
	p, err := uc.Products.FindByID(ctx, id)
	if err != nil {
		return err
	}
	old := p.PriceFor(currency)
	col := "price_aed"
	if currency == domain.CurrencyGBP {
		col = "price_gbp"
	}
	if err := uc.Products.UpdateFields(ctx, id, map[string]any{col: price}); err != nil {
		return err
	}
	if uc.Prices != nil {
		change := &domain.PriceChange{ID: uuid.New(), ProductID: id, Currency: currency, OldPrice: old, NewPrice: price}
		if err := uc.Prices.Append(ctx, change); err != nil {
			return err
		}
	}
	return nil
}

func (uc *CatalogUC) SetPreOrderDate(ctx context.Context, id uuid.UUID, date *time.Time) error {
	p, err := uc.Products.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Status == domain.ProductStatusPreOrder && date == nil {
		return errors.New("pre-order products require a pre-order date")
	}
	return uc.Products.UpdateFields(ctx, id, map[string]any{"pre_order_date": date})
}

// SetStatus applies the lifecycle invariants: out-of-stock zeroes the counter
// and clears the pre-order date unless a restock override keeps it; pre-order
// requires a date.
func (uc *CatalogUC) SetStatus(ctx context.Context, id uuid.UUID, status domain.ProductStatus, restockOverride bool) error {
	switch status {
	case domain.ProductStatusActive, domain.ProductStatusInactive, domain.ProductStatusOutOfStock, domain.ProductStatusPreOrder:
	default:
		return fmt.Errorf("unknown status %q", status)
	}
	p, err := uc.Products.FindByID(ctx, id)
	if err != nil {
		return err
	}
	fields := map[string]any{"status": status}
	switch status {
	case domain.ProductStatusOutOfStock:
		fields["quantity_available"] = 0
		if !restockOverride {
			fields["pre_order_date"] = nil
		}
	case domain.ProductStatusPreOrder:
		if p.PreOrderDate == nil {
			return errors.New("pre-order status requires a pre-order date")
		}
	}
	return uc.Products.UpdateFields(ctx, id, fields)
}

func validateStatusFields(status domain.ProductStatus, qty int, preOrderDate *time.Time) error {
	switch status {
	case domain.ProductStatusOutOfStock:
		if qty != 0 {
			return errors.New("out-of-stock products must have zero stock")
		}
	case domain.ProductStatusPreOrder:
		if preOrderDate == nil {
			return errors.New("pre-order status requires a pre-order date")
		}
	}
	return nil
}
