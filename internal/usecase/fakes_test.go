package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/nooratelier/boutique/internal/domain"
)

// fakeProductRepo mirrors the postgres repo's allocation semantics in memory:
// a clamped decrement gated on allocatable status, safe for concurrent use.
type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	updates  []map[string]any
}

func newFakeProductRepo(ps ...*domain.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: map[uuid.UUID]*domain.Product{}}
	for _, p := range ps {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) Save(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProductRepo) FindByCode(_ context.Context, code string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeProductRepo) List(_ context.Context, _ domain.ProductFilter) ([]domain.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (r *fakeProductRepo) ListActive(_ context.Context) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, p := range r.products {
		if p.Status == domain.ProductStatusActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.updates = append(r.updates, fields)
	if v, ok := fields["quantity_available"]; ok {
		p.QuantityAvailable = v.(int)
	}
	if v, ok := fields["status"]; ok {
		p.Status = v.(domain.ProductStatus)
	}
	if v, ok := fields["pre_order_date"]; ok {
		if v == nil {
			p.PreOrderDate = nil
		}
	}
	if v, ok := fields["price_aed"]; ok {
		p.PriceAED, _ = v.(*float64)
	}
	if v, ok := fields["price_gbp"]; ok {
		p.PriceGBP, _ = v.(*float64)
	}
	return nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	return nil
}

func (r *fakeProductRepo) DistinctActiveCategories(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, p := range r.products {
		if p.Status == domain.ProductStatusActive && p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) AllocateStock(_ context.Context, id uuid.UUID, qty int) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || !p.Allocatable() {
		return 0, 0, domain.ErrNotAllocatable
	}
	before := p.QuantityAvailable
	after := before - qty
	if after < 0 {
		after = 0
	}
	p.QuantityAvailable = after
	return before, after, nil
}

func (r *fakeProductRepo) RestoreStock(_ context.Context, id uuid.UUID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.QuantityAvailable += qty
	if p.TotalQuantity != nil && p.QuantityAvailable > *p.TotalQuantity {
		p.QuantityAvailable = *p.TotalQuantity
	}
	return nil
}

// fakeOrderRepo reserves stock through the product repo and enforces the
// payment reference uniqueness the real repo gets from its index.
type fakeOrderRepo struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*domain.Order
	byPayRef map[string]uuid.UUID
	products *fakeProductRepo
}

func newFakeOrderRepo(products *fakeProductRepo) *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:   map[uuid.UUID]*domain.Order{},
		byPayRef: map[string]uuid.UUID{},
		products: products,
	}
}

func (r *fakeOrderRepo) Record(ctx context.Context, o *domain.Order) (uuid.UUID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byPayRef[o.PaymentID]; ok {
		return id, false, nil
	}
	for i := range o.Items {
		it := &o.Items[i]
		if it.ProductID == nil {
			it.QtyPreorder = it.Qty
			continue
		}
		before, after, err := r.products.AllocateStock(ctx, *it.ProductID, it.Qty)
		if err != nil {
			return uuid.Nil, false, err
		}
		a := domain.SplitAllocation(it.Qty, before, after)
		it.QtyFromStock = a.FromStock
		it.QtyPreorder = a.Preorder
	}
	cp := *o
	r.orders[o.ID] = &cp
	r.byPayRef[o.PaymentID] = o.ID
	return o.ID, true, nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) FindByPaymentID(_ context.Context, ref string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPayRef[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r.orders[id]
	return &cp, nil
}

func (r *fakeOrderRepo) List(_ context.Context) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (r *fakeOrderRepo) Save(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

// fakeMailer records calls; fail makes every send return an error.
type fakeMailer struct {
	mu    sync.Mutex
	fail  bool
	sent  []string
	calls map[string]int
}

func newFakeMailer(fail bool) *fakeMailer {
	return &fakeMailer{fail: fail, calls: map[string]int{}}
}

func (m *fakeMailer) record(kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[kind]++
	m.sent = append(m.sent, kind)
	if m.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (m *fakeMailer) OrderConfirmation(*domain.Order) error  { return m.record("confirmation") }
func (m *fakeMailer) OrderShipped(*domain.Order) error       { return m.record("shipped") }
func (m *fakeMailer) OrderDelivered(*domain.Order) error     { return m.record("delivered") }
func (m *fakeMailer) VendorNotification(*domain.Order) error { return m.record("vendor") }

type fakePriceHistory struct {
	mu      sync.Mutex
	changes []*domain.PriceChange
}

func (r *fakePriceHistory) Append(_ context.Context, c *domain.PriceChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return nil
}

func (r *fakePriceHistory) ListForProduct(_ context.Context, id uuid.UUID) ([]domain.PriceChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PriceChange
	for _, c := range r.changes {
		if c.ProductID == id {
			out = append(out, *c)
		}
	}
	return out, nil
}
