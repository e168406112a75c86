package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nooratelier/boutique/internal/domain"
)

type OrderUC struct {
	Orders   domain.OrderRepo
	Products domain.ProductRepo
	Mail     domain.Mailer
}

// RecordResult is what capture adapters get back from Record. Created is
// false when the payment reference had already been recorded.
type RecordResult struct {
	OrderID uuid.UUID
	Created bool
}

// Record persists an order exactly once per payment reference. Display names
// are snapshotted from the catalog before insert so a client can never smuggle
// its own item labels in. Stock reservation, header and items commit as one
// transaction inside the repo. Notification failures are logged and never
// surface to the caller: the money already moved.
func (uc *OrderUC) Record(ctx context.Context, o *domain.Order) (*RecordResult, error) {
	if o == nil {
		return nil, errors.New("nil order")
	}
	if strings.TrimSpace(o.PaymentID) == "" {
		return nil, errors.New("missing payment reference")
	}
	if strings.TrimSpace(o.Email) == "" || strings.TrimSpace(o.Name) == "" {
		return nil, errors.New("missing customer fields")
	}
	if len(o.Items) == 0 {
		return nil, errors.New("order without items")
	}
	for i := range o.Items {
		if o.Items[i].Qty < 1 {
			return nil, fmt.Errorf("item %d: quantity must be >= 1", i)
		}
	}

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = domain.PaymentStatusCompleted
	}
	if o.OrderStatus == "" {
		o.OrderStatus = domain.OrderStatusNew
	}
	if o.ShippingStatus == "" {
		o.ShippingStatus = domain.ShippingStatusPaid
	}

	uc.snapshotNames(ctx, o)
	o.Notes = synthesizeNotes(o)

	id, created, err := uc.Orders.Record(ctx, o)
	if err != nil {
		return nil, err
	}
	if created && uc.Mail != nil {
		if err := uc.Mail.OrderConfirmation(o); err != nil {
			log.Error().Err(err).Str("order_id", id.String()).Msg("confirmation email")
		}
		if err := uc.Mail.VendorNotification(o); err != nil {
			log.Error().Err(err).Str("order_id", id.String()).Msg("vendor email")
		}
	}
	return &RecordResult{OrderID: id, Created: created}, nil
}

func (uc *OrderUC) snapshotNames(ctx context.Context, o *domain.Order) {
	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		if it.ProductID == nil {
			if it.Name == "" {
				it.Name = "Item"
			}
			continue
		}
		p, err := uc.Products.FindByID(ctx, *it.ProductID)
		if err != nil || p == nil {
			if it.Name == "" {
				it.Name = "Item"
			}
			continue
		}
		it.Name = p.Name
	}
}

// synthesizeNotes builds the human-readable summary support reads on the
// order row, keeping any free-text notes the customer left.
func synthesizeNotes(o *domain.Order) string {
	var b strings.Builder
	totalQty := 0
	for i, it := range o.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%dx %s", it.Qty, it.Name)
		totalQty += it.Qty
	}
	fmt.Fprintf(&b, " — %d item(s)", totalQty)
	if extra := strings.TrimSpace(o.Notes); extra != "" {
		b.WriteString(" | ")
		b.WriteString(extra)
	}
	return b.String()
}

func (uc *OrderUC) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if id == uuid.Nil {
		return nil, errors.New("empty order id")
	}
	return uc.Orders.FindByID(ctx, id)
}

func (uc *OrderUC) List(ctx context.Context) ([]domain.Order, error) {
	return uc.Orders.List(ctx)
}

// MarkShipped moves a paid order to shipped. Tracking number, carrier and
// estimated delivery are required; any other starting state is rejected.
func (uc *OrderUC) MarkShipped(ctx context.Context, id uuid.UUID, tracking, carrier string, estimated time.Time) (*domain.Order, error) {
	if strings.TrimSpace(tracking) == "" || strings.TrimSpace(carrier) == "" {
		return nil, errors.New("tracking number and carrier required")
	}
	if estimated.IsZero() {
		return nil, errors.New("estimated delivery date required")
	}
	o, err := uc.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.ShippingStatus != domain.ShippingStatusPaid {
		return nil, fmt.Errorf("cannot ship order in shipping status %q", o.ShippingStatus)
	}
	now := time.Now()
	o.TrackingNumber = strings.TrimSpace(tracking)
	o.Carrier = strings.TrimSpace(carrier)
	o.EstimatedDelivery = &estimated
	o.ShippedAt = &now
	o.ShippingStatus = domain.ShippingStatusShipped
	o.OrderStatus = domain.OrderStatusShipped
	if err := uc.Orders.Save(ctx, o); err != nil {
		return nil, err
	}
	if uc.Mail != nil {
		if err := uc.Mail.OrderShipped(o); err != nil {
			log.Error().Err(err).Str("order_id", id.String()).Msg("shipped email")
		}
	}
	return o, nil
}

// MarkDelivered closes the shipment. Only a shipped order may be delivered.
func (uc *OrderUC) MarkDelivered(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, err := uc.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.ShippingStatus != domain.ShippingStatusShipped {
		return nil, fmt.Errorf("cannot deliver order in shipping status %q", o.ShippingStatus)
	}
	now := time.Now()
	o.DeliveredAt = &now
	o.ShippingStatus = domain.ShippingStatusDelivered
	o.OrderStatus = domain.OrderStatusDelivered
	if err := uc.Orders.Save(ctx, o); err != nil {
		return nil, err
	}
	if uc.Mail != nil {
		if err := uc.Mail.OrderDelivered(o); err != nil {
			log.Error().Err(err).Str("order_id", id.String()).Msg("delivered email")
		}
	}
	return o, nil
}

// ResendConfirmation re-sends the confirmation email without touching state.
func (uc *OrderUC) ResendConfirmation(ctx context.Context, id uuid.UUID) error {
	o, err := uc.Orders.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if uc.Mail == nil {
		return errors.New("mailer not configured")
	}
	return uc.Mail.OrderConfirmation(o)
}
