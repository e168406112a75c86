package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusOnHold     OrderStatus = "on_hold"
)

type ShippingStatus string

const (
	ShippingStatusPending   ShippingStatus = "pending"
	ShippingStatusPaid      ShippingStatus = "paid"
	ShippingStatusShipped   ShippingStatus = "shipped"
	ShippingStatusDelivered ShippingStatus = "delivered"
	ShippingStatusReturned  ShippingStatus = "returned"
	ShippingStatusFailed    ShippingStatus = "failed"
)

const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

type Order struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	// Provider-supplied capture/payment-intent reference. The unique index is
	// the idempotency guard against webhook redelivery.
	PaymentID string `gorm:"size:140;uniqueIndex"`
	Provider  string `gorm:"size:20;index"`
	Items     []OrderItem

	Email      string `gorm:"size:140"`
	Name       string `gorm:"size:140"`
	Phone      string `gorm:"size:50"`
	Address    string `gorm:"size:255"`
	City       string `gorm:"size:80"`
	Country    string `gorm:"size:80"`
	PostalCode string `gorm:"size:20"`

	TotalAmount float64 `gorm:"type:decimal(12,2)"`
	Currency    string  `gorm:"size:3"`

	PaymentStatus  PaymentStatus  `gorm:"type:varchar(20);index"`
	OrderStatus    OrderStatus    `gorm:"type:varchar(20);index"`
	ShippingStatus ShippingStatus `gorm:"type:varchar(20);index"`

	TrackingNumber    string `gorm:"size:80"`
	Carrier           string `gorm:"size:60"`
	ShippedAt         *time.Time
	DeliveredAt       *time.Time
	EstimatedDelivery *time.Time

	Notes string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID  `gorm:"type:uuid;index"`
	ProductID *uuid.UUID `gorm:"type:uuid;index"`
	// Display name snapshot at purchase time, so historic orders render
	// correctly after renames or deletes.
	Name         string  `gorm:"size:180"`
	Qty          int     `gorm:"not null"`
	UnitPrice    float64 `gorm:"type:decimal(12,2)"`
	Currency     string  `gorm:"size:3"`
	QtyFromStock int     `gorm:"not null;default:0"`
	QtyPreorder  int     `gorm:"not null;default:0"`
}

type OrderRepo interface {
	// Record persists header plus items and reserves stock for every item in
	// one transaction. A duplicate payment reference returns the existing
	// order with created=false and writes nothing.
	Record(ctx context.Context, o *Order) (id uuid.UUID, created bool, err error)
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	Save(ctx context.Context, o *Order) error
}

// Mailer sends the transactional templates keyed off order state transitions.
// Implementations log and absorb transport failures internally only at the
// dispatch sites; the methods themselves return errors so callers decide.
type Mailer interface {
	OrderConfirmation(o *Order) error
	OrderShipped(o *Order) error
	OrderDelivered(o *Order) error
	VendorNotification(o *Order) error
}
