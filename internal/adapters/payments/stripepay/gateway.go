package stripepay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/nooratelier/boutique/internal/domain"
)

// Gateway bridges Stripe Checkout confirmations into the order recorder's
// input shape. The session is always re-fetched server-side; client-supplied
// amounts and names are never trusted.
type Gateway struct {
	api           *client.API
	webhookSecret string
}

func NewGateway(secretKey, webhookSecret string) (*Gateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("stripe secret key missing (STRIPE_SECRET_KEY)")
	}
	return &Gateway{api: client.New(secretKey, nil), webhookSecret: webhookSecret}, nil
}

// cartSnapshot is the JSON blob stored in session metadata at
// checkout-session-creation time. Stripe line items do not round-trip custom
// item shape, so this snapshot is the source of truth for what was ordered.
type cartSnapshot struct {
	Items []cartSnapshotItem `json:"items"`
}

type cartSnapshotItem struct {
	ProductID string  `json:"product_id"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	Currency  string  `json:"currency"`
}

// CaptureSession retrieves a checkout session with its line items and
// translates it into an order draft keyed by the payment intent id.
func (g *Gateway) CaptureSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("empty session id")
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")
	params.AddExpand("payment_intent")
	sess, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe session retrieve: %w", err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, fmt.Errorf("session %s not paid (status %s)", sessionID, sess.PaymentStatus)
	}
	return orderFromSession(sess)
}

func orderFromSession(sess *stripe.CheckoutSession) (*domain.Order, error) {
	paymentID := sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		paymentID = sess.PaymentIntent.ID
	}
	o := &domain.Order{
		ID:          uuid.New(),
		PaymentID:   paymentID,
		Provider:    domain.ProviderStripe,
		TotalAmount: float64(sess.AmountTotal) / 100,
		Currency:    strings.ToUpper(string(sess.Currency)),
	}
	if d := sess.CustomerDetails; d != nil {
		o.Email = d.Email
		o.Name = d.Name
		o.Phone = d.Phone
		if a := d.Address; a != nil {
			o.Address = strings.TrimSpace(strings.Join(nonEmpty(a.Line1, a.Line2), ", "))
			o.City = a.City
			o.Country = a.Country
			o.PostalCode = a.PostalCode
		}
	}

	items, err := itemsFromMetadata(sess.Metadata, o.Currency)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		items = itemsFromLineItems(sess.LineItems, o.Currency)
	}
	if len(items) == 0 {
		return nil, errors.New("session has no line items")
	}
	o.Items = items
	return o, nil
}

func itemsFromMetadata(meta map[string]string, currency string) ([]domain.OrderItem, error) {
	raw, ok := meta["cart"]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var snap cartSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("cart snapshot: %w", err)
	}
	items := make([]domain.OrderItem, 0, len(snap.Items))
	for _, it := range snap.Items {
		if it.Qty < 1 {
			continue
		}
		item := domain.OrderItem{ID: uuid.New(), Qty: it.Qty, UnitPrice: it.UnitPrice, Currency: strings.ToUpper(it.Currency)}
		if item.Currency == "" {
			item.Currency = currency
		}
		if pid, err := uuid.Parse(it.ProductID); err == nil {
			id := pid
			item.ProductID = &id
		}
		items = append(items, item)
	}
	return items, nil
}

func itemsFromLineItems(list *stripe.LineItemList, currency string) []domain.OrderItem {
	if list == nil {
		return nil
	}
	items := make([]domain.OrderItem, 0, len(list.Data))
	for _, li := range list.Data {
		if li == nil || li.Quantity < 1 {
			continue
		}
		unit := float64(li.AmountTotal) / 100 / float64(li.Quantity)
		items = append(items, domain.OrderItem{
			ID:        uuid.New(),
			Name:      li.Description,
			Qty:       int(li.Quantity),
			UnitPrice: unit,
			Currency:  currency,
		})
	}
	return items
}

// VerifyWebhook checks the signature and returns the completed session id, or
// ok=false for event types this service ignores.
func (g *Gateway) VerifyWebhook(payload []byte, sigHeader string) (sessionID string, ok bool, err error) {
	evt, err := webhook.ConstructEvent(payload, sigHeader, g.webhookSecret)
	if err != nil {
		return "", false, fmt.Errorf("stripe webhook signature: %w", err)
	}
	if evt.Type != "checkout.session.completed" {
		return "", false, nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
		return "", false, fmt.Errorf("stripe webhook payload: %w", err)
	}
	return sess.ID, true, nil
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
