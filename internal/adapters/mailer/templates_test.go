package mailer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/nooratelier/boutique/internal/domain"
)

func sampleOrder() *domain.Order {
	eta := time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:          uuid.New(),
		PaymentID:   "pi_123",
		Provider:    domain.ProviderStripe,
		Name:        "Amira <K>",
		Email:       "amira@example.com",
		Address:     "Villa 12",
		City:        "Dubai",
		Country:     "AE",
		TotalAmount: 450,
		Currency:    domain.CurrencyAED,
		Carrier:     "Aramex",

		TrackingNumber:    "TRK123",
		EstimatedDelivery: &eta,
		Items: []domain.OrderItem{
			{Name: "Oud Silk Abaya", Qty: 3, UnitPrice: 150, Currency: domain.CurrencyAED, QtyFromStock: 2, QtyPreorder: 1},
		},
	}
}

func TestRenderConfirmation(t *testing.T) {
	html := RenderConfirmation(sampleOrder())
	assert.Contains(t, html, "Amira &lt;K&gt;", "customer input is escaped")
	assert.Contains(t, html, "Oud Silk Abaya")
	assert.Contains(t, html, "(1 on pre-order)")
	assert.Contains(t, html, "ship separately")
	assert.Contains(t, html, "AED 450.00")
}

func TestRenderConfirmationNoPreorderNote(t *testing.T) {
	o := sampleOrder()
	o.Items[0].QtyPreorder = 0
	html := RenderConfirmation(o)
	assert.NotContains(t, html, "ship separately")
	assert.NotContains(t, html, "pre-order")
}

func TestRenderShipped(t *testing.T) {
	html := RenderShipped(sampleOrder())
	assert.Contains(t, html, "Aramex")
	assert.Contains(t, html, "TRK123")
	assert.Contains(t, html, "20 September 2026")
}

func TestRenderVendor(t *testing.T) {
	o := sampleOrder()
	o.Notes = "2x Oud Silk Abaya — 2 item(s)"
	html := RenderVendor(o)
	assert.Contains(t, html, "pi_123")
	assert.Contains(t, html, "amira@example.com")
	assert.Contains(t, html, "Villa 12")
	assert.Contains(t, html, o.Notes)
}

func TestShortID(t *testing.T) {
	o := sampleOrder()
	got := shortID(o)
	assert.Len(t, got, 9)
	assert.Equal(t, "#", got[:1])
}

func TestUnconfiguredMailerIsNoOp(t *testing.T) {
	m := &Mailer{}
	assert.NoError(t, m.OrderConfirmation(sampleOrder()))
}
