package paypal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nooratelier/boutique/internal/domain"
)

const captureBody = `{
  "id": "ORDER123",
  "status": "COMPLETED",
  "payer": {
    "name": {"given_name": "Amira", "surname": "K"},
    "email_address": "amira@example.com",
    "phone": {"phone_number": {"national_number": "501234567"}}
  },
  "purchase_units": [{
    "amount": {"currency_code": "AED", "value": "450.00"},
    "items": [{
      "name": "Oud Silk Abaya",
      "sku": "7b9e8f3c-2a1d-4e5f-9c8b-1a2b3c4d5e6f",
      "quantity": "3",
      "unit_amount": {"currency_code": "AED", "value": "150.00"}
    }],
    "shipping": {"address": {
      "address_line_1": "Villa 12",
      "address_line_2": "Al Wasl Rd",
      "admin_area_2": "Dubai",
      "postal_code": "00000",
      "country_code": "AE"
    }},
    "payments": {"captures": [{
      "id": "CAP456",
      "status": "COMPLETED",
      "amount": {"currency_code": "AED", "value": "450.00"}
    }]}
  }]
}`

func testGateway(srv *httptest.Server) *Gateway {
	return &Gateway{baseURL: srv.URL, webhookID: "wh-1", httpClient: srv.Client()}
}

func TestCaptureOrderTranslatesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/checkout/orders/ORDER123/capture", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(captureBody))
	}))
	defer srv.Close()

	o, err := testGateway(srv).CaptureOrder(context.Background(), "ORDER123")
	require.NoError(t, err)

	assert.Equal(t, "CAP456", o.PaymentID, "capture id, not order id, keys the order")
	assert.Equal(t, domain.ProviderPayPal, o.Provider)
	assert.Equal(t, "Amira K", o.Name)
	assert.Equal(t, "amira@example.com", o.Email)
	assert.Equal(t, "Villa 12, Al Wasl Rd", o.Address)
	assert.Equal(t, "Dubai", o.City)
	assert.Equal(t, "AE", o.Country)
	assert.Equal(t, "AED", o.Currency)
	assert.Equal(t, 450.0, o.TotalAmount)

	require.Len(t, o.Items, 1)
	it := o.Items[0]
	assert.Equal(t, "Oud Silk Abaya", it.Name)
	assert.Equal(t, 3, it.Qty)
	assert.Equal(t, 150.0, it.UnitPrice)
	require.NotNil(t, it.ProductID, "sku carries the catalog product id")
	assert.Equal(t, "7b9e8f3c-2a1d-4e5f-9c8b-1a2b3c4d5e6f", it.ProductID.String())
}

func TestCaptureOrderRejectsIncompleteStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"ORDER123","status":"PENDING","purchase_units":[{"amount":{"currency_code":"AED","value":"10.00"}}]}`))
	}))
	defer srv.Close()

	_, err := testGateway(srv).CaptureOrder(context.Background(), "ORDER123")
	assert.ErrorContains(t, err, "capture status PENDING")
}

func TestCaptureOrderSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		_, _ = w.Write([]byte(`{"name":"ORDER_ALREADY_CAPTURED","message":"Order already captured."}`))
	}))
	defer srv.Close()

	_, err := testGateway(srv).CaptureOrder(context.Background(), "ORDER123")
	assert.ErrorContains(t, err, "ORDER_ALREADY_CAPTURED")
}

func TestParseCaptureEvent(t *testing.T) {
	body := []byte(`{
	  "event_type": "PAYMENT.CAPTURE.COMPLETED",
	  "resource": {
	    "id": "CAP456",
	    "supplementary_data": {"related_ids": {"order_id": "ORDER123"}}
	  }
	}`)
	ev, ok, err := ParseCaptureEvent(body)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "CAP456", ev.CaptureID)
	assert.Equal(t, "ORDER123", ev.OrderID)
}

func TestParseCaptureEventIgnoresOtherTypes(t *testing.T) {
	_, ok, err := ParseCaptureEvent([]byte(`{"event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"X"}}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseCaptureEventMissingIDs(t *testing.T) {
	_, _, err := ParseCaptureEvent([]byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":""}}`))
	assert.Error(t, err)
}

func TestVerifyWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/notifications/verify-webhook-signature", r.URL.Path)
		_, _ = w.Write([]byte(`{"verification_status":"SUCCESS"}`))
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("Paypal-Transmission-Id", "t-1")
	ok, err := testGateway(srv).VerifyWebhook(context.Background(), h, []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED"}`))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"verification_status":"FAILURE"}`))
	}))
	defer srv.Close()

	ok, err := testGateway(srv).VerifyWebhook(context.Background(), http.Header{}, []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyWebhookRequiresWebhookID(t *testing.T) {
	g := &Gateway{baseURL: "http://unused", httpClient: http.DefaultClient}
	_, err := g.VerifyWebhook(context.Background(), http.Header{}, []byte(`{}`))
	assert.Error(t, err)
}
