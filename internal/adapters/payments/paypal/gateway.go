package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/nooratelier/boutique/internal/domain"
)

const (
	sandboxBase = "https://api-m.sandbox.paypal.com"
	liveBase    = "https://api-m.paypal.com"
)

// Gateway talks to PayPal's Orders v2 API. Token exchange is handled by the
// client-credentials flow; the resulting client refreshes tokens on its own.
type Gateway struct {
	baseURL    string
	webhookID  string
	httpClient *http.Client
}

func NewGateway(clientID, secret, env, webhookID string) (*Gateway, error) {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(secret) == "" {
		return nil, errors.New("paypal credentials missing (PAYPAL_CLIENT_ID / PAYPAL_CLIENT_SECRET)")
	}
	base := sandboxBase
	if strings.EqualFold(env, "live") || strings.EqualFold(env, "production") {
		base = liveBase
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: secret,
		TokenURL:     base + "/v1/oauth2/token",
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: 10 * time.Second})
	hc := cfg.Client(ctx)
	hc.Timeout = 15 * time.Second
	return &Gateway{baseURL: base, webhookID: webhookID, httpClient: hc}, nil
}

type ppAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type ppItem struct {
	Name       string   `json:"name"`
	SKU        string   `json:"sku"`
	Quantity   string   `json:"quantity"`
	UnitAmount ppAmount `json:"unit_amount"`
}

type ppAddress struct {
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	AdminArea2   string `json:"admin_area_2"`
	PostalCode   string `json:"postal_code"`
	CountryCode  string `json:"country_code"`
}

type ppOrderResp struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Payer  struct {
		Name struct {
			GivenName string `json:"given_name"`
			Surname   string `json:"surname"`
		} `json:"name"`
		EmailAddress string `json:"email_address"`
		Phone        struct {
			PhoneNumber struct {
				NationalNumber string `json:"national_number"`
			} `json:"phone_number"`
		} `json:"phone"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Amount   ppAmount `json:"amount"`
		Items    []ppItem `json:"items"`
		Shipping struct {
			Address ppAddress `json:"address"`
		} `json:"shipping"`
		Payments struct {
			Captures []struct {
				ID     string   `json:"id"`
				Status string   `json:"status"`
				Amount ppAmount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type ppErrorResp struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// CaptureOrder confirms an approved PayPal order server-side and translates
// the capture into an order draft keyed by the capture id.
func (g *Gateway) CaptureOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, errors.New("empty order id")
	}
	resp, err := g.do(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, err
	}
	var cap ppOrderResp
	if err := json.Unmarshal(resp, &cap); err != nil {
		return nil, err
	}
	if !strings.EqualFold(cap.Status, "COMPLETED") {
		return nil, fmt.Errorf("paypal capture status %s", cap.Status)
	}
	o, err := orderFromResponse(&cap)
	if err != nil {
		return nil, err
	}
	if len(o.Items) == 0 {
		// Capture responses do not always echo line items; re-read the order.
		full, gerr := g.GetOrder(ctx, orderID)
		if gerr == nil && len(full.Items) > 0 {
			o.Items = full.Items
		}
	}
	if len(o.Items) == 0 {
		return nil, errors.New("paypal order has no line items")
	}
	return o, nil
}

// GetOrder reads an order back from PayPal, mostly to recover line items on
// the asynchronous webhook path.
func (g *Gateway) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	resp, err := g.do(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, nil)
	if err != nil {
		return nil, err
	}
	var ord ppOrderResp
	if err := json.Unmarshal(resp, &ord); err != nil {
		return nil, err
	}
	return orderFromResponse(&ord)
}

func orderFromResponse(r *ppOrderResp) (*domain.Order, error) {
	if len(r.PurchaseUnits) == 0 {
		return nil, errors.New("paypal response without purchase units")
	}
	pu := r.PurchaseUnits[0]

	o := &domain.Order{
		ID:       uuid.New(),
		Provider: domain.ProviderPayPal,
		Email:    r.Payer.EmailAddress,
		Name:     strings.TrimSpace(r.Payer.Name.GivenName + " " + r.Payer.Name.Surname),
		Phone:    r.Payer.Phone.PhoneNumber.NationalNumber,
	}
	addr := pu.Shipping.Address
	o.Address = strings.TrimSpace(strings.Trim(addr.AddressLine1+", "+addr.AddressLine2, ", "))
	o.City = addr.AdminArea2
	o.Country = addr.CountryCode
	o.PostalCode = addr.PostalCode

	amount := pu.Amount
	if len(pu.Payments.Captures) > 0 {
		// The capture is authoritative for what was actually charged.
		c := pu.Payments.Captures[0]
		o.PaymentID = c.ID
		amount = c.Amount
	}
	o.Currency = strings.ToUpper(amount.CurrencyCode)
	o.TotalAmount = parseAmount(amount.Value)

	for _, it := range pu.Items {
		qty, _ := strconv.Atoi(it.Quantity)
		if qty < 1 {
			continue
		}
		item := domain.OrderItem{
			ID:        uuid.New(),
			Name:      it.Name,
			Qty:       qty,
			UnitPrice: parseAmount(it.UnitAmount.Value),
			Currency:  strings.ToUpper(it.UnitAmount.CurrencyCode),
		}
		if item.Currency == "" {
			item.Currency = o.Currency
		}
		// The cart stores the product id in the SKU slot at order creation.
		if pid, err := uuid.Parse(strings.TrimSpace(it.SKU)); err == nil {
			id := pid
			item.ProductID = &id
		}
		o.Items = append(o.Items, item)
	}
	return o, nil
}

func parseAmount(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}

// CaptureEvent is the subset of a PAYMENT.CAPTURE.COMPLETED webhook this
// service consumes.
type CaptureEvent struct {
	CaptureID string
	OrderID   string
}

// ParseCaptureEvent extracts the capture and related order ids from a webhook
// body, ok=false for event types this service ignores.
func ParseCaptureEvent(body []byte) (CaptureEvent, bool, error) {
	var evt struct {
		EventType string `json:"event_type"`
		Resource  struct {
			ID                string `json:"id"`
			SupplementaryData struct {
				RelatedIDs struct {
					OrderID string `json:"order_id"`
				} `json:"related_ids"`
			} `json:"supplementary_data"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return CaptureEvent{}, false, err
	}
	if evt.EventType != "PAYMENT.CAPTURE.COMPLETED" {
		return CaptureEvent{}, false, nil
	}
	ev := CaptureEvent{CaptureID: evt.Resource.ID, OrderID: evt.Resource.SupplementaryData.RelatedIDs.OrderID}
	if ev.CaptureID == "" || ev.OrderID == "" {
		return CaptureEvent{}, false, errors.New("capture event missing ids")
	}
	return ev, true, nil
}

// VerifyWebhook posts the transmission headers and raw event back to PayPal's
// signature verification endpoint.
func (g *Gateway) VerifyWebhook(ctx context.Context, h http.Header, body []byte) (bool, error) {
	if g.webhookID == "" {
		return false, errors.New("paypal webhook id missing (PAYPAL_WEBHOOK_ID)")
	}
	req := map[string]any{
		"auth_algo":         h.Get("Paypal-Auth-Algo"),
		"cert_url":          h.Get("Paypal-Cert-Url"),
		"transmission_id":   h.Get("Paypal-Transmission-Id"),
		"transmission_sig":  h.Get("Paypal-Transmission-Sig"),
		"transmission_time": h.Get("Paypal-Transmission-Time"),
		"webhook_id":        g.webhookID,
		"webhook_event":     json.RawMessage(body),
	}
	buf, err := json.Marshal(req)
	if err != nil {
		return false, err
	}
	resp, err := g.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", bytes.NewReader(buf))
	if err != nil {
		return false, err
	}
	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return false, err
	}
	return out.VerificationStatus == "SUCCESS", nil
}

func (g *Gateway) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal request: %w", err)
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode >= 300 {
		var perr ppErrorResp
		if err := json.Unmarshal(raw, &perr); err == nil && perr.Message != "" {
			if res.StatusCode == 401 || res.StatusCode == 403 {
				return nil, fmt.Errorf("paypal auth failed (status %d): %s", res.StatusCode, perr.Message)
			}
			return nil, fmt.Errorf("paypal %s (status %d): %s", perr.Name, res.StatusCode, perr.Message)
		}
		return nil, fmt.Errorf("paypal status %d: %s", res.StatusCode, string(raw))
	}
	return raw, nil
}
