package httpserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nooratelier/boutique/internal/adapters/payments/paypal"
	"github.com/nooratelier/boutique/internal/adapters/payments/stripepay"
	"github.com/nooratelier/boutique/internal/domain"
	"github.com/nooratelier/boutique/internal/usecase"
)

type Server struct {
	mux         *http.ServeMux
	catalog     *usecase.CatalogUC
	inventory   *usecase.InventoryUC
	orders      *usecase.OrderUC
	stripe      *stripepay.Gateway
	paypal      *paypal.Gateway
	subscribers domain.SubscriberRepo

	adminAllowed map[string]struct{}
	adminSecret  []byte
}

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

func New(cat *usecase.CatalogUC, inv *usecase.InventoryUC, ord *usecase.OrderUC, sp *stripepay.Gateway, pp *paypal.Gateway, subs domain.SubscriberRepo) http.Handler {
	s := &Server{
		mux: http.NewServeMux(), catalog: cat, inventory: inv, orders: ord,
		stripe: sp, paypal: pp, subscribers: subs,
	}

	allowed := map[string]struct{}{}
	if raw := os.Getenv("ADMIN_ALLOWED_EMAILS"); raw != "" {
		for _, e := range strings.Split(raw, ",") {
			e = strings.ToLower(strings.TrimSpace(e))
			if e != "" {
				allowed[e] = struct{}{}
			}
		}
	}
	s.adminAllowed = allowed
	sec := os.Getenv("JWT_ADMIN_SECRET")
	if sec == "" {
		sec = os.Getenv("SECRET_KEY")
	}
	if sec == "" {
		sec = "dev-admin-secret"
	}
	s.adminSecret = []byte(sec)

	s.routes()
	return Chain(s.mux,
		RateLimit(120),
		RequestID,
		Recovery,
		Logging,
	)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/products", s.apiProducts)
	s.mux.HandleFunc("/api/products/", s.apiProductByID)

	s.mux.HandleFunc("/api/orders", s.apiOrders)
	s.mux.HandleFunc("/api/orders/", s.apiOrderByID)

	s.mux.HandleFunc("/api/checkout/stripe/capture", s.apiStripeCapture)
	s.mux.HandleFunc("/api/checkout/paypal/capture", s.apiPayPalCapture)
	s.mux.HandleFunc("/webhooks/stripe", s.webhookStripe)
	s.mux.HandleFunc("/webhooks/paypal", s.webhookPayPal)

	s.mux.HandleFunc("/api/subscribe", s.apiSubscribe)

	s.mux.HandleFunc("/admin/login", s.handleAdminLogin)
	s.mux.HandleFunc("/admin/orders/export", s.handleAdminOrdersExport)
}

// --- catalog ---

func (s *Server) apiProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		if q.Get("all") == "1" || q.Get("status") != "" {
			// Filtered listing exposes inactive rows, so it stays behind admin.
			if !s.requireAdmin(w, r) {
				return
			}
			page, _ := strconv.Atoi(q.Get("page"))
			size, _ := strconv.Atoi(q.Get("page_size"))
			f := domain.ProductFilter{
				Status:   domain.ProductStatus(q.Get("status")),
				Category: q.Get("category"),
				Query:    q.Get("q"),
				Page:     page,
				PageSize: size,
			}
			list, total, err := s.catalog.List(r.Context(), f)
			if err != nil {
				http.Error(w, "err", 500)
				return
			}
			writeJSON(w, 200, map[string]any{"items": list, "total": total})
			return
		}
		list, err := s.catalog.ListActive(r.Context())
		if err != nil {
			http.Error(w, "err", 500)
			return
		}
		writeJSON(w, 200, map[string]any{"items": list, "total": len(list)})
	case http.MethodPost:
		if !s.requireAdmin(w, r) {
			return
		}
		var req struct {
			Code              string   `json:"code"`
			Name              string   `json:"name"`
			Subtitle          string   `json:"subtitle"`
			Description       string   `json:"description"`
			Category          string   `json:"category"`
			Materials         []string `json:"materials"`
			Essences          []string `json:"essences"`
			PriceAED          *float64 `json:"price_aed"`
			PriceGBP          *float64 `json:"price_gbp"`
			QuantityAvailable int      `json:"quantity_available"`
			TotalQuantity     *int     `json:"total_quantity"`
			Status            string   `json:"status"`
			PreOrderDate      string   `json:"pre_order_date"`
			Images            []string `json:"images"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
			http.Error(w, "json", 400)
			return
		}
		p := &domain.Product{
			ID: uuid.New(), Code: req.Code, Name: req.Name, Subtitle: req.Subtitle,
			Description: req.Description, Category: req.Category,
			Materials: req.Materials, Essences: req.Essences,
			PriceAED: req.PriceAED, PriceGBP: req.PriceGBP,
			QuantityAvailable: req.QuantityAvailable, TotalQuantity: req.TotalQuantity,
			Status: domain.ProductStatus(req.Status),
		}
		if req.PreOrderDate != "" {
			d, err := time.Parse("2006-01-02", req.PreOrderDate)
			if err != nil {
				http.Error(w, "pre_order_date", 400)
				return
			}
			p.PreOrderDate = &d
		}
		for _, u := range req.Images {
			p.Images = append(p.Images, domain.ProductImage{ID: uuid.New(), ProductID: p.ID, URL: u})
		}
		if err := s.catalog.Create(r.Context(), p); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		writeJSON(w, 201, p)
	default:
		http.Error(w, "method", 405)
	}
}

func (s *Server) apiProductByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/products/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := uuid.Parse(parts[0])
	if err != nil {
		http.Error(w, "id", 400)
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	if action == "" {
		switch r.Method {
		case http.MethodGet:
			p, err := s.catalog.Get(r.Context(), id)
			if err != nil {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, 200, p)
		case http.MethodPut:
			if !s.requireAdmin(w, r) {
				return
			}
			var req struct {
				Name          *string   `json:"name"`
				Subtitle      *string   `json:"subtitle"`
				Description   *string   `json:"description"`
				Category      *string   `json:"category"`
				Materials     *[]string `json:"materials"`
				Essences      *[]string `json:"essences"`
				TotalQuantity *int      `json:"total_quantity"`
			}
			if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
				http.Error(w, "json", 400)
				return
			}
			fields := map[string]any{}
			if req.Name != nil {
				fields["name"] = *req.Name
			}
			if req.Subtitle != nil {
				fields["subtitle"] = *req.Subtitle
			}
			if req.Description != nil {
				fields["description"] = *req.Description
			}
			if req.Category != nil {
				fields["category"] = *req.Category
			}
			if req.Materials != nil {
				fields["materials"] = *req.Materials
			}
			if req.Essences != nil {
				fields["essences"] = *req.Essences
			}
			if req.TotalQuantity != nil {
				fields["total_quantity"] = *req.TotalQuantity
			}
			if err := s.catalog.Update(r.Context(), id, fields); err != nil {
				writeMutationErr(w, err)
				return
			}
			writeJSON(w, 200, map[string]any{"updated": true})
		case http.MethodDelete:
			if !s.requireAdmin(w, r) {
				return
			}
			if err := s.catalog.Delete(r.Context(), id); err != nil {
				http.Error(w, "err", 500)
				return
			}
			writeJSON(w, 200, map[string]any{"deleted": true})
		default:
			http.Error(w, "method", 405)
		}
		return
	}

	if r.Method != http.MethodPut {
		http.Error(w, "method", 405)
		return
	}
	if !s.requireAdmin(w, r) {
		return
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 4096))
	switch action {
	case "stock":
		var req struct {
			Quantity int `json:"quantity"`
		}
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "json", 400)
			return
		}
		if err := s.catalog.SetStock(r.Context(), id, req.Quantity); err != nil {
			writeMutationErr(w, err)
			return
		}
	case "price":
		var req struct {
			Currency string   `json:"currency"`
			Price    *float64 `json:"price"`
		}
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "json", 400)
			return
		}
		if err := s.catalog.SetPrice(r.Context(), id, strings.ToUpper(req.Currency), req.Price); err != nil {
			writeMutationErr(w, err)
			return
		}
	case "preorder-date":
		var req struct {
			Date *string `json:"date"`
		}
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "json", 400)
			return
		}
		var d *time.Time
		if req.Date != nil && *req.Date != "" {
			t, err := time.Parse("2006-01-02", *req.Date)
			if err != nil {
				http.Error(w, "date", 400)
				return
			}
			d = &t
		}
		if err := s.catalog.SetPreOrderDate(r.Context(), id, d); err != nil {
			writeMutationErr(w, err)
			return
		}
	case "status":
		var req struct {
			Status          string `json:"status"`
			RestockOverride bool   `json:"restock_override"`
		}
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "json", 400)
			return
		}
		if err := s.catalog.SetStatus(r.Context(), id, domain.ProductStatus(req.Status), req.RestockOverride); err != nil {
			writeMutationErr(w, err)
			return
		}
	default:
		http.NotFound(w, r)
		return
	}
	writeJSON(w, 200, map[string]any{"updated": true})
}

// --- orders ---

func (s *Server) apiOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method", 405)
		return
	}
	if !s.requireAdmin(w, r) {
		return
	}
	list, err := s.orders.List(r.Context())
	if err != nil {
		http.Error(w, "err", 500)
		return
	}
	writeJSON(w, 200, map[string]any{"items": list, "total": len(list)})
}

func (s *Server) apiOrderByID(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := uuid.Parse(parts[0])
	if err != nil {
		http.Error(w, "id", 400)
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		o, err := s.orders.GetByID(r.Context(), id)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, 200, o)
	case action == "ship" && r.Method == http.MethodPut:
		var req struct {
			TrackingNumber    string `json:"tracking_number"`
			Carrier           string `json:"carrier"`
			EstimatedDelivery string `json:"estimated_delivery"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
			http.Error(w, "json", 400)
			return
		}
		eta, err := time.Parse("2006-01-02", req.EstimatedDelivery)
		if err != nil {
			http.Error(w, "estimated_delivery", 400)
			return
		}
		o, err := s.orders.MarkShipped(r.Context(), id, req.TrackingNumber, req.Carrier, eta)
		if err != nil {
			writeMutationErr(w, err)
			return
		}
		writeJSON(w, 200, o)
	case action == "deliver" && r.Method == http.MethodPut:
		o, err := s.orders.MarkDelivered(r.Context(), id)
		if err != nil {
			writeMutationErr(w, err)
			return
		}
		writeJSON(w, 200, o)
	case action == "resend-confirmation" && r.Method == http.MethodPost:
		if err := s.orders.ResendConfirmation(r.Context(), id); err != nil {
			writeMutationErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"sent": true})
	default:
		http.Error(w, "method", 405)
	}
}

// --- payment capture ---

func (s *Server) apiStripeCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	if s.stripe == nil {
		http.Error(w, "stripe not configured", 503)
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 2048)).Decode(&req); err != nil {
		http.Error(w, "json", 400)
		return
	}
	draft, err := s.stripe.CaptureSession(r.Context(), req.SessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("stripe capture")
		writeCheckoutFailure(w)
		return
	}
	s.recordCapture(w, r, draft)
}

func (s *Server) apiPayPalCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	if s.paypal == nil {
		http.Error(w, "paypal not configured", 503)
		return
	}
	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 2048)).Decode(&req); err != nil {
		http.Error(w, "json", 400)
		return
	}
	draft, err := s.paypal.CaptureOrder(r.Context(), req.OrderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", req.OrderID).Msg("paypal capture")
		writeCheckoutFailure(w)
		return
	}
	s.recordCapture(w, r, draft)
}

func (s *Server) recordCapture(w http.ResponseWriter, r *http.Request, draft *domain.Order) {
	res, err := s.orders.Record(r.Context(), draft)
	if err != nil {
		log.Error().Err(err).Str("payment_id", draft.PaymentID).Msg("record order")
		writeCheckoutFailure(w)
		return
	}
	writeJSON(w, 200, map[string]any{"order_id": res.OrderID, "created": res.Created})
}

// writeCheckoutFailure keeps the storefront message generic: the caller gets
// a contact channel, not internals.
func writeCheckoutFailure(w http.ResponseWriter) {
	writeJSON(w, 502, map[string]any{
		"error":   "payment could not be completed",
		"contact": "support@nooratelier.com",
	})
}

// --- webhooks ---
// Webhook handlers always acknowledge with 200 once the payload has been
// read: a permanently-invalid payload must not trigger a provider retry
// storm. Failures are logged instead.

func (s *Server) webhookStripe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	if s.stripe == nil {
		w.WriteHeader(200)
		return
	}
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	sid, ok, err := s.stripe.VerifyWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Msg("stripe webhook rejected")
		w.WriteHeader(200)
		return
	}
	if !ok {
		w.WriteHeader(200)
		return
	}
	draft, err := s.stripe.CaptureSession(r.Context(), sid)
	if err != nil {
		log.Error().Err(err).Str("session_id", sid).Msg("stripe webhook session")
		w.WriteHeader(200)
		return
	}
	if res, err := s.orders.Record(r.Context(), draft); err != nil {
		log.Error().Err(err).Str("payment_id", draft.PaymentID).Msg("stripe webhook record")
	} else if !res.Created {
		log.Info().Str("payment_id", draft.PaymentID).Msg("stripe webhook duplicate, already recorded")
	}
	w.WriteHeader(200)
}

func (s *Server) webhookPayPal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	if s.paypal == nil {
		w.WriteHeader(200)
		return
	}
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	verified, err := s.paypal.VerifyWebhook(r.Context(), r.Header, body)
	if err != nil || !verified {
		log.Warn().Err(err).Bool("verified", verified).Msg("paypal webhook rejected")
		w.WriteHeader(200)
		return
	}
	ev, ok, err := paypal.ParseCaptureEvent(body)
	if err != nil {
		log.Warn().Err(err).Msg("paypal webhook payload")
		w.WriteHeader(200)
		return
	}
	if !ok {
		w.WriteHeader(200)
		return
	}
	draft, err := s.paypal.GetOrder(r.Context(), ev.OrderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", ev.OrderID).Msg("paypal webhook order")
		w.WriteHeader(200)
		return
	}
	// Whichever delivery fires first wins; the capture id keys both paths.
	draft.PaymentID = ev.CaptureID
	if res, err := s.orders.Record(r.Context(), draft); err != nil {
		log.Error().Err(err).Str("payment_id", ev.CaptureID).Msg("paypal webhook record")
	} else if !res.Created {
		log.Info().Str("payment_id", ev.CaptureID).Msg("paypal webhook duplicate, already recorded")
	}
	w.WriteHeader(200)
}

// --- newsletter ---

func (s *Server) apiSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1024)).Decode(&req); err != nil {
		http.Error(w, "json", 400)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRe.MatchString(email) {
		http.Error(w, "email", 400)
		return
	}
	created, err := s.subscribers.Upsert(r.Context(), email)
	if err != nil {
		http.Error(w, "err", 500)
		return
	}
	writeJSON(w, 200, map[string]any{"subscribed": true, "created": created})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMutationErr(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "not found", 404)
		return
	}
	http.Error(w, err.Error(), 400)
}

// --- admin auth ---

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	cfgKey := os.Getenv("ADMIN_API_KEY")
	if cfgKey == "" {
		log.Error().Msg("ADMIN_API_KEY missing")
		http.Error(w, "config", 500)
		return
	}
	apiKey := r.Header.Get("X-Admin-Key")
	if apiKey == "" || !secureCompare(apiKey, cfgKey) {
		http.Error(w, "unauthorized", 401)
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" && len(s.adminAllowed) == 1 {
		for k := range s.adminAllowed {
			email = k
		}
	}
	if _, ok := s.adminAllowed[email]; !ok {
		http.Error(w, "forbidden", 403)
		return
	}
	tok, exp, err := s.issueAdminToken(email, 30*time.Minute)
	if err != nil {
		http.Error(w, "token", 500)
		return
	}
	writeJSON(w, 200, map[string]any{"token": tok, "exp": exp.Unix(), "email": email})
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		tok := strings.TrimSpace(auth[7:])
		if _, err := s.verifyAdminToken(tok); err == nil {
			return true
		}
	}
	http.Error(w, "unauthorized", 401)
	return false
}

func (s *Server) issueAdminToken(email string, dur time.Duration) (string, time.Time, error) {
	head := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	exp := time.Now().Add(dur)
	claims := map[string]any{"sub": email, "email": email, "role": "admin", "exp": exp.Unix(), "iat": time.Now().Unix(), "iss": "nooratelier"}
	b, _ := json.Marshal(claims)
	pay := base64.RawURLEncoding.EncodeToString(b)
	unsigned := head + "." + pay
	h := hmac.New(sha256.New, s.adminSecret)
	h.Write([]byte(unsigned))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return unsigned + "." + sig, exp, nil
}

func (s *Server) verifyAdminToken(tok string) (string, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("format")
	}
	unsigned := parts[0] + "." + parts[1]
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("sig")
	}
	h := hmac.New(sha256.New, s.adminSecret)
	h.Write([]byte(unsigned))
	if !hmac.Equal(sig, h.Sum(nil)) {
		return "", fmt.Errorf("signature")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("payload")
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", fmt.Errorf("json")
	}
	role, _ := m["role"].(string)
	email, _ := m["email"].(string)
	expF, _ := m["exp"].(float64)
	if role != "admin" || email == "" {
		return "", fmt.Errorf("claims")
	}
	if time.Now().Unix() > int64(expF) {
		return "", fmt.Errorf("exp")
	}
	if _, ok := s.adminAllowed[strings.ToLower(email)]; !ok {
		return "", fmt.Errorf("not allowed")
	}
	return email, nil
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
