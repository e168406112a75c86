package app

import (
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/nooratelier/boutique/internal/adapters/httpserver"
	"github.com/nooratelier/boutique/internal/adapters/mailer"
	"github.com/nooratelier/boutique/internal/adapters/payments/paypal"
	"github.com/nooratelier/boutique/internal/adapters/payments/stripepay"
	"github.com/nooratelier/boutique/internal/adapters/repo/postgres"
	"github.com/nooratelier/boutique/internal/domain"
	"github.com/nooratelier/boutique/internal/usecase"
)

type App struct {
	DB          *gorm.DB
	CatalogUC   *usecase.CatalogUC
	InventoryUC *usecase.InventoryUC
	OrderUC     *usecase.OrderUC
	Subscribers domain.SubscriberRepo
	Stripe      *stripepay.Gateway
	PayPal      *paypal.Gateway
}

func NewApp(db *gorm.DB) (*App, error) {
	prodRepo := postgres.NewProductRepo(db)
	orderRepo := postgres.NewOrderRepo(db)
	subsRepo := postgres.NewSubscriberRepo(db)
	priceRepo := postgres.NewPriceHistoryRepo(db)

	mail := mailer.NewFromEnv()

	var stripe *stripepay.Gateway
	if key := os.Getenv("STRIPE_SECRET_KEY"); key != "" {
		g, err := stripepay.NewGateway(key, os.Getenv("STRIPE_WEBHOOK_SECRET"))
		if err != nil {
			return nil, err
		}
		stripe = g
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY missing, stripe checkout disabled")
	}

	var pp *paypal.Gateway
	if id := os.Getenv("PAYPAL_CLIENT_ID"); id != "" {
		g, err := paypal.NewGateway(id, os.Getenv("PAYPAL_CLIENT_SECRET"), os.Getenv("PAYPAL_ENV"), os.Getenv("PAYPAL_WEBHOOK_ID"))
		if err != nil {
			return nil, err
		}
		pp = g
	} else {
		log.Warn().Msg("PAYPAL_CLIENT_ID missing, paypal checkout disabled")
	}

	app := &App{DB: db, Subscribers: subsRepo, Stripe: stripe, PayPal: pp}
	app.CatalogUC = &usecase.CatalogUC{Products: prodRepo, Prices: priceRepo}
	app.InventoryUC = &usecase.InventoryUC{Products: prodRepo}
	app.OrderUC = &usecase.OrderUC{Orders: orderRepo, Products: prodRepo, Mail: mail}

	return app, nil
}

func (a *App) HTTPHandler() http.Handler {
	return httpserver.New(a.CatalogUC, a.InventoryUC, a.OrderUC, a.Stripe, a.PayPal, a.Subscribers)
}

func (a *App) MigrateAndSeed() error {
	if err := a.DB.AutoMigrate(
		&domain.Product{}, &domain.ProductImage{}, &domain.Order{}, &domain.OrderItem{},
		&domain.Subscriber{}, &domain.PriceChange{},
	); err != nil {
		return err
	}

	// Patches for rows that predate AutoMigrate picking up the columns.
	_ = a.DB.Exec("ALTER TABLE orders ADD COLUMN IF NOT EXISTS shipping_status VARCHAR(20) DEFAULT 'paid'").Error
	_ = a.DB.Exec("ALTER TABLE orders ADD COLUMN IF NOT EXISTS tracking_number VARCHAR(120)").Error
	_ = a.DB.Exec("ALTER TABLE orders ADD COLUMN IF NOT EXISTS carrier VARCHAR(80)").Error
	_ = a.DB.Exec("ALTER TABLE orders ADD COLUMN IF NOT EXISTS estimated_delivery TIMESTAMPTZ").Error
	_ = a.DB.Exec("ALTER TABLE order_items ADD COLUMN IF NOT EXISTS qty_from_stock INT DEFAULT 0").Error
	_ = a.DB.Exec("ALTER TABLE order_items ADD COLUMN IF NOT EXISTS qty_preorder INT DEFAULT 0").Error

	_ = a.DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_payment_id ON orders (payment_id)").Error
	_ = a.DB.Exec("CREATE INDEX IF NOT EXISTS idx_orders_shipping_status ON orders (shipping_status)").Error
	_ = a.DB.Exec("CREATE INDEX IF NOT EXISTS idx_products_status ON products (status)").Error
	_ = a.DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_subscribers_email ON subscribers (email)").Error
	_ = a.DB.Exec("ALTER TABLE products ADD CONSTRAINT chk_products_qty_nonneg CHECK (quantity_available >= 0)").Error

	if err := backfillCodes(a.DB); err != nil {
		return err
	}
	return nil
}

// backfillCodes assigns codes to products created before codes became
// mandatory so the unique index can hold.
func backfillCodes(db *gorm.DB) error {
	var products []domain.Product
	if err := db.Where("code IS NULL OR code = ''").Find(&products).Error; err != nil {
		return err
	}
	for _, p := range products {
		code := "NA-" + strings.ToUpper(p.ID.String()[:8])
		if err := db.Model(&domain.Product{}).Where("id = ?", p.ID).Update("code", code).Error; err != nil {
			return err
		}
	}
	_ = db.Exec("ALTER TABLE products ALTER COLUMN code SET NOT NULL").Error
	return nil
}
