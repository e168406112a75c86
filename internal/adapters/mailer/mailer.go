package mailer

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/nooratelier/boutique/internal/domain"
)

// Mailer renders the transactional templates and sends them over SMTP. An
// unconfigured transport degrades to a logged no-op so order flows keep
// working in dev environments without credentials.
type Mailer struct {
	host     string
	port     int
	user     string
	pass     string
	from     string
	vendorTo string
}

func NewFromEnv() *Mailer {
	port, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if port == 0 {
		port = 587
	}
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = os.Getenv("SMTP_USER")
	}
	vendor := os.Getenv("ORDER_NOTIFY_EMAIL")
	if vendor == "" {
		vendor = "orders@nooratelier.com"
	}
	return &Mailer{
		host:     os.Getenv("SMTP_HOST"),
		port:     port,
		user:     os.Getenv("SMTP_USER"),
		pass:     os.Getenv("SMTP_PASS"),
		from:     from,
		vendorTo: vendor,
	}
}

func (m *Mailer) configured() bool {
	return m.host != "" && m.user != "" && m.pass != ""
}

func (m *Mailer) send(to, subject, html string) error {
	if !m.configured() {
		log.Warn().Str("to", to).Msg("SMTP not configured, skipping email")
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)
	d := gomail.NewDialer(m.host, m.port, m.user, m.pass)
	return d.DialAndSend(msg)
}

func (m *Mailer) OrderConfirmation(o *domain.Order) error {
	subject := fmt.Sprintf("Your Noor Atelier order %s is confirmed", shortID(o))
	return m.send(o.Email, subject, RenderConfirmation(o))
}

func (m *Mailer) OrderShipped(o *domain.Order) error {
	subject := fmt.Sprintf("Your Noor Atelier order %s has shipped", shortID(o))
	return m.send(o.Email, subject, RenderShipped(o))
}

func (m *Mailer) OrderDelivered(o *domain.Order) error {
	subject := fmt.Sprintf("Your Noor Atelier order %s was delivered", shortID(o))
	return m.send(o.Email, subject, RenderDelivered(o))
}

func (m *Mailer) VendorNotification(o *domain.Order) error {
	subject := fmt.Sprintf("New order %s — %s %.2f", shortID(o), o.Currency, o.TotalAmount)
	return m.send(m.vendorTo, subject, RenderVendor(o))
}

func shortID(o *domain.Order) string {
	s := o.ID.String()
	if len(s) > 8 {
		s = s[:8]
	}
	return "#" + strings.ToUpper(s)
}
