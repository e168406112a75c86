package mailer

import (
	"fmt"
	"html"
	"strings"

	"github.com/nooratelier/boutique/internal/domain"
)

// The templates are deliberately plain: a header, an item table, a footer.
// Marketing styling lives with the storefront, not here.

func RenderConfirmation(o *domain.Order) string {
	var b strings.Builder
	b.WriteString("<h2>Thank you for your order</h2>")
	fmt.Fprintf(&b, "<p>Hi %s, we received your order and payment.</p>", html.EscapeString(o.Name))
	writeItemTable(&b, o)
	writePreorderNote(&b, o)
	fmt.Fprintf(&b, "<p><strong>Total: %s %.2f</strong></p>", o.Currency, o.TotalAmount)
	b.WriteString("<p>We will email you again once your order ships.</p>")
	return b.String()
}

func RenderShipped(o *domain.Order) string {
	var b strings.Builder
	b.WriteString("<h2>Your order is on its way</h2>")
	fmt.Fprintf(&b, "<p>Hi %s, your order has shipped.</p>", html.EscapeString(o.Name))
	fmt.Fprintf(&b, "<p>Carrier: %s<br>Tracking number: %s</p>", html.EscapeString(o.Carrier), html.EscapeString(o.TrackingNumber))
	if o.EstimatedDelivery != nil {
		fmt.Fprintf(&b, "<p>Estimated delivery: %s</p>", o.EstimatedDelivery.Format("2 January 2006"))
	}
	writeItemTable(&b, o)
	return b.String()
}

func RenderDelivered(o *domain.Order) string {
	var b strings.Builder
	b.WriteString("<h2>Your order was delivered</h2>")
	fmt.Fprintf(&b, "<p>Hi %s, your order was delivered", html.EscapeString(o.Name))
	if o.DeliveredAt != nil {
		fmt.Fprintf(&b, " on %s", o.DeliveredAt.Format("2 January 2006"))
	}
	b.WriteString(".</p>")
	b.WriteString("<p>We hope you love it. Reply to this email if anything is not right.</p>")
	return b.String()
}

func RenderVendor(o *domain.Order) string {
	var b strings.Builder
	b.WriteString("<h2>New order</h2>")
	fmt.Fprintf(&b, "<p>Order: %s<br>Provider: %s<br>Payment ref: %s</p>", o.ID, o.Provider, html.EscapeString(o.PaymentID))
	fmt.Fprintf(&b, "<p>Customer: %s &lt;%s&gt; %s</p>", html.EscapeString(o.Name), html.EscapeString(o.Email), html.EscapeString(o.Phone))
	if o.Address != "" {
		fmt.Fprintf(&b, "<p>Ship to: %s, %s %s, %s</p>",
			html.EscapeString(o.Address), html.EscapeString(o.City), html.EscapeString(o.PostalCode), html.EscapeString(o.Country))
	}
	writeItemTable(&b, o)
	fmt.Fprintf(&b, "<p><strong>Total: %s %.2f</strong></p>", o.Currency, o.TotalAmount)
	if o.Notes != "" {
		fmt.Fprintf(&b, "<p>Notes: %s</p>", html.EscapeString(o.Notes))
	}
	return b.String()
}

func writeItemTable(b *strings.Builder, o *domain.Order) {
	b.WriteString(`<table border="0" cellpadding="4"><tr><th align="left">Item</th><th>Qty</th><th align="right">Price</th></tr>`)
	for _, it := range o.Items {
		label := html.EscapeString(it.Name)
		if it.QtyPreorder > 0 {
			label += fmt.Sprintf(" <em>(%d on pre-order)</em>", it.QtyPreorder)
		}
		fmt.Fprintf(b, `<tr><td>%s</td><td align="center">%d</td><td align="right">%s %.2f</td></tr>`, label, it.Qty, it.Currency, it.UnitPrice)
	}
	b.WriteString("</table>")
}

func writePreorderNote(b *strings.Builder, o *domain.Order) {
	for _, it := range o.Items {
		if it.QtyPreorder > 0 {
			b.WriteString("<p>Part of your order is on pre-order and will ship separately as soon as it is ready.</p>")
			return
		}
	}
}
