package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nooratelier/boutique/internal/domain"
)

var exportHeader = []string{
	"Order ID", "Date", "Provider", "Payment Ref", "Customer", "Email", "Phone",
	"City", "Country", "Items", "Total", "Currency", "Shipping Status", "Tracking",
}

// handleAdminOrdersExport streams the full order book as a spreadsheet for
// the back office. Filters happen in the sheet, not here.
func (s *Server) handleAdminOrdersExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method", 405)
		return
	}
	if !s.requireAdmin(w, r) {
		return
	}
	orders, err := s.orders.List(r.Context())
	if err != nil {
		http.Error(w, "err", 500)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Orders"
	f.SetSheetName("Sheet1", sheet)
	for i, h := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for row, o := range orders {
		vals := []any{
			o.ID.String(),
			o.CreatedAt.Format("2006-01-02 15:04"),
			string(o.Provider),
			o.PaymentID,
			o.Name,
			o.Email,
			o.Phone,
			o.City,
			o.Country,
			itemSummary(o),
			o.TotalAmount,
			o.Currency,
			string(o.ShippingStatus),
			o.TrackingNumber,
		}
		for col, v := range vals {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	name := fmt.Sprintf("orders-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := f.Write(w); err != nil {
		// Headers are already out; nothing useful left to send.
		return
	}
}

func itemSummary(o domain.Order) string {
	out := ""
	for i, it := range o.Items {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%dx %s", it.Qty, it.Name)
		if it.QtyPreorder > 0 {
			out += fmt.Sprintf(" (%d pre-order)", it.QtyPreorder)
		}
	}
	return out
}
