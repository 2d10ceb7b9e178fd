package ledger

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/xelth-com/eckposgo/internal/models"
)

// Canonical payload layout. Field order is fixed by the struct, amounts are
// two-decimal strings and timestamps RFC 3339 in UTC, so the same sale always
// hashes to the same bytes.

type payloadItem struct {
	ID        string `json:"id"`
	DishID    string `json:"dishId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
}

type payloadPayment struct {
	Method string `json:"method"`
	Amount string `json:"amount"`
}

type payloadTax struct {
	Rate     string `json:"rate"`
	Included bool   `json:"included"`
}

type salePayload struct {
	Version      int              `json:"v"`
	TerminalID   string           `json:"terminalId"`
	OrderID      string           `json:"orderId"`
	InvoiceLabel string           `json:"invoiceLabel"`
	TableID      string           `json:"tableId,omitempty"`
	Items        []payloadItem    `json:"items"`
	Payments     []payloadPayment `json:"payments"`
	Total        string           `json:"total"`
	Tax          payloadTax       `json:"tax"`
	Currency     string           `json:"currency"`
	ClosedAt     string           `json:"closedAt"`
}

// buildPayload renders the canonical bytes that get hashed and signed
func buildPayload(terminalID string, order models.Order, label string, payments []models.Payment, settings models.Settings, closedAt time.Time) ([]byte, error) {
	items := append([]models.OrderItem(nil), order.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	p := salePayload{
		Version:      1,
		TerminalID:   terminalID,
		OrderID:      order.ID,
		InvoiceLabel: label,
		TableID:      order.TableID,
		Items:        make([]payloadItem, 0, len(items)),
		Payments:     make([]payloadPayment, 0, len(payments)),
		Total:        order.Total.StringFixed(2),
		Tax: payloadTax{
			Rate:     settings.TaxRate.StringFixed(4),
			Included: settings.TaxIncluded,
		},
		Currency: settings.Currency,
		ClosedAt: closedAt.UTC().Format(time.RFC3339Nano),
	}
	for _, it := range items {
		p.Items = append(p.Items, payloadItem{
			ID:        it.ID,
			DishID:    it.DishID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.LineTotal.StringFixed(2),
		})
	}
	for _, pm := range payments {
		p.Payments = append(p.Payments, payloadPayment{Method: pm.Method, Amount: pm.Amount.StringFixed(2)})
	}
	return json.Marshal(p)
}
