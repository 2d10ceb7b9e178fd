// Package remote talks to the cloud store the terminal mirrors its data to.
package remote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the remote collaborator of the sync engine. Every push is an
// upsert keyed by entity id, so replaying the same push is harmless.
type Store interface {
	PushMenu(ctx context.Context, menu MenuSnapshot) error
	PushStock(ctx context.Context, items []StockItemDTO) error
	PushSuppliers(ctx context.Context, suppliers []SupplierDTO) error
	PushUsers(ctx context.Context, users []UserDTO) error
	PushFinancials(ctx context.Context, financials FinancialSnapshot) error
	PushAuditTail(ctx context.Context, records []AuditRecordDTO) error
	PushDashboard(ctx context.Context, summary DashboardSummary) error
	PullAll(ctx context.Context) (*Snapshot, error)
}

// Snapshot is the authoritative remote state returned by a pull
type Snapshot struct {
	Categories []CategoryDTO `json:"categories"`
	Dishes     []DishDTO     `json:"dishes"`
	Settings   *SettingsDTO  `json:"settings,omitempty"`
	Users      []UserDTO     `json:"users"`
}

// MenuSnapshot is pushed as one unit so dishes never reference unknown categories
type MenuSnapshot struct {
	Categories []CategoryDTO `json:"categories"`
	Dishes     []DishDTO     `json:"dishes"`
	Settings   *SettingsDTO  `json:"settings,omitempty"`
}

// Optional fields are pointers: nil means the remote did not send the field
// and the local value must be kept.

type CategoryDTO struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	SortOrder *int    `json:"sortOrder,omitempty"`
	Color     *string `json:"color,omitempty"`
}

type DishDTO struct {
	ID          string          `json:"id"`
	CategoryID  string          `json:"categoryId"`
	Name        string          `json:"name"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Description *string         `json:"description,omitempty"`
	Available   *bool           `json:"available,omitempty"`
}

type SettingsDTO struct {
	RestaurantName string           `json:"restaurantName"`
	Address        *string          `json:"address,omitempty"`
	TaxRate        *decimal.Decimal `json:"taxRate,omitempty"`
	TaxIncluded    *bool            `json:"taxIncluded,omitempty"`
	Currency       string           `json:"currency,omitempty"`
}

type UserDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Active   *bool  `json:"active,omitempty"`
}

type StockItemDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Unit        string          `json:"unit,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	MinQuantity decimal.Decimal `json:"minQuantity"`
	SupplierID  string          `json:"supplierId,omitempty"`
}

type SupplierDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// FinancialSnapshot carries closed orders with their payments
type FinancialSnapshot struct {
	TerminalID string       `json:"terminalId"`
	Orders     []OrderDTO   `json:"orders"`
	Payments   []PaymentDTO `json:"payments"`
}

type OrderDTO struct {
	ID           string          `json:"id"`
	TableID      string          `json:"tableId,omitempty"`
	Status       string          `json:"status"`
	Total        decimal.Decimal `json:"total"`
	InvoiceLabel string          `json:"invoiceLabel"`
	Hash         string          `json:"hash"`
	PreviousHash string          `json:"previousHash"`
	Signature    string          `json:"signature"`
	ClosedAt     *time.Time      `json:"closedAt,omitempty"`
	Items        []OrderItemDTO  `json:"items"`
}

type OrderItemDTO struct {
	ID        string          `json:"id"`
	DishID    string          `json:"dishId,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type PaymentDTO struct {
	ID      string          `json:"id"`
	OrderID string          `json:"orderId"`
	Method  string          `json:"method"`
	Amount  decimal.Decimal `json:"amount"`
}

type AuditRecordDTO struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType,omitempty"`
	EntityID   string    `json:"entityId,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DashboardSummary is a point-in-time digest of the terminal
type DashboardSummary struct {
	TerminalID   string          `json:"terminalId"`
	GeneratedAt  time.Time       `json:"generatedAt"`
	OpenOrders   int64           `json:"openOrders"`
	ClosedOrders int64           `json:"closedOrders"`
	Revenue      decimal.Decimal `json:"revenue"`
	QueueLength  int             `json:"queueLength"`
}
