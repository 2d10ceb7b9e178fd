package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OrderStatus defines possible order statuses
type OrderStatus string

const (
	OrderStatusOpen   OrderStatus = "OPEN"
	OrderStatusClosed OrderStatus = "CLOSED"
	OrderStatusPaid   OrderStatus = "PAID"
)

// Order is a table or counter order. Once closed its items and total are frozen.
type Order struct {
	ID           string          `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	TableID      string          `gorm:"type:varchar(64);index" json:"tableId,omitempty"`
	EmployeeID   string          `gorm:"type:varchar(64)" json:"employeeId,omitempty"`
	Status       OrderStatus     `gorm:"type:varchar(16);index;not null" json:"status" validate:"required,oneof=OPEN CLOSED PAID"`
	Items        []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	Total        decimal.Decimal `gorm:"type:decimal(12,2)" json:"total"`
	InvoiceLabel string          `gorm:"type:varchar(32);index" json:"invoiceLabel,omitempty"`
	Hash         string          `gorm:"type:varchar(64);index" json:"hash,omitempty"`
	PreviousHash string          `gorm:"type:varchar(64)" json:"previousHash"`
	Signature    string          `gorm:"type:text" json:"signature,omitempty"`
	Synced       bool            `gorm:"index" json:"synced"`
	Pending      bool            `gorm:"index" json:"pending"`
	ClosedAt     *time.Time      `gorm:"index" json:"closedAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// TableName specifies the table name
func (Order) TableName() string {
	return "orders"
}

func (o Order) GetEntityID() string   { return o.ID }
func (o Order) GetEntityType() string { return "order" }

// IsClosed reports whether the order went through checkout
func (o Order) IsClosed() bool {
	return o.Status == OrderStatusClosed || o.Status == OrderStatusPaid
}

// ItemsTotal sums the line totals
func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.LineTotal)
	}
	return total
}

// Validate rejects negative totals
func (o Order) Validate() error {
	if o.Total.IsNegative() {
		return errors.New("total must not be negative")
	}
	for _, it := range o.Items {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// OrderItem is one line of an order
type OrderItem struct {
	ID        string          `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	OrderID   string          `gorm:"type:varchar(64);index;not null" json:"orderId"`
	DishID    string          `gorm:"type:varchar(64)" json:"dishId"`
	Name      string          `gorm:"type:varchar(255)" json:"name" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2)" json:"unitPrice"`
	LineTotal decimal.Decimal `gorm:"type:decimal(12,2)" json:"lineTotal"`
	Notes     string          `gorm:"type:text" json:"notes,omitempty"`
}

// TableName specifies the table name
func (OrderItem) TableName() string {
	return "order_items"
}

// Validate rejects negative amounts
func (i OrderItem) Validate() error {
	if i.UnitPrice.IsNegative() || i.LineTotal.IsNegative() {
		return errors.New("order item amounts must not be negative")
	}
	return nil
}

// Payment settles part of an order
type Payment struct {
	ID        string          `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	OrderID   string          `gorm:"type:varchar(64);index;not null" json:"orderId" validate:"required"`
	Method    string          `gorm:"type:varchar(32)" json:"method" validate:"required,oneof=cash card voucher other"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	Synced    bool            `json:"synced"`
	CreatedAt time.Time       `json:"createdAt"`
}

// TableName specifies the table name
func (Payment) TableName() string {
	return "payments"
}

// Validate requires a positive amount
func (p Payment) Validate() error {
	if !p.Amount.IsPositive() {
		return errors.New("payment amount must be positive")
	}
	return nil
}

// Table is a seating place on the floor plan
type Table struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	Name           string    `gorm:"type:varchar(64)" json:"name" validate:"required"`
	Seats          int       `json:"seats" validate:"gte=0"`
	PosX           float64   `json:"posX"`
	PosY           float64   `json:"posY"`
	Occupied       bool      `json:"occupied"`
	CurrentOrderID *string   `gorm:"type:varchar(64)" json:"currentOrderId,omitempty"`
	Pending        bool      `json:"pending"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Table) TableName() string {
	return "tables"
}

func (t Table) GetEntityID() string   { return t.ID }
func (t Table) GetEntityType() string { return "table" }

// LayoutBackup is a snapshot of the floor plan. Backups older than a week are pruned.
type LayoutBackup struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	Layout    datatypes.JSON `json:"layout"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}

// TableName specifies the table name
func (LayoutBackup) TableName() string {
	return "layout_backups"
}
