package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockItem is an ingredient or good held in stock
type StockItem struct {
	ID          string          `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	Name        string          `gorm:"type:varchar(255)" json:"name" validate:"required"`
	Unit        string          `gorm:"type:varchar(16)" json:"unit"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,3)" json:"quantity"`
	MinQuantity decimal.Decimal `gorm:"type:decimal(12,3)" json:"minQuantity"`
	SupplierID  string          `gorm:"type:varchar(64);index" json:"supplierId,omitempty"`
	Pending     bool            `gorm:"index" json:"pending"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TableName specifies the table name
func (StockItem) TableName() string {
	return "stock_items"
}

func (s StockItem) GetEntityID() string   { return s.ID }
func (s StockItem) GetEntityType() string { return "stock_item" }

// Supplier delivers stock items
type Supplier struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	Name      string    `gorm:"type:varchar(255)" json:"name" validate:"required"`
	Contact   string    `gorm:"type:varchar(255)" json:"contact,omitempty"`
	Phone     string    `gorm:"type:varchar(32)" json:"phone,omitempty"`
	Email     string    `gorm:"type:varchar(255)" json:"email,omitempty" validate:"omitempty,email"`
	Pending   bool      `gorm:"index" json:"pending"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Supplier) TableName() string {
	return "suppliers"
}

func (s Supplier) GetEntityID() string   { return s.ID }
func (s Supplier) GetEntityType() string { return "supplier" }
