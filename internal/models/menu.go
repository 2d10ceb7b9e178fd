package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategoryID is the category orphaned dishes are moved to
const DefaultCategoryID = "uncategorized"

// SettingsID is the primary key of the single settings row
const SettingsID = "default"

// Category groups dishes on the menu
type Category struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	SortOrder int       `json:"sortOrder"`
	Color     string    `gorm:"type:varchar(32)" json:"color,omitempty"`
	Pending   bool      `gorm:"index" json:"pending"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Category) TableName() string {
	return "categories"
}

func (c Category) GetEntityID() string   { return c.ID }
func (c Category) GetEntityType() string { return "category" }

// Dish is a sellable menu entry
type Dish struct {
	ID          string          `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	CategoryID  string          `gorm:"type:varchar(64);index" json:"categoryId" validate:"required"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Available   bool            `json:"available"`
	Pending     bool            `gorm:"index" json:"pending"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TableName specifies the table name
func (Dish) TableName() string {
	return "dishes"
}

func (d Dish) GetEntityID() string   { return d.ID }
func (d Dish) GetEntityType() string { return "dish" }

// Validate rejects negative prices
func (d Dish) Validate() error {
	if d.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	return nil
}

// Settings is the single row of terminal-wide configuration
type Settings struct {
	ID             string          `gorm:"primaryKey;type:varchar(32)" json:"id"`
	RestaurantName string          `gorm:"type:varchar(255)" json:"restaurantName"`
	Address        string          `gorm:"type:text" json:"address,omitempty"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(6,4)" json:"taxRate"`
	TaxIncluded    bool            `json:"taxIncluded"`
	Currency       string          `gorm:"type:varchar(8)" json:"currency" validate:"omitempty,len=3"`
	Pending        bool            `json:"pending"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// TableName specifies the table name
func (Settings) TableName() string {
	return "settings"
}

func (s Settings) GetEntityID() string   { return s.ID }
func (s Settings) GetEntityType() string { return "settings" }

// Validate pins the settings row id and rejects negative tax rates
func (s Settings) Validate() error {
	if s.ID != SettingsID {
		return errors.New("settings id must be \"default\"")
	}
	if s.TaxRate.IsNegative() {
		return errors.New("tax rate must not be negative")
	}
	return nil
}

// DefaultSettings returns the settings used before any are saved
func DefaultSettings() Settings {
	return Settings{
		ID:       SettingsID,
		Currency: "EUR",
		TaxRate:  decimal.Zero,
	}
}
