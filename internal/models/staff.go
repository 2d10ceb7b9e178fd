package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// User is a terminal operator. PIN hashes are bcrypt.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	Username  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username" validate:"required"`
	Role      string    `gorm:"type:varchar(32)" json:"role" validate:"required,oneof=admin manager cashier waiter"`
	PinHash   string    `gorm:"type:varchar(255)" json:"-"`
	Active    bool      `json:"active"`
	Pending   bool      `gorm:"index" json:"pending"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

func (u User) GetEntityID() string   { return u.ID }
func (u User) GetEntityType() string { return "user" }

// Employee is a staff member on the payroll
type Employee struct {
	ID         string          `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	Name       string          `gorm:"type:varchar(255)" json:"name" validate:"required"`
	Role       string          `gorm:"type:varchar(64)" json:"role"`
	HourlyRate decimal.Decimal `gorm:"type:decimal(10,2)" json:"hourlyRate"`
	Active     bool            `json:"active"`
	Pending    bool            `json:"pending"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// TableName specifies the table name
func (Employee) TableName() string {
	return "employees"
}

// Attendance is one clock-in/clock-out pair
type Attendance struct {
	ID         string     `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	EmployeeID string     `gorm:"type:varchar(64);index" json:"employeeId" validate:"required"`
	ClockIn    time.Time  `json:"clockIn"`
	ClockOut   *time.Time `json:"clockOut,omitempty"`
	Pending    bool       `json:"pending"`
}

// TableName specifies the table name
func (Attendance) TableName() string {
	return "attendance"
}

// Payroll stores a payroll run computed elsewhere. Data is opaque here.
type Payroll struct {
	ID         string         `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	EmployeeID string         `gorm:"type:varchar(64);index" json:"employeeId" validate:"required"`
	Period     string         `gorm:"type:varchar(32)" json:"period" validate:"required"`
	Data       datatypes.JSON `json:"data"`
	Pending    bool           `json:"pending"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// TableName specifies the table name
func (Payroll) TableName() string {
	return "payroll"
}

// CashShift is a drawer session
type CashShift struct {
	ID          string          `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	EmployeeID  string          `gorm:"type:varchar(64);index" json:"employeeId"`
	OpenedAt    time.Time       `json:"openedAt"`
	ClosedAt    *time.Time      `json:"closedAt,omitempty"`
	OpeningCash decimal.Decimal `gorm:"type:decimal(12,2)" json:"openingCash"`
	ClosingCash decimal.Decimal `gorm:"type:decimal(12,2)" json:"closingCash"`
	Pending     bool            `json:"pending"`
}

// TableName specifies the table name
func (CashShift) TableName() string {
	return "cash_shifts"
}

// Customer is a loyalty customer
type Customer struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	Name          string    `gorm:"type:varchar(255)" json:"name" validate:"required"`
	Phone         string    `gorm:"type:varchar(32)" json:"phone,omitempty"`
	Email         string    `gorm:"type:varchar(255)" json:"email,omitempty" validate:"omitempty,email"`
	LoyaltyPoints int       `json:"loyaltyPoints" validate:"gte=0"`
	Pending       bool      `json:"pending"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Customer) TableName() string {
	return "customers"
}
