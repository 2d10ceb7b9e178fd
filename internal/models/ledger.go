package models

import "time"

// LedgerStateID is the primary key of the chain head pointer
const LedgerStateID = "fiscal"

// LedgerEntry is the signed record of one closed order. Rows are never updated.
// Payload is stored as text so the hashed bytes survive the round trip.
type LedgerEntry struct {
	Seq          uint64    `gorm:"primaryKey;autoIncrement" json:"seq"`
	OrderID      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"orderId"`
	InvoiceLabel string    `gorm:"type:varchar(32)" json:"invoiceLabel"`
	Hash         string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"hash"`
	PreviousHash string    `gorm:"type:varchar(64)" json:"previousHash"`
	Signature    string    `gorm:"type:text;not null" json:"signature"`
	Payload      string    `gorm:"type:text;not null" json:"payload"`
	ClosedAt     time.Time `gorm:"index" json:"closedAt"`
}

// TableName specifies the table name
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// LedgerState points at the head of the chain
type LedgerState struct {
	ID          string    `gorm:"primaryKey;type:varchar(16)" json:"id"`
	LastHash    string    `gorm:"type:varchar(64)" json:"lastHash"`
	LastOrderID string    `gorm:"type:varchar(64)" json:"lastOrderId"`
	Count       int64     `json:"count"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (LedgerState) TableName() string {
	return "ledger_state"
}

// AuditLog is an append-only record of a security or domain event
type AuditLog struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Action     string    `gorm:"type:varchar(64);index;not null" json:"action"`
	EntityType string    `gorm:"type:varchar(64)" json:"entityType,omitempty"`
	EntityID   string    `gorm:"type:varchar(64)" json:"entityId,omitempty"`
	Actor      string    `gorm:"type:varchar(64)" json:"actor,omitempty"`
	Details    string    `gorm:"type:text" json:"details,omitempty"`
	Synced     bool      `gorm:"index" json:"synced"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// TableName specifies the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}
