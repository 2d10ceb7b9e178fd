package models

// SyncableEntity is implemented by entities exchanged with the remote store
type SyncableEntity interface {
	GetEntityID() string
	GetEntityType() string
}

// All lists every persisted model in migration order
func All() []interface{} {
	return []interface{}{
		&Category{},
		&Dish{},
		&Settings{},
		&Table{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&StockItem{},
		&Supplier{},
		&Employee{},
		&Attendance{},
		&Payroll{},
		&CashShift{},
		&Customer{},
		&User{},
		&LayoutBackup{},
		&AuditLog{},
		&MutationQueueEntry{},
		&SyncConflict{},
		&SyncMetadata{},
		&SyncHistory{},
		&LedgerEntry{},
		&LedgerState{},
	}
}
