package database

import (
	"fmt"
	"strings"

	"github.com/xelth-com/eckposgo/internal/models"
)

// ColumnMigration adds one column to an existing table
type ColumnMigration struct {
	Table  string
	Column string
	Type   string
}

// additiveMigrations covers databases created before these columns existed.
// AutoMigrate usually adds them first, so duplicates are expected and ignored.
var additiveMigrations = []ColumnMigration{
	{Table: "orders", Column: "invoice_label", Type: "varchar(32)"},
	{Table: "orders", Column: "previous_hash", Type: "varchar(64)"},
	{Table: "orders", Column: "signature", Type: "text"},
	{Table: "orders", Column: "synced", Type: "boolean DEFAULT false"},
	{Table: "payments", Column: "synced", Type: "boolean DEFAULT false"},
	{Table: "audit_logs", Column: "synced", Type: "boolean DEFAULT false"},
	{Table: "mutation_queue", Column: "last_error", Type: "text"},
}

// Migrate creates every table and applies additive column migrations. Safe to run repeatedly.
func (db *DB) Migrate() error {
	db.log.Info("🚀 Synchronizing database schema...")
	if err := db.DB.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	for _, m := range additiveMigrations {
		if err := db.AddColumn(m); err != nil {
			return err
		}
	}

	db.log.Info("✅ Schema synchronized successfully")
	return nil
}

// AddColumn runs ALTER TABLE ADD COLUMN, treating an existing column as success
func (db *DB) AddColumn(m ColumnMigration) error {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Type)
	if err := db.Exec(stmt).Error; err != nil {
		if isDuplicateColumn(err) {
			return nil
		}
		return fmt.Errorf("add column %s.%s: %w", m.Table, m.Column, err)
	}
	db.log.Infof("🧱 Added column %s.%s", m.Table, m.Column)
	return nil
}

// isDuplicateColumn matches sqlite ("duplicate column name") and postgres ("already exists")
func isDuplicateColumn(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}
