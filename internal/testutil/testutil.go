// Package testutil opens throwaway stores for package tests.
package testutil

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckposgo/internal/database"
	"github.com/xelth-com/eckposgo/internal/models"
)

// Log returns a logger entry that discards output
func Log() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// NewDB opens a migrated SQLite database under t.TempDir and closes it on cleanup
func NewDB(t testing.TB) *database.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "pos.db"), true, Log())
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// OpenOrder builds an open order with two items totaling 1000
func OpenOrder(id, tableID string) *models.Order {
	return &models.Order{
		ID:      id,
		TableID: tableID,
		Status:  models.OrderStatusOpen,
		Total:   decimal.NewFromInt(1000),
		Items: []models.OrderItem{
			{ID: id + "-1", Name: "Steak", Quantity: 1, UnitPrice: decimal.NewFromInt(600), LineTotal: decimal.NewFromInt(600)},
			{ID: id + "-2", Name: "Wine", Quantity: 2, UnitPrice: decimal.NewFromInt(200), LineTotal: decimal.NewFromInt(400)},
		},
	}
}
