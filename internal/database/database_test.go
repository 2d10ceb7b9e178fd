package database

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckposgo/internal/config"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "pos.db"), true, quietLog())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())

	assert.True(t, db.Migrator().HasTable("ledger_entries"))
	assert.True(t, db.Migrator().HasColumn("orders", "invoice_label"))
}

func TestAddColumnToleratesExistingColumn(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "pos.db"), true, quietLog())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Exec("CREATE TABLE legacy (id TEXT PRIMARY KEY)").Error)

	m := ColumnMigration{Table: "legacy", Column: "note", Type: "text"}
	require.NoError(t, db.AddColumn(m))
	require.NoError(t, db.AddColumn(m))
	assert.True(t, db.Migrator().HasColumn("legacy", "note"))

	err = db.AddColumn(ColumnMigration{Table: "missing_table", Column: "x", Type: "text"})
	assert.Error(t, err)
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"}, quietLog())
	assert.Error(t, err)
}
