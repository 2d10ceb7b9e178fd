package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckposgo/internal/app"
	"github.com/xelth-com/eckposgo/internal/config"
	"github.com/xelth-com/eckposgo/internal/ledger"
	"github.com/xelth-com/eckposgo/internal/remote"
	"github.com/xelth-com/eckposgo/internal/sync"
	"github.com/xelth-com/eckposgo/internal/testutil"
	"github.com/xelth-com/eckposgo/internal/utils"
)

type env struct {
	dir    string
	remote *remote.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return &env{dir: t.TempDir(), remote: remote.NewMemoryStore()}
}

func (e *env) open(logger *logrus.Logger) (*app.App, error) {
	cfg := &config.Config{
		TerminalID: "T1",
		Database:   config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(e.dir, "pos.db"), Quiet: true},
		Ledger:     config.LedgerConfig{KeyPath: filepath.Join(e.dir, "fiscal_identity.json")},
	}
	syncCfg := config.DefaultSyncConfig()
	syncCfg.AutoSyncEnabled = false
	syncCfg.SyncOnStartup = false
	syncCfg.Routes = nil
	syncCfg.Lock = config.LockConfig{Backend: "local"}
	return app.New(cfg, syncCfg, logger, app.WithRemote(e.remote))
}

// checkout closes order o1 so the ledger and financials have content
func (e *env) checkout(t *testing.T) {
	t.Helper()
	a, err := e.open(quiet())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.True(t, a.Store.Orders.UpsertOne(ctx, testutil.OpenOrder("o1", "")).Success)
	_, err = a.Ledger.Checkout(ctx, ledger.CheckoutRequest{
		OrderID:  "o1",
		Payments: []ledger.PaymentInput{{Method: "cash", Amount: decimal.NewFromInt(1000)}},
		Actor:    "anna",
	})
	require.NoError(t, err)
}

func (e *env) run(args ...string) (string, error) {
	cmd := NewRootCommand(e.open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(&bytes.Buffer{})
	return l
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	for _, name := range []string{"verify-ledger", "receipt", "sync", "pull", "queue", "conflicts", "diagnose", "seed-demo"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := newEnv(t).run("queue", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestVerifyLedger(t *testing.T) {
	e := newEnv(t)
	out, err := e.run("verify-ledger")
	require.NoError(t, err)
	assert.Contains(t, out, "chain OK")

	e.checkout(t)
	out, err = e.run("verify-ledger", "--format", "json")
	require.NoError(t, err)
	var report ledger.VerifyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Entries)
	assert.True(t, report.Valid)
}

func TestReceiptWritesPDF(t *testing.T) {
	e := newEnv(t)
	e.checkout(t)

	path := filepath.Join(e.dir, "receipt.pdf")
	out, err := e.run("receipt", "o1", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "INV-000001")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	_, err = e.run("receipt", "missing")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSyncFailureQueuesAndExitsOne(t *testing.T) {
	e := newEnv(t)
	e.checkout(t)
	e.remote.FailOn(config.CollectionFinancials)

	out, err := e.run("sync")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAILED (queued)")

	out, err = e.run("queue")
	require.NoError(t, err)
	assert.Contains(t, out, sync.MutationType(config.CollectionFinancials))

	e.remote.Heal()
	out, err = e.run("sync", "--format", "json")
	require.NoError(t, err)
	var result sync.CycleResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, sync.StatusSaved, result.Status)
	assert.Equal(t, 1, result.Drain.Succeeded)

	out, err = e.run("queue")
	require.NoError(t, err)
	assert.Contains(t, out, "queue is empty")
}

func TestConflictsAndDiagnose(t *testing.T) {
	e := newEnv(t)

	out, err := e.run("conflicts")
	require.NoError(t, err)
	assert.Contains(t, out, "no pending conflicts")

	_, err = e.run("conflicts", "--resolve", "both")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err = e.run("conflicts", "--resolve", "remote")
	require.NoError(t, err)
	assert.Contains(t, out, "resolved 0")

	out, err = e.run("diagnose")
	require.NoError(t, err)
	assert.Contains(t, out, "0 blocking")
}

func TestSeedDemo(t *testing.T) {
	e := newEnv(t)

	out, err := e.run("seed-demo", "--admin-pin", "4711", "--format", "json")
	require.NoError(t, err)
	var summary SeedSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 6, summary.Dishes)
	assert.Equal(t, 2, summary.Users)

	_, err = e.run("seed-demo")
	assert.Equal(t, ExitCommandError, GetExitCode(err), "refuses a non-empty menu")
	_, err = e.run("seed-demo", "--force")
	require.NoError(t, err)

	a, err := e.open(quiet())
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	admin := a.Store.Users.GetByID(ctx, "user-admin")
	require.True(t, admin.Success)
	require.NotNil(t, admin.Data)
	assert.True(t, utils.CheckPINHash("0000", admin.Data.PinHash), "forced reseed used the default PIN")

	result, err := a.Engine.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, sync.StatusSaved, result.Status)
	assert.Equal(t, 3, e.remote.Counts()["categories"])
	assert.Equal(t, 6, e.remote.Counts()["dishes"])
}
