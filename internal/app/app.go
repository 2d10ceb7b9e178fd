// Package app assembles the terminal's components from configuration.
package app

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/eckposgo/internal/audit"
	"github.com/xelth-com/eckposgo/internal/config"
	"github.com/xelth-com/eckposgo/internal/database"
	"github.com/xelth-com/eckposgo/internal/diagnostics"
	"github.com/xelth-com/eckposgo/internal/handlers"
	"github.com/xelth-com/eckposgo/internal/ledger"
	"github.com/xelth-com/eckposgo/internal/lock"
	"github.com/xelth-com/eckposgo/internal/notify"
	"github.com/xelth-com/eckposgo/internal/queue"
	"github.com/xelth-com/eckposgo/internal/remote"
	"github.com/xelth-com/eckposgo/internal/store"
	"github.com/xelth-com/eckposgo/internal/sync"
	"github.com/xelth-com/eckposgo/internal/vault"
	"github.com/xelth-com/eckposgo/internal/websocket"
)

// HousekeepingInterval is how often layout backups and sync history are pruned
const HousekeepingInterval = 24 * time.Hour

// App holds every long-lived component of a terminal
type App struct {
	Config     *config.Config
	SyncConfig *config.SyncConfig
	Logger     *logrus.Logger

	DB          *database.DB
	Vault       *vault.Vault
	Store       *store.Store
	Queue       *queue.Queue
	Audit       *audit.Log
	Ledger      *ledger.Ledger
	Diagnostics *diagnostics.Checker
	Monitor     *remote.Monitor // nil without configured routes
	Remote      remote.Store
	Engine      *sync.Engine
	Hub         *websocket.Hub

	cancel           context.CancelFunc
	housekeepingDone chan struct{}
}

// Option adjusts the assembly, mainly for tests and the CLI
type Option func(*App)

// WithRemote replaces the HTTP remote store
func WithRemote(r remote.Store) Option {
	return func(a *App) { a.Remote = r }
}

// WithDB uses an already opened database instead of connecting
func WithDB(db *database.DB) Option {
	return func(a *App) { a.DB = db }
}

// New connects the store, migrates it and wires the components. Nothing
// runs in the background until Start.
func New(cfg *config.Config, syncCfg *config.SyncConfig, logger *logrus.Logger, opts ...Option) (*App, error) {
	a := &App{Config: cfg, SyncConfig: syncCfg, Logger: logger}
	for _, o := range opts {
		o(a)
	}

	if a.DB == nil {
		db, err := database.Connect(cfg.Database, config.Component(logger, "database"))
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.DB = db
	}
	if err := a.DB.Migrate(); err != nil {
		a.DB.Close()
		return nil, err
	}

	a.Vault = vault.New()
	if cfg.VaultSecret != "" {
		if err := a.Vault.Initialize(cfg.VaultSecret); err != nil {
			a.DB.Close()
			return nil, fmt.Errorf("initialize vault: %w", err)
		}
	}

	a.Hub = websocket.NewHub(config.Component(logger, "websocket"))
	notifier := notify.Multi{notify.Log{Entry: config.Component(logger, "notify")}, a.Hub}

	a.Store = store.New(a.DB.DB)
	a.Queue = queue.New(a.DB.DB, config.Component(logger, "queue"))
	a.Audit = audit.New(a.DB.DB, config.Component(logger, "audit"))
	keys := ledger.NewFileKeyProvider(cfg.Ledger.KeyPath, cfg.TerminalID, a.Vault)
	keys.OnGenerate = func(pub ed25519.PublicKey) {
		if err := a.Audit.Record(context.Background(), audit.Event{
			Action:     audit.ActionKeyGenerated,
			EntityType: "terminal",
			EntityID:   cfg.TerminalID,
			Actor:      "system",
			Details:    map[string]any{"publicKey": hex.EncodeToString(pub), "encrypted": a.Vault.Initialized()},
		}); err != nil {
			config.LogError(config.Component(logger, "ledger"), "OnGenerate", "audit key generation", cfg.TerminalID, err)
		}
	}
	a.Ledger = ledger.New(a.DB.DB, ledger.Options{
		Keys:       keys,
		Notifier:   notifier,
		TerminalID: cfg.TerminalID,
	}, config.Component(logger, "ledger"))
	a.Diagnostics = diagnostics.New(a.DB.DB, a.Ledger, config.Component(logger, "diagnostics"))

	if len(syncCfg.Routes) > 0 {
		a.Monitor = remote.NewMonitor(syncCfg.Routes, config.Component(logger, "monitor"))
	}
	if a.Remote == nil {
		a.Remote = remote.NewHTTPStore(remote.HTTPConfig{
			BaseURL:    cfg.Remote.URL,
			TerminalID: cfg.TerminalID,
			APISecret:  cfg.Remote.APISecret,
			Timeout:    syncCfg.Timeout(),
		}, a.Monitor, config.Component(logger, "remote"))
	}

	locker, err := lock.New(syncCfg.Lock)
	if err != nil {
		a.DB.Close()
		return nil, err
	}

	engineOpts := sync.Options{
		Config:     syncCfg,
		Store:      a.Store,
		Queue:      a.Queue,
		Audit:      a.Audit,
		Remote:     a.Remote,
		Validator:  a.Diagnostics,
		Locker:     locker,
		Notifier:   notifier,
		TerminalID: cfg.TerminalID,
	}
	if a.Monitor != nil {
		engineOpts.Monitor = a.Monitor
	}
	a.Engine = sync.New(engineOpts, config.Component(logger, "sync"))
	a.Engine.OnStatus(func(s sync.Status) { a.Hub.Broadcast(websocket.TypeStatus, s) })
	a.Hub.Handle(websocket.TypeSyncNow, a.Engine.TriggerSync)

	return a, nil
}

// Router builds the HTTP API over the assembled components
func (a *App) Router() *handlers.Router {
	return handlers.NewRouter(handlers.Deps{
		Store:       a.Store,
		Ledger:      a.Ledger,
		Engine:      a.Engine,
		Queue:       a.Queue,
		Diagnostics: a.Diagnostics,
		Audit:       a.Audit,
		Monitor:     a.Monitor,
		Hub:         a.Hub,
		JWTSecret:   a.Config.JWTSecret,
		TerminalID:  a.Config.TerminalID,
		Log:         config.Component(a.Logger, "http"),
	})
}

// Start launches the hub, the route monitor, the sync scheduler and
// housekeeping. Everything stops when ctx is done or on Stop.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	go a.Hub.Run(ctx)

	if a.Monitor != nil {
		a.Monitor.Start(30 * time.Second)
	}
	if a.SyncConfig.Enabled {
		if err := a.Engine.Start(ctx); err != nil {
			return err
		}
	}

	a.housekeepingDone = make(chan struct{})
	go a.housekeeping(ctx, a.housekeepingDone)
	return nil
}

// Stop halts background work. The database stays open until Close.
func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.Engine.Stop()
	if a.Monitor != nil {
		a.Monitor.Stop()
	}
	if a.housekeepingDone != nil {
		<-a.housekeepingDone
		a.housekeepingDone = nil
	}
}

// Close locks the vault and closes the database
func (a *App) Close() error {
	a.Vault.Lock()
	return a.DB.Close()
}

func (a *App) housekeeping(ctx context.Context, done chan struct{}) {
	defer close(done)
	log := config.Component(a.Logger, "housekeeping")

	prune := func() {
		now := time.Now().UTC()
		res := a.Store.PruneLayoutBackups(ctx, now)
		if !res.Success {
			config.LogError(log, "housekeeping", "prune layout backups", nil, res.Err())
		} else if res.Data > 0 {
			log.WithField("removed", res.Data).Info("🧹 Pruned layout backups")
			a.recordPrune(ctx, res.Data)
		}

		if n, err := a.Engine.PruneHistory(ctx, now); err != nil {
			config.LogError(log, "housekeeping", "prune sync history", nil, err)
		} else if n > 0 {
			log.WithField("removed", n).Debug("🧹 Pruned sync history")
		}
	}

	prune()
	ticker := time.NewTicker(HousekeepingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

func (a *App) recordPrune(ctx context.Context, n int64) {
	if err := a.Audit.Record(context.WithoutCancel(ctx), audit.Event{
		Action:     audit.ActionLayoutBackupPrune,
		EntityType: "layout_backup",
		Actor:      "system",
		Details:    map[string]int64{"removed": n},
	}); err != nil {
		config.LogError(config.Component(a.Logger, "housekeeping"), "recordPrune", "audit layout prune", n, err)
	}
}
