// Package sync mirrors the local store to the remote store and merges the
// remote menu back in. One cycle at a time; failed pushes go to the queue.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/eckposgo/internal/audit"
	"github.com/xelth-com/eckposgo/internal/config"
	"github.com/xelth-com/eckposgo/internal/diagnostics"
	"github.com/xelth-com/eckposgo/internal/lock"
	"github.com/xelth-com/eckposgo/internal/notify"
	"github.com/xelth-com/eckposgo/internal/queue"
	"github.com/xelth-com/eckposgo/internal/remote"
	"github.com/xelth-com/eckposgo/internal/store"
	"gorm.io/gorm"
)

// SaveStatus is the terminal-visible state of the last cycle
type SaveStatus string

const (
	StatusIdle   SaveStatus = "IDLE"
	StatusSaving SaveStatus = "SAVING"
	StatusSaved  SaveStatus = "SAVED"
	StatusError  SaveStatus = "ERROR"
)

// ErrSyncInProgress is returned when a cycle is requested while one runs
var ErrSyncInProgress = errors.New("sync already in progress")

// Status is the surface shown to the operator
type Status struct {
	SaveStatus         SaveStatus `json:"saveStatus"`
	LastSyncTimestamp  *time.Time `json:"lastSyncTimestamp"`
	Online             bool       `json:"onlineStatus"`
	OfflineQueueLength int        `json:"offlineQueueLength"`
	InProgress         bool       `json:"inProgress"`
	LastError          string     `json:"lastError,omitempty"`
	CurrentRoute       string     `json:"currentRoute,omitempty"`
}

// Validator gates a cycle. *diagnostics.Checker satisfies it.
type Validator interface {
	ValidateLocal(ctx context.Context) (*diagnostics.Report, error)
}

// Connectivity reports the route monitor's view. *remote.Monitor satisfies it.
type Connectivity interface {
	IsOnline() bool
	CurrentRoute() string
}

// Options wires the engine's collaborators. Validator, Monitor and Notifier may be nil.
type Options struct {
	Config     *config.SyncConfig
	Store      *store.Store
	Queue      *queue.Queue
	Audit      *audit.Log
	Remote     remote.Store
	Validator  Validator
	Monitor    Connectivity
	Locker     lock.Locker
	Notifier   notify.Notifier
	TerminalID string
}

// CollectionResult is the outcome of one collection push
type CollectionResult struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
	Skipped bool   `json:"skipped,omitempty"`
	Queued  bool   `json:"queued,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CycleResult summarizes one RunCycle
type CycleResult struct {
	Status      SaveStatus          `json:"status"`
	Drain       queue.DrainResult   `json:"drain"`
	Collections []CollectionResult  `json:"collections"`
	Failed      int                 `json:"failed"`
	Records     int                 `json:"records"`
	Duration    time.Duration       `json:"duration"`
	Validation  *diagnostics.Report `json:"validation,omitempty"`
}

// Engine runs sync cycles
type Engine struct {
	db         *gorm.DB
	cfg        *config.SyncConfig
	store      *store.Store
	queue      *queue.Queue
	audit      *audit.Log
	remote     remote.Store
	validator  Validator
	monitor    Connectivity
	locker     lock.Locker
	notifier   notify.Notifier
	terminalID string
	log        *logrus.Entry
	now        func() time.Time

	mu        gosync.RWMutex
	status    Status
	listeners []func(Status)

	trigger chan struct{}
	runMu   gosync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an engine
func New(opts Options, log *logrus.Entry) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultSyncConfig()
	}
	locker := opts.Locker
	if locker == nil {
		locker = &lock.Local{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Log{Entry: log}
	}

	return &Engine{
		db:         opts.Store.DB(),
		cfg:        cfg,
		store:      opts.Store,
		queue:      opts.Queue,
		audit:      opts.Audit,
		remote:     opts.Remote,
		validator:  opts.Validator,
		monitor:    opts.Monitor,
		locker:     locker,
		notifier:   notifier,
		terminalID: opts.TerminalID,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		status:     Status{SaveStatus: StatusIdle},
		trigger:    make(chan struct{}, 1),
	}
}

// OnStatus registers a listener called after every status change
func (e *Engine) OnStatus(fn func(Status)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Status returns the current status with a fresh queue length
func (e *Engine) Status(ctx context.Context) Status {
	n := e.queue.Len(ctx)

	e.mu.Lock()
	e.status.OfflineQueueLength = n
	if e.monitor != nil {
		e.status.Online = e.monitor.IsOnline()
		e.status.CurrentRoute = e.monitor.CurrentRoute()
	}
	st := e.status
	e.mu.Unlock()
	return st
}

func (e *Engine) setStatus(update func(*Status)) {
	e.mu.Lock()
	update(&e.status)
	st := e.status
	listeners := append([]func(Status){}, e.listeners...)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

// RunCycle validates, drains the queue and pushes every enabled collection.
// A failing collection is queued and the cycle continues; the result then
// carries status ERROR and no error is returned. Validation failures abort
// before anything is transmitted.
func (e *Engine) RunCycle(ctx context.Context) (*CycleResult, error) {
	release, ok, err := e.locker.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync lock: %w", err)
	}
	if !ok {
		return nil, ErrSyncInProgress
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout())
	defer cancel()

	started := e.now()
	result := &CycleResult{}
	e.setStatus(func(s *Status) {
		s.SaveStatus = StatusSaving
		s.InProgress = true
	})
	e.log.Info("🔄 Sync cycle started")

	if e.validator != nil {
		report, err := e.validator.ValidateLocal(ctx)
		result.Validation = report
		if err != nil {
			e.failCycle(ctx, result, started, err)
			return result, err
		}
	}

	drained, err := e.queue.Drain(ctx, e.replay)
	result.Drain = drained
	if err != nil {
		e.log.WithError(err).Warn("⚠️ Queue drain interrupted")
	}

	for _, c := range e.collections() {
		result.Collections = append(result.Collections, e.pushCollection(ctx, c))
	}
	for _, c := range result.Collections {
		if c.Error != "" {
			result.Failed++
		}
		if c.Error == "" && !c.Skipped {
			result.Records += c.Records
		}
	}

	result.Duration = e.now().Sub(started)
	result.Status = StatusSaved
	var cycleErr error
	if result.Failed > 0 {
		result.Status = StatusError
		cycleErr = fmt.Errorf("%d of %d collection(s) failed and were queued", result.Failed, len(result.Collections))
	}

	finished := e.now()
	queued := e.queue.Len(context.WithoutCancel(ctx))
	e.setStatus(func(s *Status) {
		s.SaveStatus = result.Status
		s.InProgress = false
		s.LastSyncTimestamp = &finished
		s.OfflineQueueLength = queued
		s.Online = e.online(result)
		s.LastError = ""
		if cycleErr != nil {
			s.LastError = cycleErr.Error()
		}
	})

	persist := context.WithoutCancel(ctx)
	e.saveMetadata(persist, ScopePush, CycleOutcome{
		Status: result.Status, Records: result.Records, Failed: result.Failed, Duration: result.Duration,
		Err: cycleErr, At: finished, Details: result.Collections,
	})

	fields := logrus.Fields{
		"records":  result.Records,
		"failed":   result.Failed,
		"replayed": drained.Succeeded,
		"queued":   drained.Remaining,
		"duration": result.Duration.String(),
	}
	if cycleErr != nil {
		e.log.WithFields(fields).Warn("⚠️ Sync cycle finished with failures")
		e.recordAudit(persist, audit.Event{Action: audit.ActionSyncFailed, EntityType: "sync", Actor: "sync", Details: result.Collections})
		e.notifier.Notify(notify.Failure("sync", cycleErr))
	} else {
		e.log.WithFields(fields).Info("✅ Sync cycle complete")
		e.notifier.Notify(notify.Success("sync", fmt.Sprintf("Synced %d record(s)", result.Records)))
	}
	return result, nil
}

// pushCollection sends one collection. A failure never aborts the cycle:
// the payload is queued for the next drain.
func (e *Engine) pushCollection(ctx context.Context, c collection) CollectionResult {
	res := CollectionResult{Name: c.name}
	entry := e.log.WithField("collection", c.name)

	snap, err := c.build(ctx)
	if err != nil {
		config.LogError(entry, "pushCollection", "build snapshot", c.name, err)
		res.Error = err.Error()
		return res
	}
	if snap == nil {
		res.Skipped = true
		return res
	}
	res.Records = snap.records

	if err := snap.push(ctx); err != nil {
		entry.WithError(err).Warn("📥 Push failed, queued for retry")
		e.queue.Enqueue(ctx, MutationType(c.name), snap.payload)
		res.Queued = true
		res.Error = err.Error()
		return res
	}
	if snap.commit != nil {
		if err := snap.commit(context.WithoutCancel(ctx)); err != nil {
			config.LogError(entry, "pushCollection", "mark collection synced", c.name, err)
		}
	}
	entry.WithField("records", snap.records).Debug("📤 Collection pushed")
	return res
}

func (e *Engine) failCycle(ctx context.Context, result *CycleResult, started time.Time, err error) {
	result.Status = StatusError
	result.Duration = e.now().Sub(started)

	e.setStatus(func(s *Status) {
		s.SaveStatus = StatusError
		s.InProgress = false
		s.LastError = err.Error()
	})
	config.LogError(e.log, "RunCycle", "local validation failed, nothing transmitted", nil, err)

	persist := context.WithoutCancel(ctx)
	e.saveMetadata(persist, ScopePush, CycleOutcome{Status: StatusError, Duration: result.Duration, Err: err, At: e.now()})
	e.recordAudit(persist, audit.Event{Action: audit.ActionSyncFailed, EntityType: "sync", Actor: "sync", Details: map[string]string{"stage": "validate", "error": err.Error()}})
	e.notifier.Notify(notify.Failure("sync", err))
}

// online prefers the monitor; without one a cycle that pushed anything counts as online
func (e *Engine) online(result *CycleResult) bool {
	if e.monitor != nil {
		return e.monitor.IsOnline()
	}
	return result.Failed < len(result.Collections)
}

func (e *Engine) saveMetadata(ctx context.Context, scope string, out CycleOutcome) {
	if err := recordMetadata(ctx, e.db, e.terminalID, scope, out); err != nil {
		config.LogError(e.log, "saveMetadata", "record sync metadata", scope, err)
	}
	if err := recordHistory(ctx, e.db, e.terminalID, scope, out); err != nil {
		config.LogError(e.log, "saveMetadata", "record sync history", scope, err)
	}
}

func (e *Engine) recordAudit(ctx context.Context, ev audit.Event) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Record(ctx, ev); err != nil {
		config.LogError(e.log, "recordAudit", "audit sync event", ev.Action, err)
	}
}

// TriggerSync requests a cycle. Requests made while one is pending coalesce.
func (e *Engine) TriggerSync() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Start runs the scheduler: triggered cycles, the periodic cycle when auto
// sync is on, and one cycle at startup when configured.
func (e *Engine) Start(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return fmt.Errorf("sync engine already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true

	if e.cfg.SyncOnStartup {
		e.TriggerSync()
	}
	go e.loop(ctx, e.done)

	e.log.WithFields(logrus.Fields{
		"auto":     e.cfg.AutoSyncEnabled,
		"interval": e.cfg.Interval().String(),
	}).Info("🔄 Sync Engine started")
	return nil
}

// Stop cancels the scheduler and waits for an in-flight cycle to return
func (e *Engine) Stop() {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return
	}
	e.running = false
	cancel, done := e.cancel, e.done
	e.runMu.Unlock()

	cancel()
	<-done
	e.log.Info("🛑 Sync Engine stopped")
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if e.cfg.AutoSyncEnabled {
		ticker := time.NewTicker(e.cfg.Interval())
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.trigger:
		case <-tick:
		}
		if _, err := e.RunCycle(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
			e.log.WithError(err).Debug("Scheduled sync cycle failed")
		}
	}
}
