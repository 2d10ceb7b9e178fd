package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/config"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/remote"
)

// mutationPrefix marks queued pushes; the rest of the type is the collection name
const mutationPrefix = "push."

// MutationType is the queue type a failed push of collection is stored under
func MutationType(collection string) string {
	return mutationPrefix + collection
}

// snapshot is one collection ready to push
type snapshot struct {
	payload any
	records int
	push    func(ctx context.Context) error
	// commit runs after the remote accepted the push
	commit func(ctx context.Context) error
}

type collection struct {
	name  string
	build func(ctx context.Context) (*snapshot, error)
}

// collections lists every enabled collection, highest priority first
func (e *Engine) collections() []collection {
	all := []collection{
		{config.CollectionFinancials, e.financialsSnapshot},
		{config.CollectionMenu, e.menuSnapshot},
		{config.CollectionStock, e.stockSnapshot},
		{config.CollectionSuppliers, e.suppliersSnapshot},
		{config.CollectionUsers, e.usersSnapshot},
		{config.CollectionAudit, e.auditSnapshot},
		{config.CollectionDashboard, e.dashboardSnapshot},
	}

	enabled := all[:0]
	for _, c := range all {
		if e.cfg.CollectionEnabled(c.name) {
			enabled = append(enabled, c)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return e.cfg.CollectionPriority(enabled[i].name) > e.cfg.CollectionPriority(enabled[j].name)
	})
	return enabled
}

func ids[T models.SyncableEntity](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.GetEntityID()
	}
	return out
}

func (e *Engine) menuSnapshot(ctx context.Context) (*snapshot, error) {
	cats := e.store.Categories.GetAll(ctx)
	if !cats.Success {
		return nil, cats.Err()
	}
	dishes := e.store.Dishes.GetAll(ctx)
	if !dishes.Success {
		return nil, dishes.Err()
	}
	settings := e.store.Settings.GetByID(ctx, models.SettingsID)
	if !settings.Success {
		return nil, settings.Err()
	}

	menu := remote.MenuSnapshot{
		Categories: remote.MapSlice(cats.Data, remote.CategoryFromModel),
		Dishes:     remote.MapSlice(dishes.Data, remote.DishFromModel),
	}
	records := len(cats.Data) + len(dishes.Data)
	if settings.Data != nil {
		menu.Settings = remote.SettingsFromModel(*settings.Data)
		records++
	}

	return &snapshot{
		payload: menu,
		records: records,
		push:    func(ctx context.Context) error { return e.remote.PushMenu(ctx, menu) },
		commit: func(ctx context.Context) error {
			if r := e.store.Categories.ClearPending(ctx, ids(cats.Data)); !r.Success {
				return r.Err()
			}
			if r := e.store.Dishes.ClearPending(ctx, ids(dishes.Data)); !r.Success {
				return r.Err()
			}
			if settings.Data != nil {
				if r := e.store.Settings.ClearPending(ctx, []string{models.SettingsID}); !r.Success {
					return r.Err()
				}
			}
			return nil
		},
	}, nil
}

func (e *Engine) stockSnapshot(ctx context.Context) (*snapshot, error) {
	res := e.store.StockItems.GetAll(ctx)
	if !res.Success {
		return nil, res.Err()
	}
	items := remote.MapSlice(res.Data, remote.StockItemFromModel)
	return &snapshot{
		payload: items,
		records: len(items),
		push:    func(ctx context.Context) error { return e.remote.PushStock(ctx, items) },
		commit: func(ctx context.Context) error {
			return e.store.StockItems.ClearPending(ctx, ids(res.Data)).Err()
		},
	}, nil
}

func (e *Engine) suppliersSnapshot(ctx context.Context) (*snapshot, error) {
	res := e.store.Suppliers.GetAll(ctx)
	if !res.Success {
		return nil, res.Err()
	}
	suppliers := remote.MapSlice(res.Data, remote.SupplierFromModel)
	return &snapshot{
		payload: suppliers,
		records: len(suppliers),
		push:    func(ctx context.Context) error { return e.remote.PushSuppliers(ctx, suppliers) },
		commit: func(ctx context.Context) error {
			return e.store.Suppliers.ClearPending(ctx, ids(res.Data)).Err()
		},
	}, nil
}

func (e *Engine) usersSnapshot(ctx context.Context) (*snapshot, error) {
	res := e.store.Users.GetAll(ctx)
	if !res.Success {
		return nil, res.Err()
	}
	users := remote.MapSlice(res.Data, remote.UserFromModel)
	return &snapshot{
		payload: users,
		records: len(users),
		push:    func(ctx context.Context) error { return e.remote.PushUsers(ctx, users) },
		commit: func(ctx context.Context) error {
			return e.store.Users.ClearPending(ctx, ids(res.Data)).Err()
		},
	}, nil
}

// financialsSnapshot carries closed orders the remote has not accepted yet.
// Nothing is pushed when there are none.
func (e *Engine) financialsSnapshot(ctx context.Context) (*snapshot, error) {
	orders, payments, err := e.store.UnsyncedClosedOrders(ctx)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	fin := remote.FinancialSnapshot{
		TerminalID: e.terminalID,
		Orders:     remote.MapSlice(orders, remote.OrderFromModel),
		Payments:   remote.MapSlice(payments, remote.PaymentFromModel),
	}
	return &snapshot{
		payload: fin,
		records: len(orders),
		push:    func(ctx context.Context) error { return e.remote.PushFinancials(ctx, fin) },
		commit: func(ctx context.Context) error {
			return e.store.Orders.MarkSynced(ctx, ids(orders)).Err()
		},
	}, nil
}

func (e *Engine) auditSnapshot(ctx context.Context) (*snapshot, error) {
	tail := e.cfg.AuditTailSize
	if tail <= 0 {
		tail = 200
	}
	rows, err := e.audit.Unsynced(ctx, tail)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	records := remote.MapSlice(rows, remote.AuditRecordFromModel)
	rowIDs := make([]string, len(rows))
	for i, r := range rows {
		rowIDs[i] = r.ID
	}
	return &snapshot{
		payload: records,
		records: len(records),
		push:    func(ctx context.Context) error { return e.remote.PushAuditTail(ctx, records) },
		commit:  func(ctx context.Context) error { return e.audit.MarkSynced(ctx, rowIDs) },
	}, nil
}

func (e *Engine) dashboardSnapshot(ctx context.Context) (*snapshot, error) {
	summary, err := e.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	return &snapshot{
		payload: summary,
		records: 1,
		push:    func(ctx context.Context) error { return e.remote.PushDashboard(ctx, summary) },
	}, nil
}

// Dashboard builds the point-in-time digest pushed with every cycle
func (e *Engine) Dashboard(ctx context.Context) (remote.DashboardSummary, error) {
	open, err := e.store.CountOrders(ctx, models.OrderStatusOpen)
	if err != nil {
		return remote.DashboardSummary{}, err
	}
	closed, err := e.store.CountOrders(ctx, models.OrderStatusClosed, models.OrderStatusPaid)
	if err != nil {
		return remote.DashboardSummary{}, err
	}
	revenue, err := e.store.Revenue(ctx)
	if err != nil {
		return remote.DashboardSummary{}, err
	}
	return remote.DashboardSummary{
		TerminalID:   e.terminalID,
		GeneratedAt:  e.now(),
		OpenOrders:   open,
		ClosedOrders: closed,
		Revenue:      revenue,
		QueueLength:  e.queue.Len(ctx),
	}, nil
}

// replay sends one queued push to the remote store
func (e *Engine) replay(ctx context.Context, entry models.MutationQueueEntry) error {
	name, ok := strings.CutPrefix(entry.Type, mutationPrefix)
	if !ok {
		return apperrors.Validation("sync.replay", fmt.Errorf("unknown mutation type %q", entry.Type))
	}
	raw := []byte(entry.Payload)

	switch name {
	case config.CollectionMenu:
		return replayAs(ctx, raw, e.remote.PushMenu)
	case config.CollectionStock:
		return replayAs(ctx, raw, e.remote.PushStock)
	case config.CollectionSuppliers:
		return replayAs(ctx, raw, e.remote.PushSuppliers)
	case config.CollectionUsers:
		return replayAs(ctx, raw, e.remote.PushUsers)
	case config.CollectionFinancials:
		return replayAs(ctx, raw, e.remote.PushFinancials)
	case config.CollectionAudit:
		return replayAs(ctx, raw, e.remote.PushAuditTail)
	case config.CollectionDashboard:
		return replayAs(ctx, raw, e.remote.PushDashboard)
	default:
		return apperrors.Validation("sync.replay", fmt.Errorf("unknown collection %q", name))
	}
}

func replayAs[T any](ctx context.Context, raw []byte, push func(context.Context, T) error) error {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return apperrors.Validation("sync.replay", err)
	}
	return push(ctx, payload)
}
