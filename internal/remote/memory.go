package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/config"
)

// MemoryStore is an in-process Store. It keeps pushed entities keyed by id
// and can be told to fail chosen collections, which makes it the stand-in
// remote for tests and offline demos.
type MemoryStore struct {
	mu sync.Mutex

	categories map[string]CategoryDTO
	dishes     map[string]DishDTO
	settings   *SettingsDTO
	stock      map[string]StockItemDTO
	suppliers  map[string]SupplierDTO
	users      map[string]UserDTO
	orders     map[string]OrderDTO
	payments   map[string]PaymentDTO
	audit      map[string]AuditRecordDTO
	dashboard  *DashboardSummary

	snapshot *Snapshot
	failing  map[string]bool
	calls    map[string]int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: make(map[string]CategoryDTO),
		dishes:     make(map[string]DishDTO),
		stock:      make(map[string]StockItemDTO),
		suppliers:  make(map[string]SupplierDTO),
		users:      make(map[string]UserDTO),
		orders:     make(map[string]OrderDTO),
		payments:   make(map[string]PaymentDTO),
		audit:      make(map[string]AuditRecordDTO),
		failing:    make(map[string]bool),
		calls:      make(map[string]int),
	}
}

// FailOn makes pushes of the named collections (and "pull") fail until Heal
func (m *MemoryStore) FailOn(collections ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range collections {
		m.failing[c] = true
	}
}

// Heal clears every injected failure
func (m *MemoryStore) Heal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = make(map[string]bool)
}

// SetSnapshot sets what PullAll returns
func (m *MemoryStore) SetSnapshot(s *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = s
}

// Calls returns how many times a collection was pushed, failures included
func (m *MemoryStore) Calls(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[collection]
}

func (m *MemoryStore) enter(collection string) error {
	m.calls[collection]++
	if m.failing[collection] {
		return apperrors.Remote("remote."+collection, fmt.Errorf("%s unavailable", collection))
	}
	return nil
}

func (m *MemoryStore) PushMenu(_ context.Context, menu MenuSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(config.CollectionMenu); err != nil {
		return err
	}
	for _, c := range menu.Categories {
		m.categories[c.ID] = c
	}
	for _, d := range menu.Dishes {
		m.dishes[d.ID] = d
	}
	if menu.Settings != nil {
		s := *menu.Settings
		m.settings = &s
	}
	return nil
}

func (m *MemoryStore) PushStock(_ context.Context, items []StockItemDTO) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(config.CollectionStock); err != nil {
		return err
	}
	for _, it := range items {
		m.stock[it.ID] = it
	}
	return nil
}

func (m *MemoryStore) PushSuppliers(_ context.Context, suppliers []SupplierDTO) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(config.CollectionSuppliers); err != nil {
		return err
	}
	for _, s := range suppliers {
		m.suppliers[s.ID] = s
	}
	return nil
}

func (m *MemoryStore) PushUsers(_ context.Context, users []UserDTO) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(config.CollectionUsers); err != nil {
		return err
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return nil
}

func (m *MemoryStore) PushFinancials(_ context.Context, f FinancialSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(config.CollectionFinancials); err != nil {
		return err
	}
	for _, o := range f.Orders {
		m.orders[o.ID] = o
	}
	for _, p := range f.Payments {
		m.payments[p.ID] = p
	}
	return nil
}

func (m *MemoryStore) PushAuditTail(_ context.Context, records []AuditRecordDTO) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(config.CollectionAudit); err != nil {
		return err
	}
	for _, r := range records {
		m.audit[r.ID] = r
	}
	return nil
}

func (m *MemoryStore) PushDashboard(_ context.Context, summary DashboardSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(config.CollectionDashboard); err != nil {
		return err
	}
	m.dashboard = &summary
	return nil
}

func (m *MemoryStore) PullAll(context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("pull"); err != nil {
		return nil, err
	}
	if m.snapshot == nil {
		return &Snapshot{}, nil
	}
	s := *m.snapshot
	return &s, nil
}

// Counts reports how many distinct entities of each collection the store holds
func (m *MemoryStore) Counts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"categories": len(m.categories),
		"dishes":     len(m.dishes),
		"stock":      len(m.stock),
		"suppliers":  len(m.suppliers),
		"users":      len(m.users),
		"orders":     len(m.orders),
		"payments":   len(m.payments),
		"audit":      len(m.audit),
	}
}

// Order returns a pushed order by id
func (m *MemoryStore) Order(id string) (OrderDTO, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	return o, ok
}

// Dashboard returns the last pushed summary
func (m *MemoryStore) Dashboard() *DashboardSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dashboard
}
