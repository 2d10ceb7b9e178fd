package remote

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/eckposgo/internal/config"
)

// RouteOffline is reported as the current route when no route answers
const RouteOffline = "offline"

// RouteSwitch tracks when routes are switched
type RouteSwitch struct {
	FromRoute string    `json:"from"`
	ToRoute   string    `json:"to"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// RouteStatus tracks the health of a route
type RouteStatus struct {
	URL          string        `json:"url"`
	IsAvailable  bool          `json:"isAvailable"`
	LastCheck    time.Time     `json:"lastCheck"`
	LastSuccess  *time.Time    `json:"lastSuccess,omitempty"`
	LastFailure  *time.Time    `json:"lastFailure,omitempty"`
	SuccessCount int           `json:"successCount"`
	FailureCount int           `json:"failureCount"`
	AvgLatency   time.Duration `json:"avgLatency"`

	latencySum   time.Duration
	latencyCount int
}

// Monitor probes the configured routes and tracks which one is usable
type Monitor struct {
	mu sync.RWMutex

	routes        []config.SyncRouteConfig
	client        *http.Client
	log           *logrus.Entry
	currentRoute  string
	routeStatuses map[string]*RouteStatus
	routeHistory  []RouteSwitch
	isOnline      bool

	stop chan struct{}
	done chan struct{}
}

// NewMonitor creates a monitor. Routes are tried in ascending priority.
func NewMonitor(routes []config.SyncRouteConfig, log *logrus.Entry) *Monitor {
	sorted := append([]config.SyncRouteConfig(nil), routes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	m := &Monitor{
		routes:        sorted,
		client:        NewHTTPClient(10 * time.Second),
		log:           log,
		routeStatuses: make(map[string]*RouteStatus),
	}
	for _, route := range sorted {
		m.routeStatuses[route.URL] = &RouteStatus{URL: route.URL}
	}
	return m
}

// Probe checks routes in priority order and selects the first healthy one
func (m *Monitor) Probe(ctx context.Context) string {
	for _, route := range m.routes {
		if m.testConnection(ctx, route) {
			m.switchTo(route.URL, "route_available", true)
			return route.URL
		}
	}
	m.switchTo(RouteOffline, "all_routes_unavailable", false)
	return RouteOffline
}

// Start probes immediately and then every interval until Stop
func (m *Monitor) Start(interval time.Duration) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			<-stop
			cancel()
		}()

		m.Probe(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Probe(ctx)
			case <-stop:
				return
			}
		}
	}()
}

// Stop ends health checking and waits for the loop to exit
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// CurrentRoute returns the selected route URL, RouteOffline, or "" before the first probe
func (m *Monitor) CurrentRoute() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentRoute
}

// IsOnline returns whether any route answered the last probe
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isOnline
}

// RouteStatuses returns a copy of every route's health
func (m *Monitor) RouteStatuses() map[string]RouteStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]RouteStatus, len(m.routeStatuses))
	for k, v := range m.routeStatuses {
		result[k] = *v
	}
	return result
}

// History returns the route switch history
func (m *Monitor) History() []RouteSwitch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RouteSwitch(nil), m.routeHistory...)
}

func (m *Monitor) testConnection(ctx context.Context, route config.SyncRouteConfig) bool {
	timeout := time.Duration(route.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	ok := false
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, route.URL+"/health", nil)
	if err == nil {
		var resp *http.Response
		resp, err = m.client.Do(req)
		if err == nil {
			resp.Body.Close()
			ok = resp.StatusCode == http.StatusOK
		}
	}
	latency := time.Since(start)

	m.mu.Lock()
	defer m.mu.Unlock()

	status := m.routeStatuses[route.URL]
	now := time.Now()
	status.LastCheck = now
	if !ok {
		status.IsAvailable = false
		status.FailureCount++
		status.LastFailure = &now
		m.log.WithField("route", route.URL).WithError(err).Debug("Route unavailable")
		return false
	}

	status.IsAvailable = true
	status.SuccessCount++
	status.LastSuccess = &now
	status.FailureCount = 0
	status.latencySum += latency
	status.latencyCount++
	status.AvgLatency = status.latencySum / time.Duration(status.latencyCount)
	return true
}

func (m *Monitor) switchTo(route, reason string, online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.isOnline = online
	if m.currentRoute == route {
		return
	}

	m.routeHistory = append(m.routeHistory, RouteSwitch{
		FromRoute: m.currentRoute,
		ToRoute:   route,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	// Keep only last 100 switches
	if len(m.routeHistory) > 100 {
		m.routeHistory = m.routeHistory[len(m.routeHistory)-100:]
	}

	m.log.WithFields(logrus.Fields{"from": m.currentRoute, "to": route, "reason": reason}).Info("🔀 Route switched")
	m.currentRoute = route
}
