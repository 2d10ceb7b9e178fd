package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/eckposgo/internal/apperrors"
)

// HTTPConfig configures the HTTP remote store
type HTTPConfig struct {
	BaseURL    string
	TerminalID string
	APISecret  string
	Timeout    time.Duration
}

// HTTPStore is the Store backed by the cloud REST API
type HTTPStore struct {
	cfg     HTTPConfig
	monitor *Monitor
	client  *http.Client
	log     *logrus.Entry
}

// NewHTTPClient creates an HTTP client with IPv4-only dialing
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.DialContext(ctx, "tcp4", addr)
			},
			MaxIdleConns:    100,
			IdleConnTimeout: 90 * time.Second,
		},
	}
}

// NewHTTPStore creates the store. When monitor is non-nil its current route
// takes precedence over BaseURL.
func NewHTTPStore(cfg HTTPConfig, monitor *Monitor, log *logrus.Entry) *HTTPStore {
	return &HTTPStore{
		cfg:     cfg,
		monitor: monitor,
		client:  NewHTTPClient(cfg.Timeout),
		log:     log,
	}
}

func (s *HTTPStore) PushMenu(ctx context.Context, menu MenuSnapshot) error {
	return s.post(ctx, "PushMenu", "/api/sync/menu", menu)
}

func (s *HTTPStore) PushStock(ctx context.Context, items []StockItemDTO) error {
	return s.post(ctx, "PushStock", "/api/sync/stock", items)
}

func (s *HTTPStore) PushSuppliers(ctx context.Context, suppliers []SupplierDTO) error {
	return s.post(ctx, "PushSuppliers", "/api/sync/suppliers", suppliers)
}

func (s *HTTPStore) PushUsers(ctx context.Context, users []UserDTO) error {
	return s.post(ctx, "PushUsers", "/api/sync/users", users)
}

func (s *HTTPStore) PushFinancials(ctx context.Context, financials FinancialSnapshot) error {
	return s.post(ctx, "PushFinancials", "/api/sync/financials", financials)
}

func (s *HTTPStore) PushAuditTail(ctx context.Context, records []AuditRecordDTO) error {
	return s.post(ctx, "PushAuditTail", "/api/sync/audit", records)
}

func (s *HTTPStore) PushDashboard(ctx context.Context, summary DashboardSummary) error {
	return s.post(ctx, "PushDashboard", "/api/sync/dashboard", summary)
}

// PullAll fetches the authoritative remote snapshot
func (s *HTTPStore) PullAll(ctx context.Context) (*Snapshot, error) {
	const op = "remote.PullAll"

	base, err := s.baseURL()
	if err != nil {
		return nil, apperrors.Remote(op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/sync/snapshot", nil)
	if err != nil {
		return nil, apperrors.Remote(op, err)
	}
	if err := s.authorize(req); err != nil {
		return nil, apperrors.Remote(op, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Remote(op, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, apperrors.Remote(op, err)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, apperrors.Remote(op, fmt.Errorf("decode snapshot: %w", err))
	}
	return &snap, nil
}

func (s *HTTPStore) post(ctx context.Context, name, path string, body any) error {
	op := "remote." + name

	base, err := s.baseURL()
	if err != nil {
		return apperrors.Remote(op, err)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return apperrors.Remote(op, fmt.Errorf("encode body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(data))
	if err != nil {
		return apperrors.Remote(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := s.authorize(req); err != nil {
		return apperrors.Remote(op, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.Remote(op, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return apperrors.Remote(op, err)
	}
	s.log.WithFields(logrus.Fields{"path": path, "bytes": len(data)}).Debug("📤 Pushed")
	return nil
}

func (s *HTTPStore) baseURL() (string, error) {
	if s.monitor != nil {
		if route := s.monitor.CurrentRoute(); route != "" && route != RouteOffline {
			return strings.TrimRight(route, "/"), nil
		}
	}
	if s.cfg.BaseURL == "" {
		return "", fmt.Errorf("no remote route available")
	}
	return strings.TrimRight(s.cfg.BaseURL, "/"), nil
}

func (s *HTTPStore) authorize(req *http.Request) error {
	token, err := GenerateTerminalToken(s.cfg.TerminalID, s.cfg.APISecret, 5*time.Minute)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Terminal-ID", s.cfg.TerminalID)
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
