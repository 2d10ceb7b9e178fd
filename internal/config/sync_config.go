package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Collection names pushed by the sync engine
const (
	CollectionMenu       = "menu"
	CollectionStock      = "stock"
	CollectionSuppliers  = "suppliers"
	CollectionUsers      = "users"
	CollectionAudit      = "audit"
	CollectionDashboard  = "dashboard"
	CollectionFinancials = "financials"
)

// SyncConfig holds synchronization configuration
type SyncConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// ============ SCHEDULING ============
	AutoSyncEnabled  bool `json:"auto_sync_enabled" yaml:"auto_sync_enabled"`
	AutoSyncInterval int  `json:"auto_sync_interval" yaml:"auto_sync_interval"` // seconds
	SyncOnStartup    bool `json:"sync_on_startup" yaml:"sync_on_startup"`

	// ============ LIMITS ============
	SyncTimeout   int `json:"sync_timeout" yaml:"sync_timeout"` // seconds
	AuditTailSize int `json:"audit_tail_size" yaml:"audit_tail_size"`

	// ============ CONFLICTS ============
	PreferCloud bool `json:"prefer_cloud" yaml:"prefer_cloud"`

	// ============ COLLECTIONS ============
	Collections map[string]CollectionConfig `json:"collections" yaml:"collections"`

	// ============ ROUTES ============
	Routes []SyncRouteConfig `json:"routes" yaml:"routes"`

	// ============ LOCK ============
	Lock LockConfig `json:"lock" yaml:"lock"`
}

// CollectionConfig toggles one pushed collection
type CollectionConfig struct {
	Enabled  bool `json:"enabled" yaml:"enabled"`
	Priority int  `json:"priority" yaml:"priority"` // higher pushes first
}

// SyncRouteConfig represents a sync route
type SyncRouteConfig struct {
	URL      string `json:"url" yaml:"url"`
	Type     string `json:"type" yaml:"type"`         // primary, fallback
	Timeout  int    `json:"timeout" yaml:"timeout"`   // seconds
	Priority int    `json:"priority" yaml:"priority"` // lower = higher priority
}

// LockConfig selects how concurrent sync cycles are excluded
type LockConfig struct {
	Backend      string `json:"backend" yaml:"backend"` // local, redis
	RedisAddress string `json:"redis_address" yaml:"redis_address"`
	Key          string `json:"key" yaml:"key"`
	TTL          int    `json:"ttl" yaml:"ttl"` // seconds
}

// Timeout returns the per-cycle deadline
func (c *SyncConfig) Timeout() time.Duration {
	if c.SyncTimeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.SyncTimeout) * time.Second
}

// Interval returns the auto-sync period
func (c *SyncConfig) Interval() time.Duration {
	if c.AutoSyncInterval <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.AutoSyncInterval) * time.Second
}

// CollectionEnabled reports whether a collection is pushed. Unlisted collections are enabled.
func (c *SyncConfig) CollectionEnabled(name string) bool {
	cc, ok := c.Collections[name]
	if !ok {
		return true
	}
	return cc.Enabled
}

// CollectionPriority returns the configured priority, 0 if unlisted
func (c *SyncConfig) CollectionPriority(name string) int {
	return c.Collections[name].Priority
}

// LoadSyncConfig loads sync configuration from environment or file
func LoadSyncConfig() (*SyncConfig, error) {
	if configPath := os.Getenv("SYNC_CONFIG_PATH"); configPath != "" {
		cfg, err := LoadSyncConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("sync config %s: %w", configPath, err)
		}
		return cfg, nil
	}

	return DefaultSyncConfig(), nil
}

// LoadSyncConfigFile reads a JSON or YAML sync config. Missing keys keep their defaults.
func LoadSyncConfigFile(path string) (*SyncConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultSyncConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultSyncConfig returns default sync configuration
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		Enabled:          getBoolEnv("SYNC_ENABLED", true),
		AutoSyncEnabled:  getBoolEnv("SYNC_AUTO_ENABLED", true),
		AutoSyncInterval: getIntEnv("SYNC_AUTO_INTERVAL", 300),
		SyncOnStartup:    getBoolEnv("SYNC_ON_STARTUP", true),
		SyncTimeout:      getIntEnv("SYNC_TIMEOUT", 60),
		AuditTailSize:    getIntEnv("SYNC_AUDIT_TAIL", 200),
		PreferCloud:      getBoolEnv("SYNC_PREFER_CLOUD", false),
		Collections:      defaultCollections(),
		Routes:           defaultRoutes(),
		Lock: LockConfig{
			Backend:      getEnv("SYNC_LOCK_BACKEND", "local"),
			RedisAddress: getEnv("REDIS_ADDR", "localhost:6379"),
			Key:          getEnv("SYNC_LOCK_KEY", "eckpos:sync"),
			TTL:          getIntEnv("SYNC_LOCK_TTL", 120),
		},
	}
}

func defaultCollections() map[string]CollectionConfig {
	return map[string]CollectionConfig{
		CollectionFinancials: {Enabled: true, Priority: 10},
		CollectionMenu:       {Enabled: true, Priority: 9},
		CollectionStock:      {Enabled: true, Priority: 7},
		CollectionSuppliers:  {Enabled: true, Priority: 6},
		CollectionUsers:      {Enabled: true, Priority: 5},
		CollectionAudit:      {Enabled: true, Priority: 4},
		CollectionDashboard:  {Enabled: true, Priority: 1},
	}
}

func defaultRoutes() []SyncRouteConfig {
	routes := []SyncRouteConfig{}
	if url := os.Getenv("REMOTE_URL"); url != "" {
		routes = append(routes, SyncRouteConfig{URL: url, Type: "primary", Timeout: 10, Priority: 1})
	}
	if url := os.Getenv("REMOTE_FALLBACK_URL"); url != "" {
		routes = append(routes, SyncRouteConfig{URL: url, Type: "fallback", Timeout: 15, Priority: 2})
	}
	return routes
}

// Helper functions for environment variables

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
