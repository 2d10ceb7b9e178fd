package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/config"
	"github.com/xelth-com/eckposgo/internal/models"
	"go.uber.org/goleak"
)

func ptr[T any](v T) *T { return &v }

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestHTTPStorePushSendsTokenAndBody(t *testing.T) {
	const secret = "remote-secret"
	var got []DishDTO

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/sync/menu", r.URL.Path)
		id, err := ValidateTerminalToken(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "), secret)
		if err != nil || id != "T1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var menu MenuSnapshot
		require.NoError(t, json.NewDecoder(r.Body).Decode(&menu))
		got = menu.Dishes
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := NewHTTPStore(HTTPConfig{BaseURL: srv.URL, TerminalID: "T1", APISecret: secret}, nil, quietLog())
	err := store.PushMenu(context.Background(), MenuSnapshot{
		Dishes: []DishDTO{{ID: "d1", Name: "Soup", Price: ptr(decimal.RequireFromString("4.50"))}},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Price)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("4.5")))
}

func TestHTTPStoreErrorsAreRemoteKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := NewHTTPStore(HTTPConfig{BaseURL: srv.URL, TerminalID: "T1", APISecret: "s"}, nil, quietLog())

	err := store.PushStock(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindRemote))
	assert.Contains(t, err.Error(), "maintenance")

	_, err = store.PullAll(context.Background())
	assert.True(t, apperrors.IsKind(err, apperrors.KindRemote))

	noSecret := NewHTTPStore(HTTPConfig{BaseURL: srv.URL}, nil, quietLog())
	assert.True(t, apperrors.IsKind(noSecret.PushUsers(context.Background(), nil), apperrors.KindRemote))
}

func TestHTTPStorePullDecodesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"categories":[{"id":"c1","name":"Drinks"}],"dishes":[{"id":"d1","categoryId":"c1","name":"Tea","price":"2.00"}],"users":[]}`))
	}))
	defer srv.Close()

	store := NewHTTPStore(HTTPConfig{BaseURL: srv.URL, TerminalID: "T1", APISecret: "s"}, nil, quietLog())
	snap, err := store.PullAll(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Dishes, 1)
	assert.Nil(t, snap.Categories[0].SortOrder)
	assert.Nil(t, snap.Settings)
}

func TestTerminalTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateTerminalToken("T9", "a", time.Minute)
	require.NoError(t, err)

	_, err = ValidateTerminalToken(token, "b")
	assert.Error(t, err)

	id, err := ValidateTerminalToken(token, "a")
	require.NoError(t, err)
	assert.Equal(t, "T9", id)
}

func TestMonitorFallsBackAndRestores(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"), goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"), goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"))

	var primaryUp atomic.Bool
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !primaryUp.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer primary.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer fallback.Close()

	m := NewMonitor([]config.SyncRouteConfig{
		{URL: fallback.URL, Type: "fallback", Timeout: 2, Priority: 2},
		{URL: primary.URL, Type: "primary", Timeout: 2, Priority: 1},
	}, quietLog())
	ctx := context.Background()

	assert.Equal(t, fallback.URL, m.Probe(ctx))
	assert.True(t, m.IsOnline())
	assert.Equal(t, 1, m.RouteStatuses()[primary.URL].FailureCount)

	primaryUp.Store(true)
	assert.Equal(t, primary.URL, m.Probe(ctx))
	assert.Len(t, m.History(), 2)

	m.Start(time.Hour)
	m.Stop()
	m.Stop()
	m.client.CloseIdleConnections()
}

func TestMonitorOfflineWhenNoRouteAnswers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	m := NewMonitor([]config.SyncRouteConfig{{URL: url, Timeout: 1}}, quietLog())
	assert.Equal(t, RouteOffline, m.Probe(context.Background()))
	assert.False(t, m.IsOnline())

	// An offline monitor leaves the HTTP store on its configured base URL.
	store := NewHTTPStore(HTTPConfig{BaseURL: "http://127.0.0.1:1"}, m, quietLog())
	base, err := store.baseURL()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:1", base)
}

func TestApplyToKeepsFieldsTheRemoteOmitted(t *testing.T) {
	local := models.Dish{
		ID:          "d1",
		CategoryID:  "c1",
		Name:        "Soup",
		Price:       decimal.NewFromInt(5),
		Description: "house special",
		Available:   true,
	}
	DishDTO{ID: "d1", Name: "Soup of the day", Price: ptr(decimal.NewFromInt(6))}.ApplyTo(&local)

	assert.Equal(t, "Soup of the day", local.Name)
	assert.Equal(t, "c1", local.CategoryID)
	assert.Equal(t, "house special", local.Description)
	assert.True(t, local.Available)
	assert.True(t, local.Price.Equal(decimal.NewFromInt(6)))

	settings := models.Settings{ID: models.SettingsID, RestaurantName: "Alte Post", TaxRate: decimal.RequireFromString("0.19"), Currency: "EUR"}
	SettingsDTO{RestaurantName: "Neue Post"}.ApplyTo(&settings)
	assert.Equal(t, "Neue Post", settings.RestaurantName)
	assert.True(t, settings.TaxRate.Equal(decimal.RequireFromString("0.19")))
}

func TestMemoryStoreUpsertsByID(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	batch := []StockItemDTO{{ID: "s1", Name: "Flour"}, {ID: "s2", Name: "Salt"}}
	require.NoError(t, m.PushStock(ctx, batch))
	require.NoError(t, m.PushStock(ctx, batch))
	assert.Equal(t, 2, m.Counts()["stock"])
	assert.Equal(t, 2, m.Calls(config.CollectionStock))

	m.FailOn(config.CollectionStock)
	assert.True(t, apperrors.IsKind(m.PushStock(ctx, batch), apperrors.KindRemote))
	m.Heal()
	assert.NoError(t, m.PushStock(ctx, batch))
}
