package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/audit"
	"github.com/xelth-com/eckposgo/internal/buildinfo"
	"github.com/xelth-com/eckposgo/internal/diagnostics"
	"github.com/xelth-com/eckposgo/internal/ledger"
	"github.com/xelth-com/eckposgo/internal/middleware"
	"github.com/xelth-com/eckposgo/internal/queue"
	"github.com/xelth-com/eckposgo/internal/remote"
	"github.com/xelth-com/eckposgo/internal/store"
	"github.com/xelth-com/eckposgo/internal/sync"
	"github.com/xelth-com/eckposgo/internal/websocket"
)

// Deps are the components the API exposes. Monitor and Hub may be nil.
type Deps struct {
	Store       *store.Store
	Ledger      *ledger.Ledger
	Engine      *sync.Engine
	Queue       *queue.Queue
	Diagnostics *diagnostics.Checker
	Audit       *audit.Log
	Monitor     *remote.Monitor
	Hub         *websocket.Hub
	JWTSecret   string
	TerminalID  string
	Log         *logrus.Entry
}

// Router wraps the mux router and the terminal's components
type Router struct {
	*mux.Router
	Deps
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(d Deps) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		Deps:   d,
	}
	r.Use(middleware.RequestLogger(d.Log))

	// Public
	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.HandleFunc("/api/auth/login", r.login).Methods("POST")
	if d.Hub != nil {
		r.HandleFunc("/ws", d.Hub.ServeWs)
	}

	// Operator routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(d.JWTSecret))
	api.HandleFunc("/status", r.getStatus).Methods("GET")
	api.HandleFunc("/sync", r.runSync).Methods("POST")
	api.HandleFunc("/sync/trigger", r.triggerSync).Methods("POST")
	api.HandleFunc("/sync/pull", r.pull).Methods("POST")
	api.HandleFunc("/sync/conflicts", r.listConflicts).Methods("GET")
	api.HandleFunc("/sync/metadata", r.syncMetadata).Methods("GET")
	api.HandleFunc("/sync/history", r.syncHistory).Methods("GET")
	api.HandleFunc("/sync/routes", r.routes).Methods("GET")
	api.HandleFunc("/queue", r.listQueue).Methods("GET")
	api.HandleFunc("/orders/{id}/checkout", r.checkout).Methods("POST")
	api.HandleFunc("/orders/{id}/receipt", r.receipt).Methods("GET")
	api.HandleFunc("/ledger/head", r.ledgerHead).Methods("GET")

	// Manager routes
	manager := middleware.RequireRole("manager", "admin")
	api.Handle("/sync/conflicts/resolve", manager(http.HandlerFunc(r.resolveConflicts))).Methods("POST")
	api.Handle("/ledger/verify", manager(http.HandlerFunc(r.verifyLedger))).Methods("GET")
	api.Handle("/diagnostics", manager(http.HandlerFunc(r.runDiagnostics))).Methods("GET")
	api.Handle("/audit", manager(http.HandlerFunc(r.auditTail))).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"terminal": r.TerminalID,
		"build":    buildinfo.Current(),
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondAppError maps the error taxonomy to HTTP statuses
func respondAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sync.ErrSyncInProgress):
		status = http.StatusConflict
	default:
		switch apperrors.KindOf(err) {
		case apperrors.KindValidation:
			status = http.StatusBadRequest
		case apperrors.KindRemote:
			status = http.StatusBadGateway
		case apperrors.KindSigning:
			status = http.StatusServiceUnavailable
		case apperrors.KindIntegrity:
			status = http.StatusConflict
		}
	}

	body := map[string]interface{}{"error": err.Error()}
	if kind := apperrors.KindOf(err); kind != "" {
		body["kind"] = kind
	}
	if fields := apperrors.ValidationFields(err); len(fields) > 0 {
		body["fields"] = fields
	}
	respondJSON(w, status, body)
}

