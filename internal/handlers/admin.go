package handlers

import (
	"net/http"
	"strconv"
)

const (
	defaultAuditLimit   = 100
	defaultHistoryLimit = 50
)

// queryLimit parses ?limit, answering 400 itself when it is malformed
func queryLimit(w http.ResponseWriter, req *http.Request, def int) (int, bool) {
	v := req.URL.Query().Get("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

// runDiagnostics runs the integrity checks, repairing what is safe to repair
func (r *Router) runDiagnostics(w http.ResponseWriter, req *http.Request) {
	report, err := r.Diagnostics.Run(req.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// auditTail returns the newest audit records
func (r *Router) auditTail(w http.ResponseWriter, req *http.Request) {
	limit, ok := queryLimit(w, req, defaultAuditLimit)
	if !ok {
		return
	}
	rows, err := r.Audit.Tail(req.Context(), limit)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
