package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/xelth-com/eckposgo/internal/middleware"
	"github.com/xelth-com/eckposgo/internal/sync"
)

// getStatus reports the sync engine state
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.Engine.Status(req.Context()))
}

// runSync runs one push cycle and waits for it
func (r *Router) runSync(w http.ResponseWriter, req *http.Request) {
	result, err := r.Engine.RunCycle(req.Context())
	if err != nil {
		if result != nil && result.Validation != nil {
			respondJSON(w, http.StatusUnprocessableEntity, result)
			return
		}
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// triggerSync asks the background loop for a cycle and returns immediately
func (r *Router) triggerSync(w http.ResponseWriter, req *http.Request) {
	r.Engine.TriggerSync()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// pull imports the remote snapshot
func (r *Router) pull(w http.ResponseWriter, req *http.Request) {
	result, err := r.Engine.Pull(req.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// listConflicts returns conflicts awaiting an operator decision
func (r *Router) listConflicts(w http.ResponseWriter, req *http.Request) {
	conflicts, err := r.Engine.PendingConflicts(req.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conflicts)
}

type resolveRequest struct {
	Decisions map[string]sync.Decision `json:"decisions"`
	// All resolves every pending conflict in one direction: "local" or "remote"
	All sync.Decision `json:"all"`
}

// resolveConflicts applies operator decisions, per entity or all at once
func (r *Router) resolveConflicts(w http.ResponseWriter, req *http.Request) {
	var body resolveRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	actor := middleware.Actor(req.Context())

	var (
		n   int
		err error
	)
	switch {
	case body.All != "":
		if !body.All.Valid() {
			respondError(w, http.StatusBadRequest, "all must be local or remote")
			return
		}
		n, err = r.Engine.ResolveAll(req.Context(), body.All == sync.DecisionRemote, actor)
	case len(body.Decisions) > 0:
		n, err = r.Engine.ResolveConflicts(req.Context(), body.Decisions, actor)
	default:
		respondError(w, http.StatusBadRequest, "decisions or all required")
		return
	}
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"resolved": n})
}

// syncMetadata returns the last outcome per scope
func (r *Router) syncMetadata(w http.ResponseWriter, req *http.Request) {
	meta, err := r.Engine.Metadata(req.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, meta)
}

// syncHistory returns the latest push and pull attempts, newest first
func (r *Router) syncHistory(w http.ResponseWriter, req *http.Request) {
	limit, ok := queryLimit(w, req, defaultHistoryLimit)
	if !ok {
		return
	}
	rows, err := r.Engine.History(req.Context(), limit)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// routes reports the connectivity monitor's view of each route
func (r *Router) routes(w http.ResponseWriter, req *http.Request) {
	if r.Monitor == nil {
		respondError(w, http.StatusNotFound, "No sync routes configured")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"current": r.Monitor.CurrentRoute(),
		"online":  r.Monitor.IsOnline(),
		"routes":  r.Monitor.RouteStatuses(),
		"history": r.Monitor.History(),
	})
}

// listQueue returns the mutations waiting for replay
func (r *Router) listQueue(w http.ResponseWriter, req *http.Request) {
	entries, err := r.Queue.Entries(req.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
