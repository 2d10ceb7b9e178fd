package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/eckposgo/internal/ledger"
	"github.com/xelth-com/eckposgo/internal/middleware"
	"github.com/xelth-com/eckposgo/internal/receipt"
)

type checkoutRequest struct {
	Payments []ledger.PaymentInput `json:"payments"`
}

// checkout closes an order into the fiscal ledger
func (r *Router) checkout(w http.ResponseWriter, req *http.Request) {
	var body checkoutRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := r.Ledger.Checkout(req.Context(), ledger.CheckoutRequest{
		OrderID:  mux.Vars(req)["id"],
		Payments: body.Payments,
		Actor:    middleware.Actor(req.Context()),
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// receipt renders the signed receipt of a closed order as PDF
func (r *Router) receipt(w http.ResponseWriter, req *http.Request) {
	rc, err := receipt.Load(req.Context(), r.Store, mux.Vars(req)["id"], r.TerminalID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	pdf, err := receipt.Render(*rc)
	if err != nil {
		respondAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=\""+rc.Order.InvoiceLabel+".pdf\"")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// ledgerHead returns the chain head and the verification key
func (r *Router) ledgerHead(w http.ResponseWriter, req *http.Request) {
	head, err := r.Ledger.Head(req.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	kp, err := r.Ledger.PublicKey(req.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"head":      head,
		"publicKey": kp.PublicKeyHex(),
	})
}

// verifyLedger replays the chain; a broken chain answers 409 with the report
func (r *Router) verifyLedger(w http.ResponseWriter, req *http.Request) {
	report, err := r.Ledger.Verify(req.Context())
	if err != nil && report == nil {
		respondAppError(w, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusConflict
	}
	respondJSON(w, status, report)
}
