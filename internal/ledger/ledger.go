// Package ledger closes orders into a signed, hash-chained fiscal record.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/audit"
	"github.com/xelth-com/eckposgo/internal/config"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/notify"
	"github.com/xelth-com/eckposgo/internal/store"
	"gorm.io/gorm"
)

// PaymentTolerance is the largest accepted gap between payments and order total
var PaymentTolerance = decimal.RequireFromString("0.01")

var (
	// ErrPaymentMismatch rejects a checkout whose payments do not cover the total
	ErrPaymentMismatch = errors.New("payments do not match order total")
	// ErrOrderNotOpen rejects a checkout of an order that is already closed
	ErrOrderNotOpen = errors.New("order is not open")
	// ErrOrderNotFound rejects a checkout of an unknown order
	ErrOrderNotFound = errors.New("order not found")
)

// PaymentInput is one tender offered at checkout
type PaymentInput struct {
	Method string          `json:"method" validate:"required,oneof=cash card voucher other"`
	Amount decimal.Decimal `json:"amount"`
}

// CheckoutRequest closes an order with the given payments
type CheckoutRequest struct {
	OrderID  string         `json:"orderId" validate:"required"`
	Payments []PaymentInput `json:"payments" validate:"required,min=1,dive"`
	Actor    string         `json:"actor,omitempty"`
}

// Ledger performs checkouts. Checkouts are serialized so the chain head
// read inside the transaction is never stale.
type Ledger struct {
	db         *gorm.DB
	keys       KeyProvider
	sign       Signer
	notifier   notify.Notifier
	log        *logrus.Entry
	terminalID string
	now        func() time.Time

	mu sync.Mutex
}

// Options configures a Ledger
type Options struct {
	Keys       KeyProvider
	Signer     Signer // defaults to Sign
	Notifier   notify.Notifier
	TerminalID string
}

// New creates a ledger over the local store
func New(db *gorm.DB, opts Options, log *logrus.Entry) *Ledger {
	l := &Ledger{
		db:         db,
		keys:       opts.Keys,
		sign:       opts.Signer,
		notifier:   opts.Notifier,
		log:        log,
		terminalID: opts.TerminalID,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if l.sign == nil {
		l.sign = Sign
	}
	if l.notifier == nil {
		l.notifier = notify.Log{Entry: log}
	}
	return l
}

// Checkout verifies payments, signs the sale onto the chain and closes the
// order in one transaction. On any failure the order stays OPEN, nothing is
// written to the ledger, and exactly one failure notification is sent.
func (l *Ledger) Checkout(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	order, err := l.checkout(ctx, req)
	if err != nil {
		config.LogError(l.log, "Checkout", "checkout rejected", req.OrderID, err)
		if aerr := audit.RecordTx(l.db.WithContext(context.WithoutCancel(ctx)), audit.Event{
			Action:     audit.ActionCheckoutRejected,
			EntityType: "order",
			EntityID:   req.OrderID,
			Actor:      req.Actor,
			Details:    map[string]string{"kind": string(apperrors.KindOf(err)), "error": err.Error()},
		}); aerr != nil {
			config.LogError(l.log, "Checkout", "audit rejected checkout", req.OrderID, aerr)
		}
		l.notifier.Notify(notify.Failure("checkout", err))
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"order":   order.ID,
		"invoice": order.InvoiceLabel,
		"hash":    order.Hash,
	}).Info("🧾 Order closed")
	l.notifier.Notify(notify.Success("checkout",
		fmt.Sprintf("Order %s closed as %s (%s)", order.ID, order.InvoiceLabel, order.Total.StringFixed(2))))
	return order, nil
}

func (l *Ledger) checkout(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	const op = "ledger.Checkout"

	if err := store.Validate(op, req); err != nil {
		return nil, err
	}
	for _, p := range req.Payments {
		if !p.Amount.IsPositive() {
			return nil, apperrors.Validationf(op, "payment amount must be positive, got %s", p.Amount)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	db := l.db.WithContext(ctx)
	var order models.Order
	if err := db.Preload("Items").First(&order, "id = ?", req.OrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Validation(op, ErrOrderNotFound)
		}
		return nil, apperrors.Persistence(op, err)
	}
	if order.Status != models.OrderStatusOpen {
		return nil, apperrors.Validation(op, ErrOrderNotOpen)
	}

	paid := decimal.Zero
	for _, p := range req.Payments {
		paid = paid.Add(p.Amount)
	}
	if paid.Sub(order.Total).Abs().GreaterThan(PaymentTolerance) {
		return nil, apperrors.Validation(op, fmt.Errorf("%w: paid %s, total %s",
			ErrPaymentMismatch, paid.StringFixed(2), order.Total.StringFixed(2)))
	}

	keys, err := l.keys.KeyPair(ctx)
	if err != nil {
		return nil, apperrors.Signing(op, fmt.Errorf("key provider: %w", err))
	}

	var settings models.Settings
	if err := db.First(&settings, "id = ?", models.SettingsID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Persistence(op, err)
		}
		settings = models.DefaultSettings()
	}

	closedAt := l.now()
	err = db.Transaction(func(tx *gorm.DB) error {
		var closedCount int64
		if err := tx.Model(&models.Order{}).
			Where("status IN ?", []models.OrderStatus{models.OrderStatusClosed, models.OrderStatusPaid}).
			Count(&closedCount).Error; err != nil {
			return apperrors.Persistence(op, err)
		}
		label := InvoiceLabel(closedCount + 1)

		state, hasState, err := loadState(tx)
		if err != nil {
			return apperrors.Persistence(op, err)
		}
		prevHash := state.LastHash
		if hasState {
			if err := checkHead(tx, state); err != nil {
				return err
			}
		} else if prevHash, err = lastClosedHash(tx); err != nil {
			return apperrors.Persistence(op, err)
		}

		payments := make([]models.Payment, 0, len(req.Payments))
		for _, p := range req.Payments {
			payments = append(payments, models.Payment{
				ID:        uuid.New().String(),
				OrderID:   order.ID,
				Method:    p.Method,
				Amount:    p.Amount,
				CreatedAt: closedAt,
			})
		}

		payload, err := buildPayload(l.terminalID, order, label, payments, settings, closedAt)
		if err != nil {
			return apperrors.Signing(op, fmt.Errorf("build payload: %w", err))
		}
		sig, err := l.sign(payload, prevHash, keys.Private)
		if err != nil {
			return apperrors.Signing(op, err)
		}
		if sig.Hash == "" || sig.Signature == "" {
			return apperrors.Signing(op, errors.New("signer returned an empty signature"))
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusOpen).
			Updates(map[string]any{
				"status":        models.OrderStatusClosed,
				"invoice_label": label,
				"hash":          sig.Hash,
				"previous_hash": prevHash,
				"signature":     sig.Signature,
				"closed_at":     closedAt,
				"synced":        false,
				"pending":       true,
			})
		if res.Error != nil {
			return apperrors.Persistence(op, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.Validation(op, ErrOrderNotOpen)
		}

		if err := tx.Create(&payments).Error; err != nil {
			return apperrors.Persistence(op, err)
		}
		entry := models.LedgerEntry{
			OrderID:      order.ID,
			InvoiceLabel: label,
			Hash:         sig.Hash,
			PreviousHash: prevHash,
			Signature:    sig.Signature,
			Payload:      string(payload),
			ClosedAt:     closedAt,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return apperrors.Persistence(op, err)
		}
		if err := advanceState(tx, state, hasState, prevHash, entry, closedAt); err != nil {
			return err
		}

		if order.TableID != "" {
			err := tx.Model(&models.Table{}).
				Where("id = ? AND (current_order_id = ? OR current_order_id IS NULL)", order.TableID, order.ID).
				Updates(map[string]any{"occupied": false, "current_order_id": nil, "pending": true}).Error
			if err != nil {
				return apperrors.Persistence(op, err)
			}
		}

		return audit.RecordTx(tx, audit.Event{
			Action:     audit.ActionCheckout,
			EntityType: "order",
			EntityID:   order.ID,
			Actor:      req.Actor,
			Details: map[string]string{
				"invoiceLabel": label,
				"hash":         sig.Hash,
				"previousHash": prevHash,
				"total":        order.Total.StringFixed(2),
			},
		})
	})
	if err != nil {
		if apperrors.KindOf(err) == "" {
			err = apperrors.Persistence(op, err)
		}
		return nil, err
	}

	var closed models.Order
	if err := db.Preload("Items").First(&closed, "id = ?", order.ID).Error; err != nil {
		return nil, apperrors.Persistence(op, err)
	}
	return &closed, nil
}

// InvoiceLabel formats the n-th invoice number
func InvoiceLabel(n int64) string {
	return fmt.Sprintf("INV-%06d", n)
}

// Head returns the chain head pointer, or a zero state for an empty chain
func (l *Ledger) Head(ctx context.Context) (models.LedgerState, error) {
	state, _, err := loadState(l.db.WithContext(ctx))
	if err != nil {
		return state, apperrors.Persistence("ledger.Head", err)
	}
	return state, nil
}

// Entries returns the chain front to back
func (l *Ledger) Entries(ctx context.Context) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := l.db.WithContext(ctx).Order("seq").Find(&entries).Error; err != nil {
		return nil, apperrors.Persistence("ledger.Entries", err)
	}
	return entries, nil
}

// Entry returns the ledger entry of an order
func (l *Ledger) Entry(ctx context.Context, orderID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := l.db.WithContext(ctx).First(&entry, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Validation("ledger.Entry", ErrOrderNotFound)
		}
		return nil, apperrors.Persistence("ledger.Entry", err)
	}
	return &entry, nil
}

// PublicKey returns the verification key
func (l *Ledger) PublicKey(ctx context.Context) (*KeyPair, error) {
	kp, err := l.keys.KeyPair(ctx)
	if err != nil {
		return nil, apperrors.Signing("ledger.PublicKey", err)
	}
	return &KeyPair{Public: kp.Public}, nil
}

func loadState(tx *gorm.DB) (models.LedgerState, bool, error) {
	var state models.LedgerState
	err := tx.First(&state, "id = ?", models.LedgerStateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.LedgerState{ID: models.LedgerStateID}, false, nil
	}
	if err != nil {
		return state, false, err
	}
	return state, true, nil
}

// lastClosedHash finds the newest closed order carrying a hash. Only used
// before the head pointer exists.
func lastClosedHash(tx *gorm.DB) (string, error) {
	var orders []models.Order
	err := tx.Select("hash").
		Where("status IN ? AND hash <> ''", []models.OrderStatus{models.OrderStatusClosed, models.OrderStatusPaid}).
		Order("closed_at DESC").Limit(1).Find(&orders).Error
	if err != nil || len(orders) == 0 {
		return "", err
	}
	return orders[0].Hash, nil
}

// checkHead requires the head pointer to name the newest ledger entry
func checkHead(tx *gorm.DB, state models.LedgerState) error {
	const op = "ledger.Checkout"
	var newest []models.LedgerEntry
	if err := tx.Select("seq", "hash").Order("seq DESC").Limit(1).Find(&newest).Error; err != nil {
		return apperrors.Persistence(op, err)
	}
	newestHash := ""
	if len(newest) > 0 {
		newestHash = newest[0].Hash
	}
	if newestHash != state.LastHash {
		return apperrors.Integrity(op, fmt.Errorf("ledger head %q does not match newest entry %q", state.LastHash, newestHash))
	}
	return nil
}

// advanceState moves the head pointer only if nobody moved it since it was read
func advanceState(tx *gorm.DB, state models.LedgerState, exists bool, prevHash string, entry models.LedgerEntry, at time.Time) error {
	const op = "ledger.Checkout"
	if !exists {
		state = models.LedgerState{
			ID:          models.LedgerStateID,
			LastHash:    entry.Hash,
			LastOrderID: entry.OrderID,
			Count:       1,
			UpdatedAt:   at,
		}
		if err := tx.Create(&state).Error; err != nil {
			return apperrors.Persistence(op, err)
		}
		return nil
	}

	res := tx.Model(&models.LedgerState{}).
		Where("id = ? AND last_hash = ?", models.LedgerStateID, prevHash).
		Updates(map[string]any{
			"last_hash":     entry.Hash,
			"last_order_id": entry.OrderID,
			"count":         state.Count + 1,
			"updated_at":    at,
		})
	if res.Error != nil {
		return apperrors.Persistence(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Integrity(op, errors.New("ledger head moved during checkout"))
	}
	return nil
}
