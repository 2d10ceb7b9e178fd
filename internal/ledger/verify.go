package ledger

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/audit"
	"github.com/xelth-com/eckposgo/internal/config"
	"github.com/xelth-com/eckposgo/internal/models"
)

// ChainBreak describes one inconsistency found while replaying the chain
type ChainBreak struct {
	Seq     uint64 `json:"seq"`
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// VerifyReport is the outcome of a full chain replay
type VerifyReport struct {
	Entries   int          `json:"entries"`
	Valid     bool         `json:"valid"`
	LastHash  string       `json:"lastHash"`
	PublicKey string       `json:"publicKey"`
	Breaks    []ChainBreak `json:"breaks,omitempty"`
}

// VerifyChain replays entries front to back. Each entry must link to its
// predecessor, hash to its payload and carry a valid signature.
func VerifyChain(entries []models.LedgerEntry, pub ed25519.PublicKey) []ChainBreak {
	var breaks []ChainBreak
	prev := ""
	for _, e := range entries {
		if e.PreviousHash != prev {
			breaks = append(breaks, ChainBreak{e.Seq, e.OrderID,
				fmt.Sprintf("previous hash %q does not match predecessor %q", e.PreviousHash, prev)})
		}
		if got := HashPayload([]byte(e.Payload), e.PreviousHash); got != e.Hash {
			breaks = append(breaks, ChainBreak{e.Seq, e.OrderID, "hash does not match payload"})
		}
		if !VerifySignature(pub, e.Hash, e.Signature) {
			breaks = append(breaks, ChainBreak{e.Seq, e.OrderID, "signature does not verify"})
		}
		prev = e.Hash
	}
	return breaks
}

// Verify replays the stored chain and cross-checks the orders table and the
// head pointer. Breaks are audit-logged and returned as an IntegrityError
// alongside the report.
func (l *Ledger) Verify(ctx context.Context) (*VerifyReport, error) {
	const op = "ledger.Verify"

	keys, err := l.keys.KeyPair(ctx)
	if err != nil {
		return nil, apperrors.Signing(op, err)
	}
	entries, err := l.Entries(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{
		Entries:   len(entries),
		PublicKey: keys.PublicKeyHex(),
		Breaks:    VerifyChain(entries, keys.Public),
	}
	if len(entries) > 0 {
		report.LastHash = entries[len(entries)-1].Hash
	}

	db := l.db.WithContext(ctx)
	var orders []models.Order
	if err := db.Select("id", "hash", "previous_hash", "signature").
		Where("status IN ?", []models.OrderStatus{models.OrderStatusClosed, models.OrderStatusPaid}).
		Find(&orders).Error; err != nil {
		return nil, apperrors.Persistence(op, err)
	}
	byID := make(map[string]models.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	for _, e := range entries {
		o, ok := byID[e.OrderID]
		switch {
		case !ok:
			report.Breaks = append(report.Breaks, ChainBreak{e.Seq, e.OrderID, "order is missing or not closed"})
		case o.Hash != e.Hash || o.PreviousHash != e.PreviousHash || o.Signature != e.Signature:
			report.Breaks = append(report.Breaks, ChainBreak{e.Seq, e.OrderID, "order signature fields differ from ledger"})
		}
		delete(byID, e.OrderID)
	}
	for id := range byID {
		report.Breaks = append(report.Breaks, ChainBreak{OrderID: id, Reason: "closed order has no ledger entry"})
	}

	state, hasState, err := loadState(db)
	if err != nil {
		return nil, apperrors.Persistence(op, err)
	}
	if hasState && state.LastHash != report.LastHash {
		report.Breaks = append(report.Breaks, ChainBreak{Reason: "head pointer does not match last entry"})
	}

	report.Valid = len(report.Breaks) == 0
	if report.Valid {
		return report, nil
	}

	l.log.WithField("breaks", len(report.Breaks)).Error("🚨 Ledger chain verification failed")
	if err := audit.RecordTx(db, audit.Event{
		Action:     audit.ActionLedgerTamper,
		EntityType: "ledger",
		Details:    report.Breaks,
	}); err != nil {
		config.LogError(l.log, "Verify", "audit chain breaks", len(report.Breaks), err)
	}
	return report, apperrors.Integrity(op, fmt.Errorf("%d chain break(s), first: %s", len(report.Breaks), report.Breaks[0].Reason))
}
