// Package diagnostics checks the local store for inconsistencies before data
// leaves the terminal, and repairs the ones that are safe to repair.
package diagnostics

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/audit"
	"github.com/xelth-com/eckposgo/internal/ledger"
	"github.com/xelth-com/eckposgo/internal/models"
	"gorm.io/gorm"
)

// Severity tells the sync engine whether an issue stops a cycle
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityBlocking Severity = "blocking"
)

// Issue is one finding
type Issue struct {
	Check      string   `json:"check"`
	Severity   Severity `json:"severity"`
	EntityType string   `json:"entityType,omitempty"`
	EntityID   string   `json:"entityId,omitempty"`
	Message    string   `json:"message"`
	Repaired   bool     `json:"repaired"`
}

// Report collects the findings of one run
type Report struct {
	CheckedAt time.Time `json:"checkedAt"`
	Issues    []Issue   `json:"issues"`
	Repaired  int       `json:"repaired"`
	Blocking  int       `json:"blocking"`
}

func (r *Report) add(is Issue) {
	r.Issues = append(r.Issues, is)
	if is.Repaired {
		r.Repaired++
	}
	if is.Severity == SeverityBlocking && !is.Repaired {
		r.Blocking++
	}
}

// ChainVerifier replays the fiscal chain. *ledger.Ledger satisfies it.
type ChainVerifier interface {
	Verify(ctx context.Context) (*ledger.VerifyReport, error)
}

// Checker runs every check in order
type Checker struct {
	db    *gorm.DB
	chain ChainVerifier
	log   *logrus.Entry
}

// New creates a checker. chain may be nil to skip ledger verification.
func New(db *gorm.DB, chain ChainVerifier, log *logrus.Entry) *Checker {
	return &Checker{db: db, chain: chain, log: log}
}

// Run executes all checks. Safe repairs are applied and audit-logged.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	report := &Report{CheckedAt: time.Now().UTC()}

	checks := []struct {
		name string
		fn   func(context.Context, *Report) error
	}{
		{"orphan_dishes", c.repairOrphanDishes},
		{"orphan_order_items", c.checkOrphanItems},
		{"negative_amounts", c.checkNegativeAmounts},
		{"closed_without_signature", c.checkClosedWithoutSignature},
		{"ledger_chain", c.checkChain},
	}
	for _, check := range checks {
		if err := check.fn(ctx, report); err != nil {
			return report, fmt.Errorf("%s: %w", check.name, err)
		}
	}

	if len(report.Issues) > 0 {
		c.log.WithFields(logrus.Fields{
			"issues":   len(report.Issues),
			"repaired": report.Repaired,
			"blocking": report.Blocking,
		}).Warn("🩺 Diagnostics found issues")
	}
	return report, nil
}

// ValidateLocal runs the checks and fails when anything blocking remains
func (c *Checker) ValidateLocal(ctx context.Context) (*Report, error) {
	report, err := c.Run(ctx)
	if err != nil {
		return report, apperrors.Persistence("diagnostics.ValidateLocal", err)
	}
	if report.Blocking > 0 {
		for _, is := range report.Issues {
			if is.Severity == SeverityBlocking && !is.Repaired {
				return report, apperrors.Integrity("diagnostics.ValidateLocal",
					fmt.Errorf("%d blocking issue(s), first: %s", report.Blocking, is.Message))
			}
		}
	}
	return report, nil
}

// repairOrphanDishes moves dishes whose category is gone to the default category
func (c *Checker) repairOrphanDishes(ctx context.Context, report *Report) error {
	db := c.db.WithContext(ctx)

	var orphans []models.Dish
	err := db.Where("category_id NOT IN (?)", db.Model(&models.Category{}).Select("id")).
		Find(&orphans).Error
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		fallback := models.Category{ID: models.DefaultCategoryID, Name: "Uncategorized", SortOrder: 9999, Pending: true}
		if err := tx.Where("id = ?", fallback.ID).FirstOrCreate(&fallback).Error; err != nil {
			return err
		}

		for _, d := range orphans {
			err := tx.Model(&models.Dish{}).Where("id = ?", d.ID).
				Updates(map[string]any{"category_id": fallback.ID, "pending": true}).Error
			if err != nil {
				return err
			}
			if err := audit.RecordTx(tx, audit.Event{
				Action:     audit.ActionRepair,
				EntityType: "dish",
				EntityID:   d.ID,
				Actor:      "diagnostics",
				Details:    map[string]string{"from": d.CategoryID, "to": fallback.ID},
			}); err != nil {
				return err
			}
			report.add(Issue{
				Check:      "orphan_dishes",
				Severity:   SeverityWarning,
				EntityType: "dish",
				EntityID:   d.ID,
				Message:    fmt.Sprintf("dish %s referenced missing category %q, moved to %s", d.ID, d.CategoryID, fallback.ID),
				Repaired:   true,
			})
		}
		return nil
	})
}

// checkOrphanItems reports order items whose order is gone. They are left in place.
func (c *Checker) checkOrphanItems(ctx context.Context, report *Report) error {
	db := c.db.WithContext(ctx)

	var items []models.OrderItem
	if err := db.Where("order_id NOT IN (?)", db.Model(&models.Order{}).Select("id")).Find(&items).Error; err != nil {
		return err
	}
	for _, it := range items {
		report.add(Issue{
			Check:      "orphan_order_items",
			Severity:   SeverityWarning,
			EntityType: "order_item",
			EntityID:   it.ID,
			Message:    fmt.Sprintf("order item %s references missing order %s", it.ID, it.OrderID),
		})
	}
	return nil
}

func (c *Checker) checkNegativeAmounts(ctx context.Context, report *Report) error {
	db := c.db.WithContext(ctx)

	var dishes []models.Dish
	if err := db.Where("price < 0").Find(&dishes).Error; err != nil {
		return err
	}
	for _, d := range dishes {
		report.add(Issue{
			Check:      "negative_amounts",
			Severity:   SeverityBlocking,
			EntityType: "dish",
			EntityID:   d.ID,
			Message:    fmt.Sprintf("dish %s has negative price %s", d.ID, d.Price),
		})
	}

	var orders []models.Order
	if err := db.Where("total < 0").Find(&orders).Error; err != nil {
		return err
	}
	for _, o := range orders {
		report.add(Issue{
			Check:      "negative_amounts",
			Severity:   SeverityBlocking,
			EntityType: "order",
			EntityID:   o.ID,
			Message:    fmt.Sprintf("order %s has negative total %s", o.ID, o.Total),
		})
	}
	return nil
}

func (c *Checker) checkClosedWithoutSignature(ctx context.Context, report *Report) error {
	var orders []models.Order
	err := c.db.WithContext(ctx).
		Where("status IN ?", []models.OrderStatus{models.OrderStatusClosed, models.OrderStatusPaid}).
		Where("hash = '' OR hash IS NULL OR signature = '' OR signature IS NULL").
		Find(&orders).Error
	if err != nil {
		return err
	}
	for _, o := range orders {
		report.add(Issue{
			Check:      "closed_without_signature",
			Severity:   SeverityBlocking,
			EntityType: "order",
			EntityID:   o.ID,
			Message:    fmt.Sprintf("closed order %s carries no fiscal signature", o.ID),
		})
	}
	return nil
}

func (c *Checker) checkChain(ctx context.Context, report *Report) error {
	if c.chain == nil {
		return nil
	}
	res, err := c.chain.Verify(ctx)
	switch apperrors.KindOf(err) {
	case "":
		return err
	case apperrors.KindIntegrity:
		for _, b := range res.Breaks {
			report.add(Issue{
				Check:      "ledger_chain",
				Severity:   SeverityBlocking,
				EntityType: "order",
				EntityID:   b.OrderID,
				Message:    b.Reason,
			})
		}
		return nil
	case apperrors.KindSigning:
		report.add(Issue{
			Check:    "ledger_chain",
			Severity: SeverityWarning,
			Message:  "fiscal key unavailable, chain not verified: " + err.Error(),
		})
		return nil
	default:
		return err
	}
}
