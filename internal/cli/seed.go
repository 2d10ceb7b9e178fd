package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/xelth-com/eckposgo/internal/app"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/store"
	"github.com/xelth-com/eckposgo/internal/utils"
)

// SeedOptions holds flags for the seed-demo command.
type SeedOptions struct {
	*RootOptions
	Force    bool
	AdminPIN string
}

// SeedSummary counts what seed-demo wrote
type SeedSummary struct {
	Categories int `json:"categories"`
	Dishes     int `json:"dishes"`
	Tables     int `json:"tables"`
	Users      int `json:"users"`
	Suppliers  int `json:"suppliers"`
	StockItems int `json:"stockItems"`
}

// NewSeedDemoCommand creates the seed-demo command.
func NewSeedDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Fill an empty store with a demo restaurant",
		Long: `Create a small demo menu, floor plan, stock list and operator accounts.
Everything is marked pending so the next sync pushes it.

Examples:
  posctl seed-demo
  posctl seed-demo --admin-pin 4711 --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				return runSeed(cmd.Context(), opts, a)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Force, "force", false, "seed even when the menu is not empty")
	cmd.Flags().StringVar(&opts.AdminPIN, "admin-pin", "0000", "PIN of the demo admin and cashier")
	return cmd
}

func runSeed(ctx context.Context, opts *SeedOptions, a *app.App) error {
	existing := a.Store.Dishes.GetAll(ctx)
	if !existing.Success {
		return WrapExitError(ExitCommandError, "failed to read menu", existing.Err())
	}
	if len(existing.Data) > 0 && !opts.Force {
		return NewExitError(ExitCommandError, fmt.Sprintf("store already has %d dishes, use --force to seed anyway", len(existing.Data)))
	}

	pin, err := utils.HashPIN(opts.AdminPIN)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash PIN", err)
	}

	var summary SeedSummary
	steps := []func() error{
		func() error {
			return seedStep(&summary.Categories, a.Store.Categories.UpsertMany(ctx, []models.Category{
				{ID: "cat-starters", Name: "Starters", SortOrder: 1, Color: "#2e7d32", Pending: true},
				{ID: "cat-mains", Name: "Main courses", SortOrder: 2, Color: "#c62828", Pending: true},
				{ID: "cat-drinks", Name: "Drinks", SortOrder: 3, Color: "#1565c0", Pending: true},
			}))
		},
		func() error {
			return seedStep(&summary.Dishes, a.Store.Dishes.UpsertMany(ctx, []models.Dish{
				{ID: "dish-soup", CategoryID: "cat-starters", Name: "Tomato soup", Price: price("5.50"), Available: true, Pending: true},
				{ID: "dish-salad", CategoryID: "cat-starters", Name: "House salad", Price: price("6.90"), Available: true, Pending: true},
				{ID: "dish-schnitzel", CategoryID: "cat-mains", Name: "Schnitzel", Price: price("16.50"), Available: true, Pending: true},
				{ID: "dish-risotto", CategoryID: "cat-mains", Name: "Mushroom risotto", Price: price("14.00"), Available: true, Pending: true},
				{ID: "dish-water", CategoryID: "cat-drinks", Name: "Sparkling water", Price: price("3.20"), Available: true, Pending: true},
				{ID: "dish-wine", CategoryID: "cat-drinks", Name: "Riesling 0.2l", Price: price("6.80"), Available: true, Pending: true},
			}))
		},
		func() error {
			tables := []models.Table{
				{ID: "table-1", Name: "T1", Seats: 2, PosX: 40, PosY: 40, Pending: true},
				{ID: "table-2", Name: "T2", Seats: 4, PosX: 160, PosY: 40, Pending: true},
				{ID: "table-3", Name: "T3", Seats: 6, PosX: 40, PosY: 160, Pending: true},
			}
			if err := seedStep(&summary.Tables, a.Store.Tables.UpsertMany(ctx, tables)); err != nil {
				return err
			}
			return a.Store.SaveLayoutBackup(ctx, tables).Err()
		},
		func() error {
			return seedStep(&summary.Users, a.Store.Users.UpsertMany(ctx, []models.User{
				{ID: "user-admin", Username: "admin", Role: "admin", PinHash: pin, Active: true, Pending: true},
				{ID: "user-cashier", Username: "cashier", Role: "cashier", PinHash: pin, Active: true, Pending: true},
			}))
		},
		func() error {
			return seedStep(&summary.Suppliers, a.Store.Suppliers.UpsertMany(ctx, []models.Supplier{
				{ID: "sup-farm", Name: "Hofgut Lindenau", Contact: "Orders", Email: "orders@example.com", Pending: true},
			}))
		},
		func() error {
			return seedStep(&summary.StockItems, a.Store.StockItems.UpsertMany(ctx, []models.StockItem{
				{ID: "stock-tomato", Name: "Tomatoes", Unit: "kg", Quantity: price("12"), MinQuantity: price("3"), SupplierID: "sup-farm", Pending: true},
				{ID: "stock-rice", Name: "Arborio rice", Unit: "kg", Quantity: price("8"), MinQuantity: price("2"), Pending: true},
			}))
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return WrapExitError(ExitCommandError, "seeding failed", err)
		}
	}

	settings, err := a.Store.GetSettings(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read settings", err)
	}
	settings.RestaurantName = "Demo Bistro"
	settings.TaxRate = price("0.19")
	settings.TaxIncluded = true
	settings.Pending = true
	if res := a.Store.Settings.UpsertOne(ctx, &settings); !res.Success {
		return WrapExitError(ExitCommandError, "failed to save settings", res.Err())
	}

	return opts.output().Emit(summary, func(w io.Writer) {
		fmt.Fprintf(w, "🌱 seeded %d categories, %d dishes, %d tables, %d users, %d suppliers, %d stock items\n",
			summary.Categories, summary.Dishes, summary.Tables, summary.Users, summary.Suppliers, summary.StockItems)
	})
}

func seedStep(count *int, res store.Result[int]) error {
	if !res.Success {
		return res.Err()
	}
	*count = res.Data
	return nil
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
