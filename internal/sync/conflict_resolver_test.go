package sync

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/remote"
)

func ptr[T any](v T) *T { return &v }

func localMenu() LocalMenu {
	return LocalMenu{
		Categories: []models.Category{
			{ID: "c1", Name: "Mains", SortOrder: 1, Color: "#aa0000"},
			{ID: "c2", Name: "Drinks", SortOrder: 2},
		},
		Dishes: []models.Dish{
			{ID: "d1", CategoryID: "c1", Name: "Steak", Price: decimal.NewFromInt(20), Description: "local notes", Available: true},
		},
		Settings: &models.Settings{ID: models.SettingsID, RestaurantName: "Eck", TaxRate: decimal.RequireFromString("0.19"), Currency: "EUR"},
		Users:    []models.User{{ID: "u1", Username: "anna", Role: "cashier", Active: true}},
	}
}

func remoteSnapshot() *remote.Snapshot {
	return &remote.Snapshot{
		Categories: []remote.CategoryDTO{
			{ID: "c1", Name: "Main courses"},
			{ID: "c3", Name: "Desserts", SortOrder: ptr(3)},
		},
		Dishes: []remote.DishDTO{
			{ID: "d1", CategoryID: "c1", Name: "Steak", Price: ptr(decimal.NewFromInt(22))},
			{ID: "d2", CategoryID: "c3", Name: "Cake", Price: ptr(decimal.NewFromInt(6))},
		},
		Settings: &remote.SettingsDTO{RestaurantName: "Eck", TaxRate: ptr(decimal.RequireFromString("0.07"))},
		Users:    []remote.UserDTO{{ID: "u1", Username: "anna", Role: "cashier"}},
	}
}

func TestDetectConflictsCountsSignificantDifferences(t *testing.T) {
	conflicts := DetectConflicts(localMenu(), remoteSnapshot())
	require.Len(t, conflicts, 3)

	byKey := map[string]Conflict{}
	for _, c := range conflicts {
		byKey[c.Key()] = c
	}
	assert.Equal(t, []string{"name"}, byKey["category:c1"].Fields)
	assert.Equal(t, []string{"price"}, byKey["dish:d1"].Fields)
	assert.Equal(t, []string{"taxRate"}, byKey["settings:"+models.SettingsID].Fields)
}

func TestMergeWithoutPolicyLeavesConflictsPending(t *testing.T) {
	plan := Merge(localMenu(), remoteSnapshot(), Policy(false))

	assert.Equal(t, 2, plan.Appended)
	assert.Zero(t, plan.Updated)
	assert.Len(t, plan.Conflicts, 3)
	for _, d := range plan.Decisions {
		assert.Equal(t, DecisionPending, d)
	}

	// Only the remote-only entities are written.
	require.Len(t, plan.Import.Categories, 1)
	assert.Equal(t, "c3", plan.Import.Categories[0].ID)
	require.Len(t, plan.Import.Dishes, 1)
	assert.Equal(t, "d2", plan.Import.Dishes[0].ID)
	assert.Nil(t, plan.Import.Settings)
}

func TestMergePreferCloudKeepsLocalOnlyFields(t *testing.T) {
	plan := Merge(localMenu(), remoteSnapshot(), Policy(true))

	assert.Equal(t, 2, plan.Appended)
	assert.Equal(t, 3, plan.Updated)
	assert.Equal(t, 5, plan.Import.Len())

	var c1 models.Category
	for _, c := range plan.Import.Categories {
		if c.ID == "c1" {
			c1 = c
		}
	}
	assert.Equal(t, "Main courses", c1.Name)
	assert.Equal(t, "#aa0000", c1.Color, "color was not sent remotely")
	assert.Equal(t, 1, c1.SortOrder)

	var d1 models.Dish
	for _, d := range plan.Import.Dishes {
		if d.ID == "d1" {
			d1 = d
		}
	}
	assert.True(t, d1.Price.Equal(decimal.NewFromInt(22)))
	assert.Equal(t, "local notes", d1.Description)
	assert.True(t, d1.Available)

	require.NotNil(t, plan.Import.Settings)
	assert.True(t, plan.Import.Settings.TaxRate.Equal(decimal.RequireFromString("0.07")))
	assert.Equal(t, "EUR", plan.Import.Settings.Currency)

	// A remote dish that only renames keeps the local price and category.
	plan = Merge(localMenu(), &remote.Snapshot{
		Dishes: []remote.DishDTO{{ID: "d1", Name: "Steak au poivre"}},
		Users:  []remote.UserDTO{{ID: "u1", Role: "manager"}},
	}, Policy(true))
	require.Len(t, plan.Conflicts, 2)
	byKey := map[string]Conflict{}
	for _, c := range plan.Conflicts {
		byKey[c.Key()] = c
	}
	assert.Equal(t, []string{"name"}, byKey["dish:d1"].Fields)
	assert.Equal(t, []string{"role"}, byKey["user:u1"].Fields)

	require.Len(t, plan.Import.Dishes, 1)
	d1 = plan.Import.Dishes[0]
	assert.Equal(t, "Steak au poivre", d1.Name)
	assert.Equal(t, "c1", d1.CategoryID)
	assert.True(t, d1.Price.Equal(decimal.NewFromInt(20)), "price was not sent remotely")
	require.Len(t, plan.Import.Users, 1)
	assert.Equal(t, "anna", plan.Import.Users[0].Username)
	assert.Equal(t, "manager", plan.Import.Users[0].Role)
}

func TestMergeIgnoresNonSignificantDifferences(t *testing.T) {
	snap := &remote.Snapshot{
		Dishes: []remote.DishDTO{{ID: "d1", CategoryID: "c1", Name: "Steak", Price: ptr(decimal.NewFromInt(20)), Description: ptr("remote notes")}},
		Users:  []remote.UserDTO{{ID: "u1", Username: "anna", Role: "cashier", Active: ptr(false)}},
	}
	plan := Merge(localMenu(), snap, Policy(true))

	assert.Empty(t, plan.Conflicts)
	assert.Zero(t, plan.Import.Len())
}

func TestMergeNilSnapshot(t *testing.T) {
	plan := Merge(localMenu(), nil, Policy(true))
	assert.Zero(t, plan.Import.Len())
	assert.Empty(t, plan.Conflicts)
}

func TestMergeSettingsAppendedWhenMissingLocally(t *testing.T) {
	local := localMenu()
	local.Settings = nil
	plan := Merge(local, &remote.Snapshot{Settings: &remote.SettingsDTO{RestaurantName: "Eck Süd", Currency: "CHF"}}, Policy(false))

	require.NotNil(t, plan.Import.Settings)
	assert.Equal(t, models.SettingsID, plan.Import.Settings.ID)
	assert.Equal(t, "CHF", plan.Import.Settings.Currency)
	assert.Equal(t, 1, plan.Appended)
}

func TestDecisionValid(t *testing.T) {
	assert.True(t, DecisionLocal.Valid())
	assert.True(t, DecisionRemote.Valid())
	assert.False(t, DecisionPending.Valid())
	assert.False(t, Decision("both").Valid())
}
