package sync

import (
	"fmt"

	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/remote"
	"github.com/xelth-com/eckposgo/internal/store"
)

// Decision picks the side that wins a conflict
type Decision string

const (
	// DecisionLocal keeps the local record untouched
	DecisionLocal Decision = "local"
	// DecisionRemote shallow-merges the remote fields onto the local record
	DecisionRemote Decision = "remote"
	// DecisionPending leaves the conflict open for an explicit choice
	DecisionPending Decision = ""
)

// Valid reports whether d is a decision a caller may submit
func (d Decision) Valid() bool {
	return d == DecisionLocal || d == DecisionRemote
}

// Conflict is a same-id entity whose significant fields differ
type Conflict struct {
	EntityType string   `json:"entityType"`
	EntityID   string   `json:"entityId"`
	Fields     []string `json:"fields"`
	Local      any      `json:"local"`
	Remote     any      `json:"remote"`
}

// Key identifies the conflicted entity
func (c Conflict) Key() string {
	return c.EntityType + ":" + c.EntityID
}

// DecideFunc chooses a side for one conflict
type DecideFunc func(Conflict) Decision

// Policy returns the DecideFunc of the global preferCloud policy: every
// conflict goes the same way. With preferCloud off conflicts stay pending
// so the caller resolves them explicitly.
func Policy(preferCloud bool) DecideFunc {
	return func(Conflict) Decision {
		if preferCloud {
			return DecisionRemote
		}
		return DecisionPending
	}
}

// Significant fields per entity family, compared only when the remote sent
// them. Other differences never raise a conflict and the local value is kept.

func categoryDiff(l models.Category, r remote.CategoryDTO) []string {
	var f []string
	if r.Name != "" && l.Name != r.Name {
		f = append(f, "name")
	}
	if r.SortOrder != nil && *r.SortOrder != l.SortOrder {
		f = append(f, "sortOrder")
	}
	return f
}

func dishDiff(l models.Dish, r remote.DishDTO) []string {
	var f []string
	if r.Name != "" && l.Name != r.Name {
		f = append(f, "name")
	}
	if r.Price != nil && !l.Price.Equal(*r.Price) {
		f = append(f, "price")
	}
	if r.CategoryID != "" && l.CategoryID != r.CategoryID {
		f = append(f, "categoryId")
	}
	return f
}

func settingsDiff(l models.Settings, r remote.SettingsDTO) []string {
	var f []string
	if r.RestaurantName != "" && l.RestaurantName != r.RestaurantName {
		f = append(f, "restaurantName")
	}
	if r.TaxRate != nil && !l.TaxRate.Equal(*r.TaxRate) {
		f = append(f, "taxRate")
	}
	if r.TaxIncluded != nil && l.TaxIncluded != *r.TaxIncluded {
		f = append(f, "taxIncluded")
	}
	if r.Currency != "" && l.Currency != r.Currency {
		f = append(f, "currency")
	}
	return f
}

func userDiff(l models.User, r remote.UserDTO) []string {
	var f []string
	if r.Username != "" && l.Username != r.Username {
		f = append(f, "username")
	}
	if r.Role != "" && l.Role != r.Role {
		f = append(f, "role")
	}
	return f
}

// LocalMenu is the local side of an import
type LocalMenu struct {
	Categories []models.Category
	Dishes     []models.Dish
	Settings   *models.Settings
	Users      []models.User
}

// MergePlan is what an import would write
type MergePlan struct {
	Import    store.MenuImport
	Appended  int
	Updated   int
	Conflicts []Conflict
	Decisions map[string]Decision
}

// DetectConflicts lists the entities present on both sides whose significant fields differ
func DetectConflicts(local LocalMenu, snap *remote.Snapshot) []Conflict {
	return Merge(local, snap, Policy(false)).Conflicts
}

// Merge plans an import. Remote-only entities are appended, local-only ones
// are left alone, and each conflict is settled by decide: a remote decision
// copies the fields the remote sent onto the local record, anything else
// keeps the local record as is.
func Merge(local LocalMenu, snap *remote.Snapshot, decide DecideFunc) MergePlan {
	plan := MergePlan{Decisions: make(map[string]Decision)}
	if snap == nil {
		return plan
	}

	cats := mergeFamily(&plan, "category", local.Categories, snap.Categories,
		func(c models.Category) string { return c.ID },
		func(d remote.CategoryDTO) string { return d.ID },
		categoryDiff,
		remote.CategoryDTO.ToModel,
		func(l models.Category, r remote.CategoryDTO) models.Category { r.ApplyTo(&l); l.Pending = false; return l },
		decide)
	plan.Import.Categories = cats

	plan.Import.Dishes = mergeFamily(&plan, "dish", local.Dishes, snap.Dishes,
		func(d models.Dish) string { return d.ID },
		func(d remote.DishDTO) string { return d.ID },
		dishDiff,
		remote.DishDTO.ToModel,
		func(l models.Dish, r remote.DishDTO) models.Dish { r.ApplyTo(&l); l.Pending = false; return l },
		decide)

	plan.Import.Users = mergeFamily(&plan, "user", local.Users, snap.Users,
		func(u models.User) string { return u.ID },
		func(d remote.UserDTO) string { return d.ID },
		userDiff,
		remote.UserDTO.ToModel,
		func(l models.User, r remote.UserDTO) models.User { r.ApplyTo(&l); l.Pending = false; return l },
		decide)

	if snap.Settings != nil {
		if local.Settings == nil {
			s := snap.Settings.ToModel()
			plan.Import.Settings = &s
			plan.Appended++
		} else if fields := settingsDiff(*local.Settings, *snap.Settings); len(fields) > 0 {
			c := Conflict{EntityType: "settings", EntityID: models.SettingsID, Fields: fields, Local: *local.Settings, Remote: *snap.Settings}
			if d := record(&plan, c, decide); d == DecisionRemote {
				s := *local.Settings
				snap.Settings.ApplyTo(&s)
				s.Pending = false
				plan.Import.Settings = &s
				plan.Updated++
			}
		}
	}
	return plan
}

func record(plan *MergePlan, c Conflict, decide DecideFunc) Decision {
	d := DecisionPending
	if decide != nil {
		d = decide(c)
	}
	plan.Conflicts = append(plan.Conflicts, c)
	plan.Decisions[c.Key()] = d
	return d
}

func mergeFamily[L, R any](
	plan *MergePlan,
	kind string,
	local []L,
	remotes []R,
	localID func(L) string,
	remoteID func(R) string,
	diff func(L, R) []string,
	toModel func(R) L,
	apply func(L, R) L,
	decide DecideFunc,
) []L {
	byID := make(map[string]L, len(local))
	for _, l := range local {
		byID[localID(l)] = l
	}

	var out []L
	for _, r := range remotes {
		id := remoteID(r)
		if id == "" {
			continue
		}
		l, exists := byID[id]
		if !exists {
			out = append(out, toModel(r))
			plan.Appended++
			continue
		}
		fields := diff(l, r)
		if len(fields) == 0 {
			continue
		}
		c := Conflict{EntityType: kind, EntityID: id, Fields: fields, Local: l, Remote: r}
		if record(plan, c, decide) == DecisionRemote {
			out = append(out, apply(l, r))
			plan.Updated++
		}
	}
	return out
}

// conflictSummary is a one-line description for notifications
func conflictSummary(n int, pending int) string {
	if pending == 0 {
		return fmt.Sprintf("%d conflict(s) resolved", n)
	}
	return fmt.Sprintf("%d conflict(s), %d awaiting a decision", n, pending)
}
