package remote

import (
	"github.com/xelth-com/eckposgo/internal/models"
)

// Conversions between local models and the wire shapes above. The ApplyTo
// methods copy only what the remote sent onto an existing local record.

func CategoryFromModel(c models.Category) CategoryDTO {
	sort, color := c.SortOrder, c.Color
	return CategoryDTO{ID: c.ID, Name: c.Name, SortOrder: &sort, Color: &color}
}

func (d CategoryDTO) ToModel() models.Category {
	var c models.Category
	c.ID = d.ID
	d.ApplyTo(&c)
	return c
}

func (d CategoryDTO) ApplyTo(c *models.Category) {
	if d.Name != "" {
		c.Name = d.Name
	}
	if d.SortOrder != nil {
		c.SortOrder = *d.SortOrder
	}
	if d.Color != nil {
		c.Color = *d.Color
	}
}

func DishFromModel(d models.Dish) DishDTO {
	price, desc, avail := d.Price, d.Description, d.Available
	return DishDTO{
		ID:          d.ID,
		CategoryID:  d.CategoryID,
		Name:        d.Name,
		Price:       &price,
		Description: &desc,
		Available:   &avail,
	}
}

func (d DishDTO) ToModel() models.Dish {
	dish := models.Dish{ID: d.ID, Available: true}
	d.ApplyTo(&dish)
	return dish
}

func (d DishDTO) ApplyTo(dish *models.Dish) {
	if d.Name != "" {
		dish.Name = d.Name
	}
	if d.CategoryID != "" {
		dish.CategoryID = d.CategoryID
	}
	if d.Price != nil {
		dish.Price = *d.Price
	}
	if d.Description != nil {
		dish.Description = *d.Description
	}
	if d.Available != nil {
		dish.Available = *d.Available
	}
}

func SettingsFromModel(s models.Settings) *SettingsDTO {
	addr, rate, incl := s.Address, s.TaxRate, s.TaxIncluded
	return &SettingsDTO{
		RestaurantName: s.RestaurantName,
		Address:        &addr,
		TaxRate:        &rate,
		TaxIncluded:    &incl,
		Currency:       s.Currency,
	}
}

func (d SettingsDTO) ToModel() models.Settings {
	s := models.DefaultSettings()
	d.ApplyTo(&s)
	return s
}

func (d SettingsDTO) ApplyTo(s *models.Settings) {
	if d.RestaurantName != "" {
		s.RestaurantName = d.RestaurantName
	}
	if d.Address != nil {
		s.Address = *d.Address
	}
	if d.TaxRate != nil {
		s.TaxRate = *d.TaxRate
	}
	if d.TaxIncluded != nil {
		s.TaxIncluded = *d.TaxIncluded
	}
	if d.Currency != "" {
		s.Currency = d.Currency
	}
}

func UserFromModel(u models.User) UserDTO {
	active := u.Active
	return UserDTO{ID: u.ID, Username: u.Username, Role: u.Role, Active: &active}
}

func (d UserDTO) ToModel() models.User {
	u := models.User{ID: d.ID, Active: true}
	d.ApplyTo(&u)
	return u
}

func (d UserDTO) ApplyTo(u *models.User) {
	if d.Username != "" {
		u.Username = d.Username
	}
	if d.Role != "" {
		u.Role = d.Role
	}
	if d.Active != nil {
		u.Active = *d.Active
	}
}

func StockItemFromModel(s models.StockItem) StockItemDTO {
	return StockItemDTO{
		ID:          s.ID,
		Name:        s.Name,
		Unit:        s.Unit,
		Quantity:    s.Quantity,
		MinQuantity: s.MinQuantity,
		SupplierID:  s.SupplierID,
	}
}

func SupplierFromModel(s models.Supplier) SupplierDTO {
	return SupplierDTO{ID: s.ID, Name: s.Name, Contact: s.Contact, Phone: s.Phone, Email: s.Email}
}

func OrderFromModel(o models.Order) OrderDTO {
	dto := OrderDTO{
		ID:           o.ID,
		TableID:      o.TableID,
		Status:       string(o.Status),
		Total:        o.Total,
		InvoiceLabel: o.InvoiceLabel,
		Hash:         o.Hash,
		PreviousHash: o.PreviousHash,
		Signature:    o.Signature,
		ClosedAt:     o.ClosedAt,
		Items:        make([]OrderItemDTO, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:        it.ID,
			DishID:    it.DishID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		})
	}
	return dto
}

func PaymentFromModel(p models.Payment) PaymentDTO {
	return PaymentDTO{ID: p.ID, OrderID: p.OrderID, Method: p.Method, Amount: p.Amount}
}

func AuditRecordFromModel(a models.AuditLog) AuditRecordDTO {
	return AuditRecordDTO{
		ID:         a.ID,
		Action:     a.Action,
		EntityType: a.EntityType,
		EntityID:   a.EntityID,
		Actor:      a.Actor,
		Details:    a.Details,
		CreatedAt:  a.CreatedAt,
	}
}

// MapSlice converts every element with fn
func MapSlice[M, D any](in []M, fn func(M) D) []D {
	out := make([]D, 0, len(in))
	for _, m := range in {
		out = append(out, fn(m))
	}
	return out
}
