package model

import "time"

// Item represents a catalog entry purchasable through the vending machine.
type Item struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Price          int64     `json:"price"`
	Stock          int64     `json:"stock"`
	InfiniteStock  bool      `json:"infinite_stock"`
	IsActive       bool      `json:"is_active"`
	RoleID         string    `json:"role_id,omitempty"`
	Content        string    `json:"content,omitempty"`
	ContentOptions []string  `json:"content_options,omitempty"`
	Options        []string  `json:"options,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasStock reports whether qty units can currently be taken from stock.
func (i *Item) HasStock(qty int64) bool {
	return i.InfiniteStock || i.Stock >= qty
}

// NeedsSelection reports whether the purchaser has choices to make
// before the purchase can be confirmed.
func (i *Item) NeedsSelection() bool {
	return len(i.Options) > 0 || len(i.ContentOptions) > 0
}

// InsertItem carries the fields needed to create a new catalog item.
type InsertItem struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Price          int64    `json:"price"`
	Stock          int64    `json:"stock"`
	InfiniteStock  bool     `json:"infinite_stock"`
	IsActive       bool     `json:"is_active"`
	RoleID         string   `json:"role_id,omitempty"`
	Content        string   `json:"content,omitempty"`
	ContentOptions []string `json:"content_options,omitempty"`
	Options        []string `json:"options,omitempty"`
}

// ItemUpdate carries a partial catalog item update. Nil fields are
// left unchanged.
type ItemUpdate struct {
	Name           *string   `json:"name,omitempty"`
	Description    *string   `json:"description,omitempty"`
	Price          *int64    `json:"price,omitempty"`
	Stock          *int64    `json:"stock,omitempty"`
	InfiniteStock  *bool     `json:"infinite_stock,omitempty"`
	IsActive       *bool     `json:"is_active,omitempty"`
	RoleID         *string   `json:"role_id,omitempty"`
	Content        *string   `json:"content,omitempty"`
	ContentOptions *[]string `json:"content_options,omitempty"`
	Options        *[]string `json:"options,omitempty"`
}

// Apply copies the non-nil fields of the update onto the item.
func (u *ItemUpdate) Apply(item *Item) {
	if u.Name != nil {
		item.Name = *u.Name
	}
	if u.Description != nil {
		item.Description = *u.Description
	}
	if u.Price != nil {
		item.Price = *u.Price
	}
	if u.Stock != nil {
		item.Stock = *u.Stock
	}
	if u.InfiniteStock != nil {
		item.InfiniteStock = *u.InfiniteStock
	}
	if u.IsActive != nil {
		item.IsActive = *u.IsActive
	}
	if u.RoleID != nil {
		item.RoleID = *u.RoleID
	}
	if u.Content != nil {
		item.Content = *u.Content
	}
	if u.ContentOptions != nil {
		item.ContentOptions = append([]string(nil), (*u.ContentOptions)...)
	}
	if u.Options != nil {
		item.Options = append([]string(nil), (*u.Options)...)
	}
}
