package model

import "time"

// CartLine is a single staged entry in a user's cart. Name and UnitPrice
// are display snapshots taken when the line was added; the authoritative
// price is re-read from the catalog at checkout.
type CartLine struct {
	ItemID    int64  `json:"item_id"`
	Quantity  int64  `json:"quantity"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
}

// Cart is the ephemeral per-user staging list of items pending checkout.
// Carts are never persisted and expire with inactivity.
type Cart struct {
	UserID    string     `json:"user_id"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Line returns the line for itemID, or nil.
func (c *Cart) Line(itemID int64) *CartLine {
	for i := range c.Lines {
		if c.Lines[i].ItemID == itemID {
			return &c.Lines[i]
		}
	}
	return nil
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}
