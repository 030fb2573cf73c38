package cart

import (
	"context"

	"vendhub-bot/internal/model"
)

// Store is the staging area for items pending checkout. Carts are
// private per user and ephemeral: they expire with inactivity and are
// lost on restart unless the redis implementation backs them.
//
// This abstraction allows swapping between the in-memory store
// (development, single instance) and Redis (multi-instance) without
// changing the purchase flow.
type Store interface {
	// Get returns the user's cart. A user without a cart gets an empty
	// one, never nil.
	Get(ctx context.Context, userID string) (*model.Cart, error)

	// Add stages qty units of item, merging with an existing line. The
	// merged quantity must not exceed the item's current stock unless
	// stock is infinite; ErrStockExceeded is reported otherwise and the
	// cart is left unchanged.
	Add(ctx context.Context, userID string, item *model.Item, qty int64) (*model.Cart, error)

	// Remove drops qty units from the item's line, deleting the line
	// when it reaches zero. ErrLineNotFound is reported if the item is
	// not in the cart.
	Remove(ctx context.Context, userID string, itemID, qty int64) (*model.Cart, error)

	// Clear drops the whole cart.
	Clear(ctx context.Context, userID string) error

	// Close releases any resources held by the store.
	Close() error
}

// Cart errors
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrStockExceeded indicates the staged quantity would exceed the
	// item's current stock.
	ErrStockExceeded Error = "quantity exceeds current stock"

	// ErrLineNotFound indicates the item is not in the cart.
	ErrLineNotFound Error = "item not in cart"
)

// merge stages qty units of item onto the cart in place, enforcing the
// stock cap against the merged quantity. Shared by both store
// implementations so they cannot drift.
func merge(c *model.Cart, item *model.Item, qty int64) error {
	line := c.Line(item.ID)
	merged := qty
	if line != nil {
		merged += line.Quantity
		if merged < qty {
			// Merged quantity wrapped int64.
			return ErrStockExceeded
		}
	}
	if !item.InfiniteStock && merged > item.Stock {
		return ErrStockExceeded
	}
	if line != nil {
		line.Quantity = merged
		return nil
	}
	c.Lines = append(c.Lines, model.CartLine{
		ItemID:    item.ID,
		Quantity:  qty,
		Name:      item.Name,
		UnitPrice: item.Price,
	})
	return nil
}

// reduce removes qty units of itemID from the cart in place, dropping
// the line when it reaches zero.
func reduce(c *model.Cart, itemID, qty int64) error {
	for i := range c.Lines {
		if c.Lines[i].ItemID != itemID {
			continue
		}
		if c.Lines[i].Quantity <= qty {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		} else {
			c.Lines[i].Quantity -= qty
		}
		return nil
	}
	return ErrLineNotFound
}
