package service

import (
	"fmt"
	"math"

	"vendhub-bot/internal/model"
	"vendhub-bot/internal/repository"
)

// CanPurchase checks whether qty units of item can be sold to account.
// Pure and side-effect free; checks run in a fixed order and the first
// failing reason is returned. Pass nil for a missing item or account.
//
// Order: item exists, item active, stock covers quantity, total
// representable, account exists, balance covers the total.
func CanPurchase(item *model.Item, account *model.Account, qty int64) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if item == nil {
		return fmt.Errorf("item: %w", repository.ErrNotFound)
	}
	if !item.IsActive {
		return ErrItemInactive
	}
	if !item.HasStock(qty) {
		return repository.ErrInsufficientStock
	}
	total, err := lineTotal(item.Price, qty)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("account: %w", repository.ErrNotFound)
	}
	if !account.CanAfford(total) {
		return repository.ErrInsufficientBalance
	}
	return nil
}

// lineTotal computes price * qty, refusing quantities whose total would
// wrap int64. A wrapped total turns the debit into a credit, so every
// price * quantity in the engine goes through here.
func lineTotal(price, qty int64) (int64, error) {
	if price > 0 && qty > math.MaxInt64/price {
		return 0, ErrInvalidQuantity
	}
	return price * qty, nil
}
