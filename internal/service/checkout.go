package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"vendhub-bot/internal/cart"
	"vendhub-bot/internal/model"
	"vendhub-bot/internal/repository"
)

// CheckoutSummary accumulates the per-line receipts of a cart checkout.
type CheckoutSummary struct {
	Receipts   []*Receipt
	Total      int64
	NewBalance int64
}

// CartView is a cart priced against the live catalog. Line snapshots
// keep their display name; Total always uses current prices.
type CartView struct {
	Lines []model.CartLine
	Total int64
}

// Checkout buys every line of the user's cart. All lines are first
// re-validated against freshly read stock, prices and balance; any
// failure aborts the whole checkout before the first line commits.
// Line commits then run through Purchase one by one and the cart is
// cleared on success.
func (p *Processor) Checkout(ctx context.Context, carts cart.Store, accountID int64, userID, guildID string) (*CheckoutSummary, error) {
	c, err := carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	account, err := p.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// Stock and prices may have changed since the lines were staged;
	// nothing commits unless every line still clears.
	var total int64
	for _, line := range c.Lines {
		item, err := p.store.GetItem(ctx, line.ItemID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if err := CanPurchase(item, account, line.Quantity); err != nil {
			return nil, fmt.Errorf("%s: %w", line.Name, err)
		}
		lt, err := lineTotal(item.Price, line.Quantity)
		if err != nil || lt > math.MaxInt64-total {
			// The summed total must not wrap either.
			return nil, fmt.Errorf("%s: %w", line.Name, ErrInvalidQuantity)
		}
		total += lt
	}
	if !account.CanAfford(total) {
		return nil, fmt.Errorf("cart total %d: %w", total, repository.ErrInsufficientBalance)
	}

	summary := &CheckoutSummary{}
	for _, line := range c.Lines {
		receipt, err := p.Purchase(ctx, PurchaseRequest{
			AccountID:    accountID,
			ItemID:       line.ItemID,
			Quantity:     line.Quantity,
			OptionIndex:  -1,
			ContentIndex: -1,
			GuildID:      guildID,
		})
		if err != nil {
			// Only a concurrent purchase racing this checkout can fail a
			// line after prevalidation. Committed lines stand; the rest
			// of the cart is kept for retry.
			log.Printf("[Processor] Checkout aborted at %s for account %d: %v", line.Name, accountID, err)
			return summary, fmt.Errorf("%s: %w", line.Name, err)
		}
		summary.Receipts = append(summary.Receipts, receipt)
		summary.Total += receipt.Transaction.TotalPrice
		summary.NewBalance = receipt.NewBalance
		if _, err := carts.Remove(ctx, userID, line.ItemID, line.Quantity); err != nil {
			log.Printf("[Processor] Failed to drop committed line %d from cart %s: %v", line.ItemID, userID, err)
		}
	}

	if err := carts.Clear(ctx, userID); err != nil {
		log.Printf("[Processor] Failed to clear cart %s after checkout: %v", userID, err)
	}
	return summary, nil
}

// ViewCart prices the user's cart against the live catalog. Lines whose
// item vanished from the catalog are skipped.
func (p *Processor) ViewCart(ctx context.Context, carts cart.Store, userID string) (*CartView, error) {
	c, err := carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &CartView{}
	for _, line := range c.Lines {
		item, err := p.store.GetItem(ctx, line.ItemID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		lt, err := lineTotal(item.Price, line.Quantity)
		if err != nil || lt > math.MaxInt64-view.Total {
			return nil, fmt.Errorf("%s: %w", line.Name, ErrInvalidQuantity)
		}
		line.UnitPrice = item.Price
		view.Lines = append(view.Lines, line)
		view.Total += lt
	}
	return view, nil
}
