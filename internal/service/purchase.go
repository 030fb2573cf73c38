package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"vendhub-bot/internal/model"
	"vendhub-bot/internal/repository"
)

// PurchaseRequest carries one buy intent into the processor.
type PurchaseRequest struct {
	AccountID int64
	ItemID    int64
	Quantity  int64

	// OptionIndex selects a variant label; negative means no selection.
	OptionIndex int

	// ContentIndex selects a one-shot content option; negative means
	// no selection.
	ContentIndex int

	// GuildID scopes the role grant, if the item carries one.
	GuildID string
}

// Receipt summarizes a committed purchase.
type Receipt struct {
	Transaction *model.Transaction
	Item        *model.Item
	NewBalance  int64

	// Option is the chosen variant label, or "" when the item has none.
	Option string

	// Delivered is the content payload sent to the purchaser, if any.
	Delivered string

	// Warnings lists post-commit fulfillment problems. The sale is
	// final even when this is non-empty.
	Warnings []string
}

// Notice renders the degraded-success notice for the receipt, or ""
// when every fulfillment step succeeded.
func (r *Receipt) Notice() string {
	return fulfillmentNotice(r.Warnings)
}

// Processor executes purchases against the repository. It is the only
// component that mutates balance, stock and the ledger, so every path
// into a sale (direct buy, confirmed flow, cart checkout) funnels
// through Purchase.
type Processor struct {
	store     repository.Store
	fulfiller *Fulfiller
}

// NewProcessor creates a transaction processor.
func NewProcessor(store repository.Store, fulfiller *Fulfiller) *Processor {
	return &Processor{store: store, fulfiller: fulfiller}
}

// Purchase executes one atomic purchase: validate against freshly read
// state, debit, decrement stock, append the ledger record, then hand
// off to fulfillment. The debit and the decrement are each atomic with
// their own guard; a decrement failure refunds the debit so the commit
// is all-or-nothing. Fulfillment failures never roll anything back.
func (p *Processor) Purchase(ctx context.Context, req PurchaseRequest) (*Receipt, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	// Always re-read state here. Values captured before an async wait
	// (button round-trip, cart staging) may be arbitrarily stale.
	item, err := p.store.GetItem(ctx, req.ItemID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	account, err := p.store.GetAccount(ctx, req.AccountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err := CanPurchase(item, account, req.Quantity); err != nil {
		return nil, err
	}

	// CanPurchase already refused overflowing quantities.
	total := item.Price * req.Quantity

	option := ""
	if req.OptionIndex >= 0 && req.OptionIndex < len(item.Options) {
		option = item.Options[req.OptionIndex]
	}

	account, err = p.store.AdjustBalance(ctx, req.AccountID, -total)
	if err != nil {
		// A concurrent purchase can still win the race between the
		// validation read and the debit; the guard catches it here.
		return nil, err
	}

	if !item.InfiniteStock {
		if err := p.store.AdjustStock(ctx, req.ItemID, -req.Quantity); err != nil {
			if _, rbErr := p.store.AdjustBalance(ctx, req.AccountID, total); rbErr != nil {
				log.Printf("[Processor] CRITICAL: stock decrement failed and refund of %d to account %d also failed: %v",
					total, req.AccountID, rbErr)
			}
			return nil, err
		}
	}

	tx, err := p.store.AppendTransaction(ctx, model.InsertTransaction{
		AccountID:  req.AccountID,
		ItemID:     req.ItemID,
		Quantity:   req.Quantity,
		TotalPrice: total,
	})
	if err != nil {
		if !item.InfiniteStock {
			if rbErr := p.store.AdjustStock(ctx, req.ItemID, req.Quantity); rbErr != nil {
				log.Printf("[Processor] CRITICAL: ledger append failed and stock restore for item %d also failed: %v",
					req.ItemID, rbErr)
			}
		}
		if _, rbErr := p.store.AdjustBalance(ctx, req.AccountID, total); rbErr != nil {
			log.Printf("[Processor] CRITICAL: ledger append failed and refund of %d to account %d also failed: %v",
				total, req.AccountID, rbErr)
		}
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	// The sale is final from here on.
	delivered, warnings := p.fulfiller.Fulfill(ctx, req.GuildID, account, item, req.ContentIndex)

	return &Receipt{
		Transaction: tx,
		Item:        item,
		NewBalance:  account.Balance,
		Option:      option,
		Delivered:   delivered,
		Warnings:    warnings,
	}, nil
}

// EnsureAccount returns the account for a platform user, creating it
// with the starting balance on first interaction.
func (p *Processor) EnsureAccount(ctx context.Context, platformID, username string, startingBalance int64) (*model.Account, error) {
	account, err := p.store.GetAccountByPlatformID(ctx, platformID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	account, createErr := p.store.CreateAccount(ctx, platformID, username, startingBalance)
	if createErr == nil {
		return account, nil
	}
	// Two first interactions can race the create; the loser hits the
	// unique platform id and finds the winner's row on re-read.
	if account, err := p.store.GetAccountByPlatformID(ctx, platformID); err == nil {
		return account, nil
	}
	return nil, createErr
}
