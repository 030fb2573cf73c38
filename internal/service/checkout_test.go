package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"vendhub-bot/internal/cart"
	"vendhub-bot/internal/model"
	"vendhub-bot/internal/repository"
)

func TestCheckoutCommitsAllLinesAndClearsCart(t *testing.T) {
	proc, store, _ := newTestProcessor(t)
	carts := cart.NewMemoryStore(time.Minute)
	defer carts.Close()
	ctx := context.Background()

	sword := seedItem(t, store, model.InsertItem{Name: "sword", Price: 100, Stock: 5, IsActive: true})
	shield := seedItem(t, store, model.InsertItem{Name: "shield", Price: 50, Stock: 5, IsActive: true})
	account := seedAccount(t, store, "u1", 300)

	if _, err := carts.Add(ctx, "u1", sword, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := carts.Add(ctx, "u1", shield, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	summary, err := proc.Checkout(ctx, carts, account.ID, "u1", "g1")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if summary.Total != 300 {
		t.Fatalf("expected total 300, got %d", summary.Total)
	}
	if summary.NewBalance != 0 {
		t.Fatalf("expected balance 0, got %d", summary.NewBalance)
	}
	if len(summary.Receipts) != 2 {
		t.Fatalf("expected 2 receipts, got %d", len(summary.Receipts))
	}

	c, _ := carts.Get(ctx, "u1")
	if !c.IsEmpty() {
		t.Fatalf("cart not cleared after checkout: %d lines", len(c.Lines))
	}
	txs, _ := store.ListTransactions(ctx)
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	proc, store, _ := newTestProcessor(t)
	carts := cart.NewMemoryStore(time.Minute)
	defer carts.Close()

	account := seedAccount(t, store, "u1", 100)

	_, err := proc.Checkout(context.Background(), carts, account.ID, "u1", "g1")
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCheckoutAbortsBeforeAnyCommitWhenUnaffordable(t *testing.T) {
	proc, store, _ := newTestProcessor(t)
	carts := cart.NewMemoryStore(time.Minute)
	defer carts.Close()
	ctx := context.Background()

	sword := seedItem(t, store, model.InsertItem{Name: "sword", Price: 100, Stock: 5, IsActive: true})
	shield := seedItem(t, store, model.InsertItem{Name: "shield", Price: 50, Stock: 5, IsActive: true})
	account := seedAccount(t, store, "u1", 120)

	carts.Add(ctx, "u1", sword, 1)
	carts.Add(ctx, "u1", shield, 1)

	// Each line alone is affordable; the combined total is not. The
	// prevalidation must refuse before committing anything.
	_, err := proc.Checkout(ctx, carts, account.ID, "u1", "g1")
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	gotAccount, _ := store.GetAccount(ctx, account.ID)
	if gotAccount.Balance != 120 {
		t.Fatalf("balance changed on refused checkout: %d", gotAccount.Balance)
	}
	txs, _ := store.ListTransactions(ctx)
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
	c, _ := carts.Get(ctx, "u1")
	if len(c.Lines) != 2 {
		t.Fatalf("cart should survive a refused checkout, got %d lines", len(c.Lines))
	}
}

func TestCheckoutRefusesOverflowingCartTotal(t *testing.T) {
	proc, store, _ := newTestProcessor(t)
	carts := cart.NewMemoryStore(time.Minute)
	defer carts.Close()
	ctx := context.Background()

	bolt := seedItem(t, store, model.InsertItem{Name: "bolt", Price: 1, InfiniteStock: true, IsActive: true})
	nut := seedItem(t, store, model.InsertItem{Name: "nut", Price: 1, InfiniteStock: true, IsActive: true})
	account := seedAccount(t, store, "u1", math.MaxInt64)

	big := int64(math.MaxInt64 - 10)
	if _, err := carts.Add(ctx, "u1", bolt, big); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := carts.Add(ctx, "u1", nut, big); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Each line clears on its own; the summed total would wrap.
	_, err := proc.Checkout(ctx, carts, account.ID, "u1", "g1")
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	gotAccount, _ := store.GetAccount(ctx, account.ID)
	if gotAccount.Balance != math.MaxInt64 {
		t.Fatalf("balance changed on refused checkout: %d", gotAccount.Balance)
	}
	txs, _ := store.ListTransactions(ctx)
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
}

func TestCheckoutStaleLineRefusedBeforeCommit(t *testing.T) {
	proc, store, _ := newTestProcessor(t)
	carts := cart.NewMemoryStore(time.Minute)
	defer carts.Close()
	ctx := context.Background()

	key := seedItem(t, store, model.InsertItem{Name: "key", Price: 10, Stock: 2, IsActive: true})
	account := seedAccount(t, store, "u1", 100)

	carts.Add(ctx, "u1", key, 2)

	// Stock drains between staging and checkout.
	if err := store.AdjustStock(ctx, key.ID, -2); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	_, err := proc.Checkout(ctx, carts, account.ID, "u1", "g1")
	if !errors.Is(err, repository.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	gotAccount, _ := store.GetAccount(ctx, account.ID)
	if gotAccount.Balance != 100 {
		t.Fatalf("balance changed on refused checkout: %d", gotAccount.Balance)
	}
}

func TestViewCartPricesLive(t *testing.T) {
	proc, store, _ := newTestProcessor(t)
	carts := cart.NewMemoryStore(time.Minute)
	defer carts.Close()
	ctx := context.Background()

	sword := seedItem(t, store, model.InsertItem{Name: "sword", Price: 100, Stock: 5, IsActive: true})
	carts.Add(ctx, "u1", sword, 2)

	// Admin reprices the item while it sits in the cart.
	newPrice := int64(150)
	if _, err := store.UpdateItem(ctx, sword.ID, model.ItemUpdate{Price: &newPrice}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	view, err := proc.ViewCart(ctx, carts, "u1")
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if view.Total != 300 {
		t.Fatalf("expected live total 300, got %d", view.Total)
	}
}
