package service

import (
	"context"
	"testing"

	"vendhub-bot/internal/model"
	"vendhub-bot/internal/repository"
)

func TestStatsAggregation(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	store.CreateItem(ctx, model.InsertItem{Name: "a", Price: 100, Stock: 3, IsActive: true})
	store.CreateItem(ctx, model.InsertItem{Name: "b", Price: 50, Stock: 20, IsActive: true})
	store.CreateItem(ctx, model.InsertItem{Name: "c", Price: 10, InfiniteStock: true, IsActive: true})

	account, _ := store.CreateAccount(ctx, "u1", "alice", 0)
	store.AppendTransaction(ctx, model.InsertTransaction{AccountID: account.ID, ItemID: 1, Quantity: 1, TotalPrice: 100})
	store.AppendTransaction(ctx, model.InsertTransaction{AccountID: account.ID, ItemID: 2, Quantity: 2, TotalPrice: 100})

	stats, err := NewStatsService(store).Compute(ctx)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	if stats.TotalSales != 2 {
		t.Fatalf("expected 2 sales, got %d", stats.TotalSales)
	}
	if stats.TotalRevenue != 200 {
		t.Fatalf("expected revenue 200, got %d", stats.TotalRevenue)
	}
	if stats.TotalStock != 23 {
		t.Fatalf("expected stock 23, got %d", stats.TotalStock)
	}
	// Item a has 3 left; the infinite item never counts as low stock.
	if stats.LowStockItems != 1 {
		t.Fatalf("expected 1 low stock item, got %d", stats.LowStockItems)
	}
	if stats.UserCount != 1 || stats.NewUsers != 1 {
		t.Fatalf("expected 1 user and 1 new user, got %d/%d", stats.UserCount, stats.NewUsers)
	}
}
