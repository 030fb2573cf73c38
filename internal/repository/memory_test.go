package repository

import (
	"context"
	"errors"
	"testing"

	"vendhub-bot/internal/model"
)

func TestAdjustBalanceRefusesToGoNegative(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	account, err := store.CreateAccount(ctx, "u1", "alice", 100)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := store.AdjustBalance(ctx, account.ID, -60)
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if updated.Balance != 40 {
		t.Fatalf("expected 40, got %d", updated.Balance)
	}

	if _, err := store.AdjustBalance(ctx, account.ID, -50); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	got, _ := store.GetAccount(ctx, account.ID)
	if got.Balance != 40 {
		t.Fatalf("refused adjust changed balance: %d", got.Balance)
	}

	if _, err := store.AdjustBalance(ctx, 999, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAccountRejectsDuplicatePlatformID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, "u1", "alice", 10); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := store.CreateAccount(ctx, "u1", "alice", 10); err == nil {
		t.Fatal("duplicate platform id accepted")
	}

	accounts, _ := store.ListAccounts(ctx)
	if len(accounts) != 1 {
		t.Fatalf("expected one account, got %d", len(accounts))
	}
}

func TestAdjustStockRefusesToCrossZero(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	item, err := store.CreateItem(ctx, model.InsertItem{Name: "key", Price: 10, Stock: 2, IsActive: true})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := store.AdjustStock(ctx, item.ID, -2); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if err := store.AdjustStock(ctx, item.ID, -1); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Restock works from zero.
	if err := store.AdjustStock(ctx, item.ID, 5); err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	got, _ := store.GetItem(ctx, item.ID)
	if got.Stock != 5 {
		t.Fatalf("expected 5, got %d", got.Stock)
	}
}

func TestConsumeContentOptionRemovesExactlyOne(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	item, err := store.CreateItem(ctx, model.InsertItem{
		Name: "license", Price: 10, Stock: 5, IsActive: true,
		ContentOptions: []string{"A", "B", "C"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	payload, err := store.ConsumeContentOption(ctx, item.ID, 1)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if payload != "B" {
		t.Fatalf("expected B, got %q", payload)
	}

	got, _ := store.GetItem(ctx, item.ID)
	if len(got.ContentOptions) != 2 || got.ContentOptions[0] != "A" || got.ContentOptions[1] != "C" {
		t.Fatalf("expected [A C], got %v", got.ContentOptions)
	}

	if _, err := store.ConsumeContentOption(ctx, item.ID, 5); !errors.Is(err, ErrNoContentOption) {
		t.Fatalf("expected ErrNoContentOption, got %v", err)
	}
}

func TestUpdateItemAppliesPartialFields(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	item, _ := store.CreateItem(ctx, model.InsertItem{Name: "sword", Price: 100, Stock: 5, IsActive: true})

	newPrice := int64(150)
	inactive := false
	updated, err := store.UpdateItem(ctx, item.ID, model.ItemUpdate{Price: &newPrice, IsActive: &inactive})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Price != 150 || updated.IsActive || updated.Name != "sword" || updated.Stock != 5 {
		t.Fatalf("unexpected result: %+v", updated)
	}
}

func TestGuildSettingsUpsert(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.GetGuildSettings(ctx, "g1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	saved, err := store.UpsertGuildSettings(ctx, model.GuildSettings{
		GuildID: "g1", CurrencyName: "gems", Prefix: "/shop", IsActive: true,
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if saved.CurrencyName != "gems" {
		t.Fatalf("expected gems, got %q", saved.CurrencyName)
	}

	saved.CurrencyName = "tokens"
	again, err := store.UpsertGuildSettings(ctx, *saved)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	got, _ := store.GetGuildSettings(ctx, "g1")
	if got.CurrencyName != "tokens" || got.ID != again.ID {
		t.Fatalf("upsert did not replace: %+v", got)
	}
}

func TestResetAllBalances(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.CreateAccount(ctx, "u1", "a", 100)
	store.CreateAccount(ctx, "u2", "b", 50)

	affected, err := store.ResetAllBalances(ctx)
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 affected, got %d", affected)
	}

	accounts, _ := store.ListAccounts(ctx)
	for _, account := range accounts {
		if account.Balance != 0 {
			t.Fatalf("account %s still has %d", account.PlatformID, account.Balance)
		}
	}
}
