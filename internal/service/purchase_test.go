package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"vendhub-bot/internal/model"
	"vendhub-bot/internal/platform"
	"vendhub-bot/internal/repository"
)

func newTestProcessor(t *testing.T) (*Processor, repository.Store, *platform.Recorder) {
	t.Helper()
	store := repository.NewMemoryStore()
	rec := platform.NewRecorder()
	proc := NewProcessor(store, NewFulfiller(store, rec))
	return proc, store, rec
}

func seedItem(t *testing.T, store repository.Store, in model.InsertItem) *model.Item {
	t.Helper()
	item, err := store.CreateItem(context.Background(), in)
	if err != nil {
		t.Fatalf("failed to seed item: %v", err)
	}
	return item
}

func seedAccount(t *testing.T, store repository.Store, platformID string, balance int64) *model.Account {
	t.Helper()
	account, err := store.CreateAccount(context.Background(), platformID, platformID, balance)
	if err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	return account
}

func TestPurchaseExactBalanceAndLastUnit(t *testing.T) {
	proc, store, _ := newTestProcessor(t)
	ctx := context.Background()

	item := seedItem(t, store, model.InsertItem{Name: "vip", Price: 500, Stock: 1, IsActive: true})
	account := seedAccount(t, store, "u1", 500)

	receipt, err := proc.Purchase(ctx, PurchaseRequest{
		AccountID: account.ID, ItemID: item.ID, Quantity: 1, ContentIndex: -1,
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if receipt.NewBalance != 0 {
		t.Fatalf("expected balance 0, got %d", receipt.NewBalance)
	}
	if receipt.Transaction.TotalPrice != 500 {
		t.Fatalf("expected total 500, got %d", receipt.Transaction.TotalPrice)
	}

	got, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("failed to reload item: %v", err)
	}
	if got.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", got.Stock)
	}

	// The same buyer cannot buy again: no stock and no balance.
	if _, err := proc.Purchase(ctx, PurchaseRequest{
		AccountID: account.ID, ItemID: item.ID, Quantity: 1, ContentIndex: -1,
	}); !errors.Is(err, repository.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestPurchaseInsufficientBalanceLeavesStateUntouched(t *testing.T) {
	proc, store, _ := newTestProcessor(t)
	ctx := context.Background()

	item := seedItem(t, store, model.InsertItem{Name: "vip", Price: 500, Stock: 3, IsActive: true})
	account := seedAccount(t, store, "u1", 100)

	_, err := proc.Purchase(ctx, PurchaseRequest{
		AccountID: account.ID, ItemID: item.ID, Quantity: 1, ContentIndex: -1,
	})
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	gotAccount, _ := store.GetAccount(ctx, account.ID)
	if gotAccount.Balance != 100 {
		t.Fatalf("balance changed on refused purchase: %d", gotAccount.Balance)
	}
	gotItem, _ := store.GetItem(ctx, item.ID)
	if gotItem.Stock != 3 {
		t.Fatalf("stock changed on refused purchase: %d", gotItem.Stock)
	}
	txs, _ := store.ListTransactions(ctx)
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
}

func TestPurchaseRaceForLastUnit(t *testing.T) {
	proc, store, _ := newTestProcessor(t)
	ctx := context.Background()

	item := seedItem(t, store, model.InsertItem{Name: "key", Price: 10, Stock: 1, IsActive: true})
	a := seedAccount(t, store, "a", 100)
	b := seedAccount(t, store, "b", 100)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, account := range []*model.Account{a, b} {
		wg.Add(1)
		go func(i int, accountID int64) {
			defer wg.Done()
			_, errs[i] = proc.Purchase(ctx, PurchaseRequest{
				AccountID: accountID, ItemID: item.ID, Quantity: 1, ContentIndex: -1,
			})
		}(i, account.ID)
	}
	wg.Wait()

	var successes, stockRefusals int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, repository.ErrInsufficientStock):
			stockRefusals++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || stockRefusals != 1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d refusals", successes, stockRefusals)
	}

	gotItem, _ := store.GetItem(ctx, item.ID)
	if gotItem.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", gotItem.Stock)
	}
	txs, _ := store.ListTransactions(ctx)
	if len(txs) != 1 {
		t.Fatalf("expected exactly one transaction, got %d", len(txs))
	}

	// The loser keeps their money.
	gotA, _ := store.GetAccount(ctx, a.ID)
	gotB, _ := store.GetAccount(ctx, b.ID)
	if gotA.Balance+gotB.Balance != 190 {
		t.Fatalf("expected combined balance 190, got %d", gotA.Balance+gotB.Balance)
	}
}

func TestPurchaseRefusesOverflowingQuantity(t *testing.T) {
	proc, store, _ := newTestProcessor(t)
	ctx := context.Background()

	item := seedItem(t, store, model.InsertItem{
		Name: "role", Price: 3, Stock: 0, InfiniteStock: true, IsActive: true,
	})
	account := seedAccount(t, store, "u1", 10)

	// Infinite stock passes any quantity, so the wrapped total is the
	// only thing standing between this request and a minted credit.
	_, err := proc.Purchase(ctx, PurchaseRequest{
		AccountID: account.ID, ItemID: item.ID, Quantity: 6148914691236516905,
		OptionIndex: -1, ContentIndex: -1,
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	got, _ := store.GetAccount(ctx, account.ID)
	if got.Balance != 10 {
		t.Fatalf("balance changed on refused purchase: %d", got.Balance)
	}
	txs, _ := store.ListTransactions(ctx)
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
}

func TestPurchaseConsumesContentOptionInOrder(t *testing.T) {
	proc, store, rec := newTestProcessor(t)
	ctx := context.Background()

	item := seedItem(t, store, model.InsertItem{
		Name: "license", Price: 10, Stock: 10, IsActive: true,
		ContentOptions: []string{"KEY-A", "KEY-B"},
	})
	first := seedAccount(t, store, "u1", 100)
	second := seedAccount(t, store, "u2", 100)

	receipt, err := proc.Purchase(ctx, PurchaseRequest{
		AccountID: first.ID, ItemID: item.ID, Quantity: 1, ContentIndex: 0,
	})
	if err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}
	if receipt.Delivered != "KEY-A" {
		t.Fatalf("expected KEY-A delivered, got %q", receipt.Delivered)
	}

	got, _ := store.GetItem(ctx, item.ID)
	if len(got.ContentOptions) != 1 || got.ContentOptions[0] != "KEY-B" {
		t.Fatalf("expected pool [KEY-B], got %v", got.ContentOptions)
	}

	// The next buyer picking slot 0 gets the remaining payload.
	receipt, err = proc.Purchase(ctx, PurchaseRequest{
		AccountID: second.ID, ItemID: item.ID, Quantity: 1, ContentIndex: 0,
	})
	if err != nil {
		t.Fatalf("second purchase failed: %v", err)
	}
	if receipt.Delivered != "KEY-B" {
		t.Fatalf("expected KEY-B delivered, got %q", receipt.Delivered)
	}

	dms := rec.CallsTo("DirectMessage")
	if len(dms) != 2 {
		t.Fatalf("expected 2 DMs, got %d", len(dms))
	}
}

func TestPurchaseDMFailureIsWarningNotRollback(t *testing.T) {
	proc, store, rec := newTestProcessor(t)
	ctx := context.Background()
	rec.FailDM = errors.New("user has DMs disabled")

	item := seedItem(t, store, model.InsertItem{
		Name: "secret", Price: 50, Stock: 5, IsActive: true, Content: "the secret",
	})
	account := seedAccount(t, store, "u1", 100)

	receipt, err := proc.Purchase(ctx, PurchaseRequest{
		AccountID: account.ID, ItemID: item.ID, Quantity: 1, ContentIndex: -1,
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if len(receipt.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", receipt.Warnings)
	}
	if !strings.Contains(receipt.Notice(), "contact an admin") {
		t.Fatalf("unexpected notice: %q", receipt.Notice())
	}

	// The sale stands: money moved, ledger written.
	gotAccount, _ := store.GetAccount(ctx, account.ID)
	if gotAccount.Balance != 50 {
		t.Fatalf("expected balance 50, got %d", gotAccount.Balance)
	}
	txs, _ := store.ListTransactions(ctx)
	if len(txs) != 1 {
		t.Fatalf("expected one transaction, got %d", len(txs))
	}
}

func TestPurchaseRoleGrantFailureIsWarning(t *testing.T) {
	proc, store, rec := newTestProcessor(t)
	ctx := context.Background()
	rec.FailGrantRole = errors.New("missing permission")

	item := seedItem(t, store, model.InsertItem{
		Name: "vip", Price: 10, Stock: 0, InfiniteStock: true, IsActive: true, RoleID: "role-1",
	})
	account := seedAccount(t, store, "u1", 100)

	receipt, err := proc.Purchase(ctx, PurchaseRequest{
		AccountID: account.ID, ItemID: item.ID, Quantity: 1, ContentIndex: -1, GuildID: "g1",
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if len(receipt.Warnings) != 1 || !strings.Contains(receipt.Warnings[0], "role grant failed") {
		t.Fatalf("expected role grant warning, got %v", receipt.Warnings)
	}
}

func TestEnsureAccountCreatesOnce(t *testing.T) {
	proc, store, _ := newTestProcessor(t)
	ctx := context.Background()

	first, err := proc.EnsureAccount(ctx, "u1", "alice", 25)
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if first.Balance != 25 {
		t.Fatalf("expected starting balance 25, got %d", first.Balance)
	}

	again, err := proc.EnsureAccount(ctx, "u1", "alice", 25)
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected same account, got %d and %d", first.ID, again.ID)
	}

	accounts, _ := store.ListAccounts(ctx)
	if len(accounts) != 1 {
		t.Fatalf("expected one account, got %d", len(accounts))
	}
}

// missOnceStore makes the first platform-id lookup report ErrNotFound,
// reproducing the window where two first interactions race the create.
type missOnceStore struct {
	repository.Store
	mu     sync.Mutex
	missed bool
}

func (s *missOnceStore) GetAccountByPlatformID(ctx context.Context, platformID string) (*model.Account, error) {
	s.mu.Lock()
	first := !s.missed
	s.missed = true
	s.mu.Unlock()
	if first {
		return nil, repository.ErrNotFound
	}
	return s.Store.GetAccountByPlatformID(ctx, platformID)
}

func TestEnsureAccountLostCreateRaceFindsWinner(t *testing.T) {
	mem := repository.NewMemoryStore()
	store := &missOnceStore{Store: mem}
	rec := platform.NewRecorder()
	proc := NewProcessor(store, NewFulfiller(store, rec))
	ctx := context.Background()

	winner := seedAccount(t, mem, "u1", 40)

	// The lookup misses, the create hits the unique platform id, and
	// the re-read must surface the winner's row instead of the error.
	got, err := proc.EnsureAccount(ctx, "u1", "alice", 25)
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if got.ID != winner.ID || got.Balance != 40 {
		t.Fatalf("expected winner's account, got %+v", got)
	}

	accounts, _ := mem.ListAccounts(ctx)
	if len(accounts) != 1 {
		t.Fatalf("expected one account, got %d", len(accounts))
	}
}
