package repository

import (
	"context"
	"errors"

	"vendhub-bot/internal/model"
)

// Guard errors reported by the atomic mutation primitives. AdjustBalance
// and AdjustStock refuse to cross zero and report these instead of
// writing, so callers never observe a negative balance or stock.
var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrNoContentOption     = errors.New("content option not available")
)

// ItemStore defines catalog data access.
type ItemStore interface {
	CreateItem(ctx context.Context, in model.InsertItem) (*model.Item, error)
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	UpdateItem(ctx context.Context, id int64, upd model.ItemUpdate) (*model.Item, error)
	DeleteItem(ctx context.Context, id int64) error

	// AdjustStock changes stock by delta, refusing with
	// ErrInsufficientStock if the result would be negative. The check
	// and the write are a single atomic step.
	AdjustStock(ctx context.Context, itemID, delta int64) error

	// ConsumeContentOption removes and returns the one-shot payload at
	// index from the item's content option pool.
	ConsumeContentOption(ctx context.Context, itemID int64, index int) (string, error)
}

// AccountStore defines user account data access.
type AccountStore interface {
	CreateAccount(ctx context.Context, platformID, username string, balance int64) (*model.Account, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	GetAccountByPlatformID(ctx context.Context, platformID string) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)

	// AdjustBalance changes the balance by delta, refusing with
	// ErrInsufficientBalance if the result would be negative. The check
	// and the write are a single atomic step. Returns the account after
	// the adjustment.
	AdjustBalance(ctx context.Context, accountID, delta int64) (*model.Account, error)

	SetBalance(ctx context.Context, accountID, balance int64) (*model.Account, error)
	ResetAllBalances(ctx context.Context) (int64, error)
}

// TransactionStore defines access to the append-only purchase ledger.
type TransactionStore interface {
	AppendTransaction(ctx context.Context, in model.InsertTransaction) (*model.Transaction, error)
	ListTransactions(ctx context.Context) ([]model.Transaction, error)
	TransactionsByAccount(ctx context.Context, accountID int64) ([]model.Transaction, error)
}

// SettingsStore defines per-guild settings access.
type SettingsStore interface {
	GetGuildSettings(ctx context.Context, guildID string) (*model.GuildSettings, error)
	UpsertGuildSettings(ctx context.Context, settings model.GuildSettings) (*model.GuildSettings, error)
}

// Store is the full persistence contract for the vending machine.
type Store interface {
	ItemStore
	AccountStore
	TransactionStore
	SettingsStore

	// Close closes the underlying connection.
	Close() error
}
