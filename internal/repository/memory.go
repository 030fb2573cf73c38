package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vendhub-bot/internal/model"
)

// MemoryStore is an in-memory implementation of Store. Use this for
// development/testing or single-instance deployments where losing state
// on restart is acceptable.
type MemoryStore struct {
	mu sync.RWMutex

	items        map[int64]*model.Item
	accounts     map[int64]*model.Account
	transactions []model.Transaction
	settings     map[string]*model.GuildSettings

	itemSeq     int64
	accountSeq  int64
	txSeq       int64
	settingsSeq int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[int64]*model.Item),
		accounts: make(map[int64]*model.Account),
		settings: make(map[string]*model.GuildSettings),
	}
}

func copyItem(i *model.Item) *model.Item {
	out := *i
	out.ContentOptions = append([]string(nil), i.ContentOptions...)
	out.Options = append([]string(nil), i.Options...)
	return &out
}

// CreateItem adds a new catalog item and assigns its id.
func (s *MemoryStore) CreateItem(ctx context.Context, in model.InsertItem) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.itemSeq++
	item := &model.Item{
		ID:             s.itemSeq,
		Name:           in.Name,
		Description:    in.Description,
		Price:          in.Price,
		Stock:          in.Stock,
		InfiniteStock:  in.InfiniteStock,
		IsActive:       in.IsActive,
		RoleID:         in.RoleID,
		Content:        in.Content,
		ContentOptions: append([]string(nil), in.ContentOptions...),
		Options:        append([]string(nil), in.Options...),
		CreatedAt:      time.Now().UTC(),
	}
	s.items[item.ID] = item
	return copyItem(item), nil
}

// GetItem retrieves a catalog item by id.
func (s *MemoryStore) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyItem(item), nil
}

// ListItems returns all catalog items ordered by id.
func (s *MemoryStore) ListItems(ctx context.Context) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *copyItem(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateItem applies a partial update to an item.
func (s *MemoryStore) UpdateItem(ctx context.Context, id int64, upd model.ItemUpdate) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	upd.Apply(item)
	return copyItem(item), nil
}

// DeleteItem removes an item from the catalog.
func (s *MemoryStore) DeleteItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// AdjustStock changes stock by delta. The mutex makes the non-negative
// check and the write one atomic step, so two concurrent purchases of
// the last unit cannot both succeed.
func (s *MemoryStore) AdjustStock(ctx context.Context, itemID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return ErrNotFound
	}
	if item.Stock+delta < 0 {
		return ErrInsufficientStock
	}
	item.Stock += delta
	return nil
}

// ConsumeContentOption removes and returns the payload at index.
func (s *MemoryStore) ConsumeContentOption(ctx context.Context, itemID int64, index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return "", ErrNotFound
	}
	if index < 0 || index >= len(item.ContentOptions) {
		return "", ErrNoContentOption
	}
	payload := item.ContentOptions[index]
	item.ContentOptions = append(item.ContentOptions[:index], item.ContentOptions[index+1:]...)
	return payload, nil
}

// CreateAccount adds a new user account.
func (s *MemoryStore) CreateAccount(ctx context.Context, platformID, username string, balance int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Platform ids are unique, matching the SQL schemas.
	for _, existing := range s.accounts {
		if existing.PlatformID == platformID {
			return nil, fmt.Errorf("account for platform id %s already exists", platformID)
		}
	}

	s.accountSeq++
	account := &model.Account{
		ID:         s.accountSeq,
		PlatformID: platformID,
		Username:   username,
		Balance:    balance,
		CreatedAt:  time.Now().UTC(),
	}
	s.accounts[account.ID] = account
	out := *account
	return &out, nil
}

// GetAccount retrieves an account by id.
func (s *MemoryStore) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *account
	return &out, nil
}

// GetAccountByPlatformID retrieves an account by its platform user id.
func (s *MemoryStore) GetAccountByPlatformID(ctx context.Context, platformID string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if account.PlatformID == platformID {
			out := *account
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// ListAccounts returns all accounts ordered by id.
func (s *MemoryStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		out = append(out, *account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AdjustBalance changes the balance by delta, atomically with the
// non-negative check.
func (s *MemoryStore) AdjustBalance(ctx context.Context, accountID, delta int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	if account.Balance+delta < 0 {
		return nil, ErrInsufficientBalance
	}
	account.Balance += delta
	out := *account
	return &out, nil
}

// SetBalance overwrites an account balance.
func (s *MemoryStore) SetBalance(ctx context.Context, accountID, balance int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	account.Balance = balance
	out := *account
	return &out, nil
}

// ResetAllBalances sets every account balance to zero and returns the
// number of accounts touched.
func (s *MemoryStore) ResetAllBalances(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		account.Balance = 0
	}
	return int64(len(s.accounts)), nil
}

// AppendTransaction appends a ledger record.
func (s *MemoryStore) AppendTransaction(ctx context.Context, in model.InsertTransaction) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txSeq++
	tx := model.Transaction{
		ID:         s.txSeq,
		AccountID:  in.AccountID,
		ItemID:     in.ItemID,
		Quantity:   in.Quantity,
		TotalPrice: in.TotalPrice,
		CreatedAt:  time.Now().UTC(),
	}
	s.transactions = append(s.transactions, tx)
	return &tx, nil
}

// ListTransactions returns the full ledger in append order.
func (s *MemoryStore) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.Transaction(nil), s.transactions...), nil
}

// TransactionsByAccount returns the ledger records for one account.
func (s *MemoryStore) TransactionsByAccount(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Transaction
	for _, tx := range s.transactions {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	return out, nil
}

// GetGuildSettings retrieves settings for a guild.
func (s *MemoryStore) GetGuildSettings(ctx context.Context, guildID string) (*model.GuildSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[guildID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *settings
	return &out, nil
}

// UpsertGuildSettings creates or replaces a guild's settings.
func (s *MemoryStore) UpsertGuildSettings(ctx context.Context, settings model.GuildSettings) (*model.GuildSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.settings[settings.GuildID]
	if ok {
		settings.ID = existing.ID
	} else {
		s.settingsSeq++
		settings.ID = s.settingsSeq
	}
	s.settings[settings.GuildID] = &settings
	out := settings
	return &out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
