package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"vendhub-bot/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore implements Store using SQLite. Thread-safe with WAL mode
// for high-concurrency reads; writes are serialized through the single
// connection plus a mutex, which also makes the balance and stock
// adjustments atomic with their non-negative checks.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed store.
// dbPath is the path to the database file (e.g., "./data/vendhub.db").
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSQLiteTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price INTEGER NOT NULL DEFAULT 0,
		stock INTEGER NOT NULL DEFAULT 0,
		infinite_stock INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		role_id TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		content_options TEXT NOT NULL DEFAULT '[]',
		options TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		platform_id TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		total_price INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS guild_settings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id TEXT NOT NULL UNIQUE,
		currency_name TEXT NOT NULL,
		prefix TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_platform ON accounts(platform_id);
	CREATE INDEX IF NOT EXISTS idx_tx_account ON transactions(account_id);
	`
	_, err := db.Exec(query)
	return err
}

func encodeStrings(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(ss)
	return string(data)
}

func decodeStrings(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(raw), &ss); err != nil {
		return nil
	}
	return ss
}

const sqliteItemColumns = `id, name, description, price, stock, infinite_stock, is_active, role_id, content, content_options, options, created_at`

func scanSQLiteItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	var item model.Item
	var contentOptions, options string
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Price, &item.Stock,
		&item.InfiniteStock, &item.IsActive, &item.RoleID, &item.Content,
		&contentOptions, &options, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	item.ContentOptions = decodeStrings(contentOptions)
	item.Options = decodeStrings(options)
	return &item, nil
}

// CreateItem adds a new catalog item.
func (s *SQLiteStore) CreateItem(ctx context.Context, in model.InsertItem) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO items (name, description, price, stock, infinite_stock, is_active, role_id, content, content_options, options, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, query, in.Name, in.Description, in.Price, in.Stock,
		in.InfiniteStock, in.IsActive, in.RoleID, in.Content,
		encodeStrings(in.ContentOptions), encodeStrings(in.Options), now)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &model.Item{
		ID: id, Name: in.Name, Description: in.Description, Price: in.Price,
		Stock: in.Stock, InfiniteStock: in.InfiniteStock, IsActive: in.IsActive,
		RoleID: in.RoleID, Content: in.Content,
		ContentOptions: append([]string(nil), in.ContentOptions...),
		Options:        append([]string(nil), in.Options...),
		CreatedAt:      now,
	}, nil
}

// GetItem retrieves a catalog item by id.
func (s *SQLiteStore) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteItemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanSQLiteItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListItems returns all catalog items ordered by id.
func (s *SQLiteStore) ListItems(ctx context.Context) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteItemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanSQLiteItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem applies a partial update inside a transaction.
func (s *SQLiteStore) UpdateItem(ctx context.Context, id int64, upd model.ItemUpdate) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+sqliteItemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanSQLiteItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	upd.Apply(item)

	_, err = tx.ExecContext(ctx, `
		UPDATE items SET name = ?, description = ?, price = ?, stock = ?, infinite_stock = ?,
			is_active = ?, role_id = ?, content = ?, content_options = ?, options = ?
		WHERE id = ?`,
		item.Name, item.Description, item.Price, item.Stock, item.InfiniteStock,
		item.IsActive, item.RoleID, item.Content,
		encodeStrings(item.ContentOptions), encodeStrings(item.Options), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return item, nil
}

// DeleteItem removes an item from the catalog.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock changes stock by delta. The conditional UPDATE makes the
// non-negative check and the write a single atomic statement.
func (s *SQLiteStore) AdjustStock(ctx context.Context, itemID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET stock = stock + ? WHERE id = ? AND stock + ? >= 0`,
		delta, itemID, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust stock: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE id = ?`, itemID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrInsufficientStock
	}
	return nil
}

// ConsumeContentOption removes and returns the payload at index.
func (s *SQLiteStore) ConsumeContentOption(ctx context.Context, itemID int64, index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT content_options FROM items WHERE id = ?`, itemID).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get content options: %w", err)
	}

	options := decodeStrings(raw)
	if index < 0 || index >= len(options) {
		return "", ErrNoContentOption
	}
	payload := options[index]
	options = append(options[:index], options[index+1:]...)

	_, err = tx.ExecContext(ctx, `UPDATE items SET content_options = ? WHERE id = ?`,
		encodeStrings(options), itemID)
	if err != nil {
		return "", fmt.Errorf("failed to consume content option: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return payload, nil
}

// CreateAccount adds a new user account.
func (s *SQLiteStore) CreateAccount(ctx context.Context, platformID, username string, balance int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (platform_id, username, balance, created_at) VALUES (?, ?, ?, ?)`,
		platformID, username, balance, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.Account{ID: id, PlatformID: platformID, Username: username, Balance: balance, CreatedAt: now}, nil
}

func (s *SQLiteStore) scanAccount(ctx context.Context, query string, args ...any) (*model.Account, error) {
	var account model.Account
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&account.ID, &account.PlatformID, &account.Username, &account.Balance, &account.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetAccount retrieves an account by id.
func (s *SQLiteStore) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanAccount(ctx, `SELECT id, platform_id, username, balance, created_at FROM accounts WHERE id = ?`, id)
}

// GetAccountByPlatformID retrieves an account by its platform user id.
func (s *SQLiteStore) GetAccountByPlatformID(ctx context.Context, platformID string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanAccount(ctx, `SELECT id, platform_id, username, balance, created_at FROM accounts WHERE platform_id = ?`, platformID)
}

// ListAccounts returns all accounts ordered by id.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, platform_id, username, balance, created_at FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.PlatformID, &a.Username, &a.Balance, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// AdjustBalance changes the balance by delta via a conditional UPDATE.
func (s *SQLiteStore) AdjustBalance(ctx context.Context, accountID, delta int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + ? WHERE id = ? AND balance + ? >= 0`,
		delta, accountID, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to adjust balance: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE id = ?`, accountID).Scan(&exists); err != nil {
			return nil, err
		}
		if exists == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrInsufficientBalance
	}
	return s.scanAccount(ctx, `SELECT id, platform_id, username, balance, created_at FROM accounts WHERE id = ?`, accountID)
}

// SetBalance overwrites an account balance.
func (s *SQLiteStore) SetBalance(ctx context.Context, accountID, balance int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`, balance, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to set balance: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.scanAccount(ctx, `SELECT id, platform_id, username, balance, created_at FROM accounts WHERE id = ?`, accountID)
}

// ResetAllBalances sets every account balance to zero.
func (s *SQLiteStore) ResetAllBalances(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET balance = 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset balances: %w", err)
	}
	return res.RowsAffected()
}

// AppendTransaction appends a ledger record.
func (s *SQLiteStore) AppendTransaction(ctx context.Context, in model.InsertTransaction) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (account_id, item_id, quantity, total_price, created_at) VALUES (?, ?, ?, ?, ?)`,
		in.AccountID, in.ItemID, in.Quantity, in.TotalPrice, now)
	if err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.Transaction{ID: id, AccountID: in.AccountID, ItemID: in.ItemID,
		Quantity: in.Quantity, TotalPrice: in.TotalPrice, CreatedAt: now}, nil
}

func (s *SQLiteStore) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.ItemID, &t.Quantity, &t.TotalPrice, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ListTransactions returns the full ledger in append order.
func (s *SQLiteStore) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryTransactions(ctx, `SELECT id, account_id, item_id, quantity, total_price, created_at FROM transactions ORDER BY id`)
}

// TransactionsByAccount returns the ledger records for one account.
func (s *SQLiteStore) TransactionsByAccount(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryTransactions(ctx, `SELECT id, account_id, item_id, quantity, total_price, created_at FROM transactions WHERE account_id = ? ORDER BY id`, accountID)
}

// GetGuildSettings retrieves settings for a guild.
func (s *SQLiteStore) GetGuildSettings(ctx context.Context, guildID string) (*model.GuildSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var gs model.GuildSettings
	err := s.db.QueryRowContext(ctx,
		`SELECT id, guild_id, currency_name, prefix, is_active FROM guild_settings WHERE guild_id = ?`, guildID).
		Scan(&gs.ID, &gs.GuildID, &gs.CurrencyName, &gs.Prefix, &gs.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get guild settings: %w", err)
	}
	return &gs, nil
}

// UpsertGuildSettings creates or replaces a guild's settings.
func (s *SQLiteStore) UpsertGuildSettings(ctx context.Context, settings model.GuildSettings) (*model.GuildSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO guild_settings (guild_id, currency_name, prefix, is_active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			currency_name = excluded.currency_name,
			prefix = excluded.prefix,
			is_active = excluded.is_active`

	_, err := s.db.ExecContext(ctx, query, settings.GuildID, settings.CurrencyName, settings.Prefix, settings.IsActive)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert guild settings: %w", err)
	}

	var gs model.GuildSettings
	err = s.db.QueryRowContext(ctx,
		`SELECT id, guild_id, currency_name, prefix, is_active FROM guild_settings WHERE guild_id = ?`, settings.GuildID).
		Scan(&gs.ID, &gs.GuildID, &gs.CurrencyName, &gs.Prefix, &gs.IsActive)
	if err != nil {
		return nil, err
	}
	return &gs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
