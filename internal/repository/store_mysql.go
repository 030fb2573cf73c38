package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"vendhub-bot/internal/model"
)

// MySQLStore implements Store using MySQL. Concurrency control is left
// to the database: the balance and stock adjustments are conditional
// UPDATEs, so the non-negative check and the write are one atomic
// statement per row.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a new MySQL-backed store on an open connection.
func NewMySQLStore(db *sql.DB) (*MySQLStore, error) {
	if err := createMySQLTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	log.Printf("[MySQLStore] Initialized")
	return &MySQLStore{db: db}, nil
}

func createMySQLTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			price BIGINT NOT NULL DEFAULT 0,
			stock BIGINT NOT NULL DEFAULT 0,
			infinite_stock TINYINT(1) NOT NULL DEFAULT 0,
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			role_id VARCHAR(64) NOT NULL DEFAULT '',
			content TEXT,
			content_options TEXT,
			options TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			platform_id VARCHAR(64) NOT NULL UNIQUE,
			username VARCHAR(255) NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			account_id BIGINT NOT NULL,
			item_id BIGINT NOT NULL,
			quantity BIGINT NOT NULL DEFAULT 1,
			total_price BIGINT NOT NULL,
			created_at DATETIME NOT NULL,
			INDEX idx_tx_account (account_id)
		)`,
		`CREATE TABLE IF NOT EXISTS guild_settings (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			guild_id VARCHAR(64) NOT NULL UNIQUE,
			currency_name VARCHAR(64) NOT NULL,
			prefix VARCHAR(64) NOT NULL,
			is_active TINYINT(1) NOT NULL DEFAULT 1
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const mysqlItemColumns = `id, name, description, price, stock, infinite_stock, is_active, role_id, COALESCE(content, ''), COALESCE(content_options, '[]'), COALESCE(options, '[]'), created_at`

func scanMySQLItem(row interface{ Scan(...any) error }) (*model.Item, error) {
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
func (s *MySQLStore) CreateItem(ctx context.Context, in model.InsertItem) (*model.Item, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO items (name, description, price, stock, infinite_stock, is_active, role_id, content, content_options, options, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Name, in.Description, in.Price, in.Stock, in.InfiniteStock, in.IsActive,
		in.RoleID, in.Content, encodeStrings(in.ContentOptions), encodeStrings(in.Options), now)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetItem(ctx, id)
}

// GetItem retrieves a catalog item by id.
func (s *MySQLStore) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mysqlItemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanMySQLItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListItems returns all catalog items ordered by id.
func (s *MySQLStore) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+mysqlItemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanMySQLItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem applies a partial update inside a transaction with a row lock.
func (s *MySQLStore) UpdateItem(ctx context.Context, id int64, upd model.ItemUpdate) (*model.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+mysqlItemColumns+` FROM items WHERE id = ? FOR UPDATE`, id)
	item, err := scanMySQLItem(row)
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
func (s *MySQLStore) DeleteItem(ctx context.Context, id int64) error {
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

// AdjustStock changes stock by delta via a conditional UPDATE.
func (s *MySQLStore) AdjustStock(ctx context.Context, itemID, delta int64) error {
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

// ConsumeContentOption removes and returns the payload at index using a
// SELECT ... FOR UPDATE row lock.
func (s *MySQLStore) ConsumeContentOption(ctx context.Context, itemID int64, index int) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(content_options, '[]') FROM items WHERE id = ? FOR UPDATE`, itemID).Scan(&raw)
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
func (s *MySQLStore) CreateAccount(ctx context.Context, platformID, username string, balance int64) (*model.Account, error) {
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

func (s *MySQLStore) scanAccount(ctx context.Context, query string, args ...any) (*model.Account, error) {
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
func (s *MySQLStore) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return s.scanAccount(ctx, `SELECT id, platform_id, username, balance, created_at FROM accounts WHERE id = ?`, id)
}

// GetAccountByPlatformID retrieves an account by its platform user id.
func (s *MySQLStore) GetAccountByPlatformID(ctx context.Context, platformID string) (*model.Account, error) {
	return s.scanAccount(ctx, `SELECT id, platform_id, username, balance, created_at FROM accounts WHERE platform_id = ?`, platformID)
}

// ListAccounts returns all accounts ordered by id.
func (s *MySQLStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
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
func (s *MySQLStore) AdjustBalance(ctx context.Context, accountID, delta int64) (*model.Account, error) {
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
	return s.GetAccount(ctx, accountID)
}

// SetBalance overwrites an account balance.
func (s *MySQLStore) SetBalance(ctx context.Context, accountID, balance int64) (*model.Account, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`, balance, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to set balance: %w", err)
	}
	return s.GetAccount(ctx, accountID)
}

// ResetAllBalances sets every account balance to zero.
func (s *MySQLStore) ResetAllBalances(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET balance = 0 WHERE balance <> 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset balances: %w", err)
	}
	return res.RowsAffected()
}

// AppendTransaction appends a ledger record.
func (s *MySQLStore) AppendTransaction(ctx context.Context, in model.InsertTransaction) (*model.Transaction, error) {
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

func (s *MySQLStore) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
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
func (s *MySQLStore) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, `SELECT id, account_id, item_id, quantity, total_price, created_at FROM transactions ORDER BY id`)
}

// TransactionsByAccount returns the ledger records for one account.
func (s *MySQLStore) TransactionsByAccount(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, `SELECT id, account_id, item_id, quantity, total_price, created_at FROM transactions WHERE account_id = ? ORDER BY id`, accountID)
}

// GetGuildSettings retrieves settings for a guild.
func (s *MySQLStore) GetGuildSettings(ctx context.Context, guildID string) (*model.GuildSettings, error) {
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
func (s *MySQLStore) UpsertGuildSettings(ctx context.Context, settings model.GuildSettings) (*model.GuildSettings, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, currency_name, prefix, is_active)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			currency_name = VALUES(currency_name),
			prefix = VALUES(prefix),
			is_active = VALUES(is_active)`,
		settings.GuildID, settings.CurrencyName, settings.Prefix, settings.IsActive)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert guild settings: %w", err)
	}
	return s.GetGuildSettings(ctx, settings.GuildID)
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// Ensure MySQLStore implements Store
var _ Store = (*MySQLStore)(nil)
