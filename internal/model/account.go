package model

import "time"

// Account holds the coin balance for a single chat platform user.
// Accounts are created lazily on first interaction with the bot.
type Account struct {
	ID         int64     `json:"id"`
	PlatformID string    `json:"platform_id"`
	Username   string    `json:"username"`
	Balance    int64     `json:"balance"`
	CreatedAt  time.Time `json:"created_at"`
}

// CanAfford reports whether the account balance covers the amount.
func (a *Account) CanAfford(amount int64) bool {
	return a.Balance >= amount
}
