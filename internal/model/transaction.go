package model

import "time"

// Transaction is an immutable record of a completed purchase. The total
// price is frozen at purchase time; later catalog edits never change it.
type Transaction struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"account_id"`
	ItemID     int64     `json:"item_id"`
	Quantity   int64     `json:"quantity"`
	TotalPrice int64     `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
}

// InsertTransaction carries the fields for appending a ledger record.
type InsertTransaction struct {
	AccountID  int64 `json:"account_id"`
	ItemID     int64 `json:"item_id"`
	Quantity   int64 `json:"quantity"`
	TotalPrice int64 `json:"total_price"`
}
