package model

import "time"

// AdminSession contains the data stored with an admin dashboard
// session token.
type AdminSession struct {
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
