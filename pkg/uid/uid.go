// Package uid issues the correlation ids stamped on incoming admin
// requests and outgoing gateway calls.
package uid

import "github.com/google/uuid"

// New generates a new correlation id.
func New() string {
	return uuid.New().String()
}

// IsValid checks if a string is a valid correlation id.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
