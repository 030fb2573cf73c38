package service

import "errors"

// Purchase errors raised before any state is touched. The storage-level
// guards (repository.ErrNotFound, repository.ErrInsufficientBalance,
// repository.ErrInsufficientStock) complete the taxonomy; callers match
// all of them with errors.Is.
var (
	// ErrItemInactive indicates the item exists but is not for sale.
	ErrItemInactive = errors.New("item is not for sale")

	// ErrInvalidQuantity indicates a quantity below 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrEmptyCart indicates a checkout against an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
)
