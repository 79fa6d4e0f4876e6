package ledger

import "errors"

var (
	ErrInvalidQuantity    = errors.New("quantity must be a positive whole number")
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrPositionNotFound   = errors.New("stock not found in portfolio")

	// ErrPersistence wraps any failure of the backing store. The in-memory
	// portfolio that produced the failed save is not rolled back.
	ErrPersistence = errors.New("failed to persist portfolio")

	// ErrStaleVersion is returned by a store when the portfolio was saved by
	// someone else since it was loaded.
	ErrStaleVersion = errors.New("portfolio was modified concurrently")
)
