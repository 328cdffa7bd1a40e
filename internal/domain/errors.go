package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidOrder     = errors.New("invalid order parameters")
	ErrInvalidCatalogue = errors.New("invalid catalogue")
	ErrEmptyCatalogue   = errors.New("empty catalogue")
	ErrLockHeld         = errors.New("lock already held")
)
