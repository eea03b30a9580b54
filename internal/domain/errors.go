package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrNoPriceAvailable  = errors.New("no native price available")
	ErrTokenListTooLarge = errors.New("token list exceeds configured maximum")
	ErrEmptyTokenList    = errors.New("token list is empty")
	ErrPoolUnavailable   = errors.New("pool metadata could not be resolved")
	ErrInvalidNotice     = errors.New("malformed order notice")
)
