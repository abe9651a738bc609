package models

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrMarketNotActive     = errors.New("market is not open for betting")
	ErrMarketNotResolved   = errors.New("market is not resolved")
	ErrInvalidOutcome      = errors.New("outcome must be YES or NO")
	ErrInvalidBet          = errors.New("invalid bet")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMalformedSpec       = errors.New("malformed verification spec")
	ErrUnknownVerifyKind   = errors.New("unknown verification kind")
	ErrInvalidDraft        = errors.New("invalid market draft")
)
