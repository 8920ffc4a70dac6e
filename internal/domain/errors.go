package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrLockHeld       = errors.New("lock already held")
	ErrQuotaExhausted = errors.New("trade quota exhausted")
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrUnknownVenue   = errors.New("unknown venue")
	ErrNotConfigured  = errors.New("not configured")
)
