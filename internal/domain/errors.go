package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrEmptyBatch             = errors.New("empty batch")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrJobNotCompleted        = errors.New("job not completed")
	ErrUnknownTier            = errors.New("unknown purchase tier")
	ErrIdentityOperation      = errors.New("identity operation failed")
)
