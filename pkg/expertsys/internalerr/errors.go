package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// Knowledge base construction faults
	ErrDuplicateRuleID   = errors.New("duplicate rule id")
	ErrInvalidConfidence = errors.New("confidence outside [0,1]")
	ErrEmptyClause       = errors.New("empty condition or conclusion list")
)
