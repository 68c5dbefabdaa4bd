package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyContent     = errors.New("content cannot be empty")
	ErrInvalidLineRange = errors.New("start line must be >= 1 and <= end line")
	ErrInvalidOffsets   = errors.New("span offsets must satisfy 0 <= start < end")
	ErrMissingHash      = errors.New("content hash must be computed")
	ErrMissingPath      = errors.New("path is required")
)
