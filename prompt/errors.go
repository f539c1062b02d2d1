package prompt

import "errors"

// Sentinel errors for store operations.
var (
	ErrNotFound   = errors.New("prompt not found")
	ErrSaveFailed = errors.New("prompt save failed")
)
