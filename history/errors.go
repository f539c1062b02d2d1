package history

import "errors"

// Sentinel errors for store operations.
var (
	ErrLoadFailed = errors.New("history load failed")
	ErrSaveFailed = errors.New("history save failed")
)
