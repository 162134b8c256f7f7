package history

import (
	"errors"
	"fmt"
)

// ErrStorageUnavailable matches every StorageError via errors.Is.
var ErrStorageUnavailable = errors.New("history storage unavailable")

// StorageError reports that the history file cannot be opened or written.
// Losing history is never acceptable, so callers treat it as fatal.
type StorageError struct {
	Op   string // "open", "append", "sync" or "close"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("history %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStorageUnavailable.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}
