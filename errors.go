package ledgercache

import (
	"errors"
	"fmt"
)

var (
	// ErrReservedKey is reported when a caller uses ReservedKey for data.
	ErrReservedKey = errors.New("ledgercache: key " + ReservedKey + " is reserved")

	// ErrClosed is reported for operations on a closed adapter.
	ErrClosed = errors.New("ledgercache: adapter closed")

	// ErrRejected is reported when the backend refused a write without an error.
	ErrRejected = errors.New("ledgercache: backend rejected write")
)

// OpError describes one failed backend operation. Adapters convert it to a
// false/absent result and hand it to Logger and Hooks.
type OpError struct {
	Op      string
	Key     string
	Backend string
	Err     error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
