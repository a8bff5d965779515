package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a referenced revision or checkpoint does not exist,
	// typically because pruning dropped it.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a reference matched more than one revision.
	ErrConflict = errors.New("ambiguous revision reference")

	// ErrDisabled means versioning is administratively off; the vault is in
	// no-op mode.
	ErrDisabled = errors.New("versioning is disabled")

	// ErrCheckpointOpen means a checkpoint is already open; the caller must
	// end it before beginning another.
	ErrCheckpointOpen = errors.New("a checkpoint is already open")
)

// IntegrityError reports that post-operation verification found the working
// tree and the head snapshot out of agreement. It is never swallowed: pruning
// surfaces it to the caller and logs it at error level.
type IntegrityError struct {
	Op     string
	Detail string
	Err    error
}

func (e *IntegrityError) Error() string {
	msg := fmt.Sprintf("integrity violation during %s: %s", e.Op, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IntegrityError) Unwrap() error { return e.Err }
