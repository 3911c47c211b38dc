package pipeline

import (
	"fmt"
)

// PersistFailure records one entity whose score write failed.
type PersistFailure struct {
	Entity string // "node" or "group"
	Key    string
	Err    error
}

// PersistenceError reports a partially failed persistence step. Writes that
// succeeded stay committed; the failures are listed so the caller can see
// exactly which entities were not updated.
type PersistenceError struct {
	Succeeded int
	Failures  []PersistFailure
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %d write(s) failed, %d succeeded",
		len(e.Failures), e.Succeeded)
}

// InvalidTransitionError reports a pipeline driven out of order.
type InvalidTransitionError struct {
	From State
	To   State
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid pipeline transition %s -> %s", e.From, e.To)
}
