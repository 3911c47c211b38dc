package graph

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrNodeNotFound   = errors.New("node not found")
	ErrGroupNotFound  = errors.New("group not found")
	ErrDuplicateNode  = errors.New("node already exists")
	ErrDuplicateGroup = errors.New("group already exists")
	ErrDuplicateEdge  = errors.New("edge already exists")
	ErrSelfLoop       = errors.New("self loop not allowed")
	ErrTagInUse       = errors.New("attack tag already present in graph")
	ErrTagNotFound    = errors.New("attack tag not present in graph")
	ErrAttackActive   = errors.New("synthetic attack already attached")
	ErrStaleRanks     = errors.New("ranks not reset since last pass")
	ErrNotRestored    = errors.New("graph differs from checkpoint")
)

// GraphError provides structured error information for graph operations.
type GraphError struct {
	Op     string // Operation that failed (e.g., "AddEdge", "AttachSyntheticAttack")
	Entity string // Entity type (e.g., "node", "group", "edge")
	Key    string // Entity key (if applicable)
	Cause  error  // Underlying error
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s %q: %v", e.Op, e.Entity, e.Key, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *GraphError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error or its cause.
func (e *GraphError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

func nodeError(op, key string, cause error) error {
	return &GraphError{Op: op, Entity: "node", Key: key, Cause: cause}
}

func groupError(op, key string, cause error) error {
	return &GraphError{Op: op, Entity: "group", Key: key, Cause: cause}
}

func edgeError(op, key string, cause error) error {
	return &GraphError{Op: op, Entity: "edge", Key: key, Cause: cause}
}
