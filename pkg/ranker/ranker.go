package ranker

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-sybilrank/pkg/graph"
)

// Common sentinel errors
var (
	ErrNumericInstability = errors.New("rank computation produced a non-finite value")
	ErrInvalidOptions     = errors.New("invalid rank options")
)

// Options configures a ranking pass.
type Options struct {
	// Iterations fixes the number of propagation rounds. Zero selects
	// ceil(log2(n)) automatically; short walks are what bounds how far
	// trust can leak into a sybil region.
	Iterations int

	// MaxIterations caps the automatic iteration count.
	MaxIterations int

	// Tolerance stops the propagation early once the largest per-node
	// change falls below it.
	Tolerance float64

	// ThresholdBorder suppresses raw ranks at or below this value when
	// normalizing. Zero means no suppression. This is the calibrated
	// border produced by the calibrate package.
	ThresholdBorder float64
}

// DefaultOptions returns the default ranking configuration.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 100,
		Tolerance:     1e-9,
	}
}

// Result reports what a ranking pass did.
type Result struct {
	Iterations   int  // Propagation rounds performed on the node graph
	Converged    bool // Whether the node pass converged before the iteration limit
	NodesRanked  int
	GroupsRanked int
}

// Oracle ranks a graph in place: it populates Rank/RawRank on every node and
// Rank/RawRank/Degree on every group. Implementations must reject a graph
// whose ranks were not reset since the previous pass, and must support being
// invoked repeatedly on the same graph across resets.
type Oracle interface {
	Rank(g *graph.Graph, opts Options) (*Result, error)
}

// RankError wraps a failure inside a ranking pass with the stage it
// occurred in.
type RankError struct {
	Stage string // "nodes" or "groups"
	Cause error
}

// Error implements the error interface.
func (e *RankError) Error() string {
	return fmt.Sprintf("rank %s: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RankError) Unwrap() error {
	return e.Cause
}
