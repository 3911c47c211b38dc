// Package calibrate derives the adaptive sybil-rejection border by
// simulating a minimal attack against the current graph's most trusted
// identity. The border is the best raw rank a trivial two-node sybil fork
// can extract from the best available attachment point, so it scales with
// the graph's actual trust distribution instead of being a tuned constant.
package calibrate

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-sybilrank/pkg/graph"
	"github.com/dd0wney/cluso-sybilrank/pkg/logging"
	"github.com/dd0wney/cluso-sybilrank/pkg/ranker"
)

// Tag is the group identifier used for the synthetic calibration attack.
// It must not collide with any real group key.
const Tag = "calibration_sybil"

// Common sentinel errors
var (
	ErrEmptyGraph = errors.New("cannot calibrate an empty graph")
)

// CalibrationError reports a failure of the calibration procedure itself,
// as opposed to an oracle failure, which is propagated verbatim.
type CalibrationError struct {
	Step  string // "select", "attach", "detach", "restore"
	Cause error
}

// Error implements the error interface.
func (e *CalibrationError) Error() string {
	return fmt.Sprintf("calibration %s: %v", e.Step, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *CalibrationError) Unwrap() error {
	return e.Cause
}

// Calibrator runs the minimal-sybil-attack simulation.
type Calibrator struct {
	oracle ranker.Oracle
	opts   ranker.Options
	logger logging.Logger
}

// New creates a calibrator around the given oracle. The threshold border in
// opts is ignored; calibration passes always run unthresholded.
func New(oracle ranker.Oracle, opts ranker.Options, logger logging.Logger) *Calibrator {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Calibrator{oracle: oracle, opts: opts, logger: logger}
}

// ComputeBorder measures the maximum raw rank a minimal two-node sybil
// attack can obtain against the graph's highest-ranked identity. The graph
// is returned to a state structurally identical to its input state: node
// set, edge set and every group-membership set are verified against a
// checkpoint taken before the simulation, and any mismatch is a
// CalibrationError.
func (c *Calibrator) ComputeBorder(g *graph.Graph) (float64, error) {
	if g.NodeCount() == 0 {
		return 0, &CalibrationError{Step: "select", Cause: ErrEmptyGraph}
	}

	checkpoint := g.Checkpoint()
	passOpts := c.opts
	passOpts.ThresholdBorder = 0

	g.ResetRanks()
	if _, err := c.oracle.Rank(g, passOpts); err != nil {
		return 0, err
	}
	attacker := selectAttacker(g)
	c.logger.Debug("calibration attacker selected",
		logging.NodeKey(attacker.Key),
		logging.Float64("baseline_rank", attacker.Rank))

	border, err := c.attackPass(g, attacker.Key, passOpts)

	// The graph must be observably identical to its pre-calibration state
	// before the real scoring pass may run, even when the attack pass
	// failed part way.
	g.ResetRanks()
	if err != nil {
		return 0, err
	}
	if rerr := g.VerifyRestored(checkpoint); rerr != nil {
		return 0, &CalibrationError{Step: "restore", Cause: rerr}
	}

	c.logger.Info("border calibrated", logging.Border(border))
	return border, nil
}

// attackPass injects the synthetic pair, ranks the augmented graph and
// reads the higher of the two sybils' raw ranks. The pair is detached on
// every exit path.
func (c *Calibrator) attackPass(g *graph.Graph, attackerKey string, passOpts ranker.Options) (border float64, err error) {
	if aerr := g.AttachSyntheticAttack(attackerKey, Tag); aerr != nil {
		return 0, &CalibrationError{Step: "attach", Cause: aerr}
	}
	defer func() {
		if derr := g.DetachSyntheticAttack(Tag); derr != nil && err == nil {
			err = &CalibrationError{Step: "detach", Cause: derr}
		}
	}()

	g.ResetRanks()
	if _, rerr := c.oracle.Rank(g, passOpts); rerr != nil {
		return 0, rerr
	}

	for _, sybil := range g.SybilNodes() {
		if sybil.RawRank > border {
			border = sybil.RawRank
		}
	}
	return border, nil
}

// selectAttacker picks the node with the maximum rank. Ties break toward
// the lowest key: Nodes() iterates in sorted key order and only a strictly
// greater rank displaces the current pick.
func selectAttacker(g *graph.Graph) *graph.Node {
	var best *graph.Node
	for _, n := range g.Nodes() {
		if best == nil || n.Rank > best.Rank {
			best = n
		}
	}
	return best
}
