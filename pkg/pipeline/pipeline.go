// Package pipeline orchestrates a scoring run: load snapshot, calibrate the
// sybil border, rank with the calibrated threshold, persist, render.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-sybilrank/pkg/calibrate"
	"github.com/dd0wney/cluso-sybilrank/pkg/graph"
	"github.com/dd0wney/cluso-sybilrank/pkg/logging"
	"github.com/dd0wney/cluso-sybilrank/pkg/metrics"
	"github.com/dd0wney/cluso-sybilrank/pkg/ranker"
	"github.com/dd0wney/cluso-sybilrank/pkg/store"
)

// State is the pipeline's position in a run. Transitions are strictly
// ordered; Calibrating always returns the graph to a state observably equal
// to Loaded before Ranking may begin.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateCalibrating
	StateCalibrated
	StateRanking
	StateRanked
	StatePersisted
)

// String returns the string representation of a pipeline state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "Unloaded"
	case StateLoaded:
		return "Loaded"
	case StateCalibrating:
		return "Calibrating"
	case StateCalibrated:
		return "Calibrated"
	case StateRanking:
		return "Ranking"
	case StateRanked:
		return "Ranked"
	case StatePersisted:
		return "Persisted"
	default:
		return "Unknown"
	}
}

// Renderer produces a visualization artifact from a ranked graph.
// Side-effect only; the pipeline consumes no return value.
type Renderer interface {
	RenderNodes(g *graph.Graph, target string) error
	RenderGroups(g *graph.Graph, target string) error
}

// Exporter publishes a run's report and scores as an artifact.
type Exporter interface {
	Export(ctx context.Context, report *Report, g *graph.Graph) error
}

// Config assembles a pipeline's collaborators. Store and Oracle are
// required; the rest default to no-ops or process-wide instances.
type Config struct {
	Store       store.Store
	Oracle      ranker.Oracle
	RankOptions ranker.Options
	Renderer    Renderer // optional
	Exporter    Exporter // optional
	Logger      logging.Logger
	Metrics     *metrics.Registry
}

// Pipeline runs one full scoring pass over a graph snapshot. A Pipeline is
// single use and single threaded: it exclusively owns its graph for the
// whole run, and concurrent runs over the same store must be serialized by
// the caller.
type Pipeline struct {
	cfg   Config
	state State
}

// New creates a pipeline from its collaborators.
func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = logging.DefaultLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultRegistry()
	}
	return &Pipeline{cfg: cfg, state: StateUnloaded}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State {
	return p.state
}

// advance moves to the next state, enforcing the strict ordering.
func (p *Pipeline) advance(to State) error {
	if to != p.state+1 {
		return &InvalidTransitionError{From: p.state, To: to}
	}
	p.state = to
	return nil
}

// Run executes the full pipeline. On a partial persistence failure the
// returned report lists which entities failed alongside the
// PersistenceError.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	logger := p.cfg.Logger.With(logging.RunID(runID))
	started := time.Now()

	report, err := p.run(ctx, runID, logger)
	elapsed := time.Since(started)

	status := "ok"
	if err != nil {
		status = "error"
	}
	p.cfg.Metrics.RecordRun(status, elapsed)
	if report != nil {
		report.Duration = elapsed
	}
	return report, err
}

func (p *Pipeline) run(ctx context.Context, runID string, logger logging.Logger) (*Report, error) {
	// Load
	timer := logging.StartTimer(logger, "snapshot loaded", logging.Stage("load"))
	stageStart := time.Now()
	snap, err := p.cfg.Store.LoadSnapshot(ctx)
	if err != nil {
		timer.EndError(err)
		return nil, err
	}
	g, err := BuildGraph(snap)
	if err != nil {
		timer.EndError(err)
		return nil, err
	}
	if err := p.advance(StateLoaded); err != nil {
		return nil, err
	}
	timer.End()
	p.cfg.Metrics.RecordStage("load", time.Since(stageStart))
	p.cfg.Metrics.NodesRanked.Set(float64(g.NodeCount()))
	p.cfg.Metrics.GroupsRanked.Set(float64(len(g.Groups())))
	p.cfg.Metrics.EdgesLoaded.Set(float64(g.EdgeCount()))

	// Calibrate
	if err := p.advance(StateCalibrating); err != nil {
		return nil, err
	}
	timer = logging.StartTimer(logger, "border calibrated", logging.Stage("calibrate"))
	stageStart = time.Now()
	calibrator := calibrate.New(p.cfg.Oracle, p.cfg.RankOptions, logger)
	border, err := calibrator.ComputeBorder(g)
	if err != nil {
		timer.EndError(err)
		return nil, err
	}
	if err := p.advance(StateCalibrated); err != nil {
		return nil, err
	}
	timer.End()
	p.cfg.Metrics.RecordStage("calibrate", time.Since(stageStart))
	p.cfg.Metrics.BorderValue.Set(border)

	// Rank
	if err := p.advance(StateRanking); err != nil {
		return nil, err
	}
	timer = logging.StartTimer(logger, "graph ranked", logging.Stage("rank"))
	stageStart = time.Now()
	g.ResetRanks()
	opts := p.cfg.RankOptions
	opts.ThresholdBorder = border
	res, err := p.cfg.Oracle.Rank(g, opts)
	if err != nil {
		timer.EndError(err)
		return nil, err
	}
	if err := p.advance(StateRanked); err != nil {
		return nil, err
	}
	timer.End()
	p.cfg.Metrics.RecordStage("rank", time.Since(stageStart))
	p.cfg.Metrics.OracleRounds.Set(float64(res.Iterations))

	report := summarize(g, border)
	report.RunID = runID

	// Persist
	timer = logging.StartTimer(logger, "scores persisted", logging.Stage("persist"))
	stageStart = time.Now()
	perr := p.persist(ctx, g, report, logger)
	if perr != nil {
		timer.EndError(perr)
	} else {
		timer.End()
	}
	p.cfg.Metrics.RecordStage("persist", time.Since(stageStart))
	if err := p.advance(StatePersisted); err != nil {
		return report, err
	}

	// Render and export are side-effect-only; their failures are logged
	// but do not undo a persisted run.
	if p.cfg.Renderer != nil {
		if rerr := p.cfg.Renderer.RenderNodes(g, "nodes"); rerr != nil {
			logger.Warn("node render failed", logging.Error(rerr))
		}
		if rerr := p.cfg.Renderer.RenderGroups(g, "groups"); rerr != nil {
			logger.Warn("group render failed", logging.Error(rerr))
		}
	}
	if p.cfg.Exporter != nil {
		if xerr := p.cfg.Exporter.Export(ctx, report, g); xerr != nil {
			logger.Warn("export failed", logging.Error(xerr))
		}
	}

	if perr != nil {
		return report, perr
	}
	return report, nil
}

// persist writes every node's rank and every group's rank, raw rank and
// degree. Failures are collected per entity; the remaining writes still
// run.
func (p *Pipeline) persist(ctx context.Context, g *graph.Graph, report *Report, logger logging.Logger) error {
	var failures []PersistFailure
	succeeded := 0

	for _, n := range g.Nodes() {
		if err := p.cfg.Store.UpdateNodeScore(ctx, n.Key, n.Rank); err != nil {
			failures = append(failures, PersistFailure{Entity: "node", Key: n.Key, Err: err})
			logger.Warn("node score write failed", logging.NodeKey(n.Key), logging.Error(err))
			p.cfg.Metrics.PersistFailed.Inc()
			continue
		}
		succeeded++
		p.cfg.Metrics.PersistWritten.Inc()
	}
	for _, grp := range g.Groups() {
		if err := p.cfg.Store.UpdateGroupScore(ctx, grp.Key, grp.Rank, grp.RawRank, grp.Degree); err != nil {
			failures = append(failures, PersistFailure{Entity: "group", Key: grp.Key, Err: err})
			logger.Warn("group score write failed", logging.GroupKey(grp.Key), logging.Error(err))
			p.cfg.Metrics.PersistFailed.Inc()
			continue
		}
		succeeded++
		p.cfg.Metrics.PersistWritten.Inc()
	}

	report.Persisted = succeeded
	report.Failed = failures
	if len(failures) > 0 {
		return &PersistenceError{Succeeded: succeeded, Failures: failures}
	}
	return nil
}

// summarize computes the raw-rank statistics of a ranked graph.
func summarize(g *graph.Graph, border float64) *Report {
	report := &Report{
		Border: border,
		Nodes:  g.NodeCount(),
		Groups: len(g.Groups()),
		Edges:  g.EdgeCount(),
	}
	first := true
	sum := 0.0
	for _, n := range g.Nodes() {
		raw := n.RawRank
		if first {
			report.MaxRaw, report.MinRaw = raw, raw
			first = false
		} else {
			if raw > report.MaxRaw {
				report.MaxRaw = raw
			}
			if raw < report.MinRaw {
				report.MinRaw = raw
			}
		}
		sum += raw
	}
	if report.Nodes > 0 {
		report.AvgRaw = sum / float64(report.Nodes)
	}
	return report
}

// BuildGraph assembles the in-memory graph from a snapshot. A node's kind
// is derived here, at load time only: Seed when any of its groups is
// seed-flagged, otherwise Honest. Duplicate snapshot edges (a mutual
// verification stored in both directions) collapse into one undirected
// edge; a self loop is bad data and aborts the load.
func BuildGraph(snap *store.Snapshot) (*graph.Graph, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	seedGroups := make(map[string]struct{})
	g := graph.New()
	for _, rec := range snap.Groups {
		if _, err := g.AddGroup(rec.Key, rec.Seed); err != nil {
			return nil, err
		}
		if rec.Seed {
			seedGroups[rec.Key] = struct{}{}
		}
	}

	for _, rec := range snap.Identities {
		kind := graph.KindHonest
		groups := make(map[string]struct{}, len(rec.Groups))
		for _, grp := range rec.Groups {
			groups[grp] = struct{}{}
			if _, seed := seedGroups[grp]; seed {
				kind = graph.KindSeed
			}
		}
		if _, err := g.AddNode(rec.Key, kind, groups, rec.Score); err != nil {
			return nil, err
		}
	}

	for _, rec := range snap.Edges {
		if rec.From == rec.To {
			return nil, &store.DataIntegrityError{Entity: "edge", Ref: rec.From, Cause: graph.ErrSelfLoop}
		}
		if g.HasEdge(rec.From, rec.To) {
			continue
		}
		if err := g.AddEdge(rec.From, rec.To); err != nil {
			return nil, err
		}
	}
	return g, nil
}
