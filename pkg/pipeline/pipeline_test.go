package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-sybilrank/pkg/logging"

	"github.com/dd0wney/cluso-sybilrank/pkg/calibrate"
	"github.com/dd0wney/cluso-sybilrank/pkg/export"
	"github.com/dd0wney/cluso-sybilrank/pkg/metrics"
	"github.com/dd0wney/cluso-sybilrank/pkg/pipeline"
	"github.com/dd0wney/cluso-sybilrank/pkg/ranker"
	"github.com/dd0wney/cluso-sybilrank/pkg/render"
	"github.com/dd0wney/cluso-sybilrank/pkg/store"
)

// seedClusterStore fills a memory store with the scenario topology: seed S
// in the seed group, honest A, B, C fully connected among themselves and to
// S. One edge is stored in both directions to exercise deduplication.
func seedClusterStore() *store.MemoryStore {
	st := store.NewMemoryStore()
	st.PutGroup("root", true)
	st.PutIdentity("s", 0, "root")
	st.PutIdentity("a", 0)
	st.PutIdentity("b", 0)
	st.PutIdentity("c", 0)
	st.PutEdge("s", "a")
	st.PutEdge("a", "s") // mutual verification stored twice
	st.PutEdge("s", "b")
	st.PutEdge("s", "c")
	st.PutEdge("a", "b")
	st.PutEdge("a", "c")
	st.PutEdge("b", "c")
	return st
}

func newPipeline(st store.Store, cfg func(*pipeline.Config)) *pipeline.Pipeline {
	c := pipeline.Config{
		Store:       st,
		Oracle:      ranker.NewSybilRank(),
		RankOptions: ranker.DefaultOptions(),
		Metrics:     metrics.NewRegistry(),
	}
	if cfg != nil {
		cfg(&c)
	}
	return pipeline.New(c)
}

func TestPipeline_Run(t *testing.T) {
	st := seedClusterStore()
	p := newPipeline(st, nil)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, pipeline.StatePersisted, p.State())
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 4, report.Nodes)
	assert.Equal(t, 1, report.Groups)
	assert.Equal(t, 6, report.Edges, "duplicate edge directions must collapse")
	assert.InDelta(t, 3.0/25.0, report.Border, 1e-9)
	assert.Equal(t, 5, report.Persisted, "4 nodes + 1 group")
	assert.Empty(t, report.Failed)

	// The seed holds the maximum rank and normalizes to 100.
	score, ok := st.IdentityScore("s")
	require.True(t, ok)
	assert.InDelta(t, 100.0, score, 1e-9)

	// Honest nodes land strictly between the suppressed region and the seed.
	for _, key := range []string{"a", "b", "c"} {
		score, ok := st.IdentityScore(key)
		require.True(t, ok)
		assert.Greater(t, score, 0.0, "node %s", key)
		assert.Less(t, score, 100.0, "node %s", key)
	}

	_, _, _, ok = st.GroupScore("root")
	assert.True(t, ok, "group scores must be persisted")
}

func TestPipeline_PartialPersistenceFailure(t *testing.T) {
	st := seedClusterStore()
	boom := errors.New("write refused")
	st.FailUpdates = map[string]error{"b": boom}

	p := newPipeline(st, nil)
	report, err := p.Run(context.Background())

	var perr *pipeline.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 4, perr.Succeeded)
	require.Len(t, perr.Failures, 1)
	assert.Equal(t, "node", perr.Failures[0].Entity)
	assert.Equal(t, "b", perr.Failures[0].Key)
	assert.ErrorIs(t, perr.Failures[0].Err, boom)

	// The report still describes the run, including the failure list.
	require.NotNil(t, report)
	assert.Len(t, report.Failed, 1)
	assert.Equal(t, 4, report.Persisted)

	// Other writes stayed committed.
	score, ok := st.IdentityScore("a")
	require.True(t, ok)
	assert.Greater(t, score, 0.0)
}

func TestPipeline_StageMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	p := newPipeline(seedClusterStore(), func(c *pipeline.Config) {
		c.Metrics = reg
	})

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)
	var stages *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "sybilrank_stage_duration_seconds" {
			stages = mf
		}
	}
	require.NotNil(t, stages, "stage duration histogram must be exported after a run")

	observed := map[string]uint64{}
	for _, m := range stages.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "stage" {
				observed[lp.GetValue()] = m.GetHistogram().GetSampleCount()
			}
		}
	}
	for _, stage := range []string{"load", "calibrate", "rank", "persist"} {
		assert.Equal(t, uint64(1), observed[stage], "stage %s", stage)
	}
}

func TestPipeline_PersistFailureLogsEntity(t *testing.T) {
	st := seedClusterStore()
	st.FailUpdates = map[string]error{"root": errors.New("write refused")}

	var buf bytes.Buffer
	p := newPipeline(st, func(c *pipeline.Config) {
		c.Logger = logging.NewJSONLogger(&buf, logging.WarnLevel)
	})

	_, err := p.Run(context.Background())
	var perr *pipeline.PersistenceError
	require.ErrorAs(t, err, &perr)

	logs := buf.String()
	assert.Contains(t, logs, "group score write failed")
	assert.Contains(t, logs, `"group_key":"root"`)
}

func TestPipeline_EmptyStore(t *testing.T) {
	p := newPipeline(store.NewMemoryStore(), nil)

	_, err := p.Run(context.Background())
	var calErr *calibrate.CalibrationError
	require.ErrorAs(t, err, &calErr)
	assert.ErrorIs(t, err, calibrate.ErrEmptyGraph)
}

func TestPipeline_DataIntegrityError(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutIdentity("a", 0)
	st.PutEdge("a", "ghost")

	p := newPipeline(st, nil)
	_, err := p.Run(context.Background())

	var intErr *store.DataIntegrityError
	require.ErrorAs(t, err, &intErr)
	assert.Equal(t, pipeline.StateUnloaded, p.State(), "run must abort before loading")
}

func TestPipeline_RenderAndExport(t *testing.T) {
	st := seedClusterStore()
	outDir := t.TempDir()

	p := newPipeline(st, func(c *pipeline.Config) {
		c.Renderer = render.NewHTMLRenderer(outDir, render.DefaultLayoutConfig())
		c.Exporter = export.NewSnapshotExporter(&export.FileSink{Dir: outDir}, nil)
	})

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	for _, name := range []string{"nodes.html", "groups.html"} {
		if _, statErr := os.Stat(filepath.Join(outDir, name)); statErr != nil {
			t.Errorf("Expected render artifact %s: %v", name, statErr)
		}
	}

	artifact := filepath.Join(outDir, "sybilrank-"+report.RunID+".json.sz")
	data, readErr := os.ReadFile(artifact)
	require.NoError(t, readErr, "export artifact missing")

	decoded, decErr := export.Decode(data)
	require.NoError(t, decErr)
	assert.Equal(t, report.RunID, decoded.RunID)
	assert.InDelta(t, report.Border, decoded.Border, 1e-12)
}

func TestBuildGraph_Classification(t *testing.T) {
	snap := &store.Snapshot{
		Identities: []store.IdentityRecord{
			{Key: "seed1", Groups: []string{"root", "misc"}},
			{Key: "plain", Groups: []string{"misc"}},
			{Key: "loner"},
		},
		Groups: []store.GroupRecord{
			{Key: "root", Seed: true},
			{Key: "misc", Seed: false},
		},
	}

	g, err := pipeline.BuildGraph(snap)
	require.NoError(t, err)

	seed1, _ := g.Node("seed1")
	plain, _ := g.Node("plain")
	loner, _ := g.Node("loner")
	assert.Equal(t, "Seed", seed1.Kind.String())
	assert.Equal(t, "Honest", plain.Kind.String())
	assert.Equal(t, "Honest", loner.Kind.String())
}
