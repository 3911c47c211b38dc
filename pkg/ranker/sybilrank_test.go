package ranker

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/dd0wney/cluso-sybilrank/pkg/graph"
)

const epsilon = 1e-9

// setupSeedCluster builds the canonical test topology: seed S connected to
// honest A, B, C, which are also connected to each other.
func setupSeedCluster(t *testing.T) *graph.Graph {
	t.Helper()

	g := graph.New()
	if _, err := g.AddGroup("root", true); err != nil {
		t.Fatalf("AddGroup failed: %v", err)
	}
	if _, err := g.AddNode("s", graph.KindSeed, map[string]struct{}{"root": {}}, 0); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	for _, key := range []string{"a", "b", "c"} {
		if _, err := g.AddNode(key, graph.KindHonest, nil, 0); err != nil {
			t.Fatalf("AddNode failed: %v", err)
		}
	}
	for _, pair := range [][2]string{{"s", "a"}, {"s", "b"}, {"s", "c"}, {"a", "b"}, {"a", "c"}, {"b", "c"}} {
		if err := g.AddEdge(pair[0], pair[1]); err != nil {
			t.Fatalf("AddEdge failed: %v", err)
		}
	}
	return g
}

func TestSybilRank_EmptyGraph(t *testing.T) {
	g := graph.New()

	res, err := NewSybilRank().Rank(g, DefaultOptions())
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if res.NodesRanked != 0 {
		t.Errorf("NodesRanked = %d, want 0", res.NodesRanked)
	}
	if !g.RanksValid() {
		t.Error("Graph should be marked ranked even when empty")
	}
}

func TestSybilRank_NoSeeds(t *testing.T) {
	g := graph.New()
	for _, key := range []string{"x", "y"} {
		if _, err := g.AddNode(key, graph.KindHonest, nil, 0); err != nil {
			t.Fatalf("AddNode failed: %v", err)
		}
	}
	if err := g.AddEdge("x", "y"); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}

	if _, err := NewSybilRank().Rank(g, DefaultOptions()); err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	for _, n := range g.Nodes() {
		if n.RawRank != 0 {
			t.Errorf("Node %q rawRank = %v, want 0 without seeds", n.Key, n.RawRank)
		}
	}
}

func TestSybilRank_SeedPropagation(t *testing.T) {
	g := setupSeedCluster(t)

	if _, err := NewSybilRank().Rank(g, DefaultOptions()); err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	// Two propagation rounds over this topology put 1/3 of the trust back
	// on the seed and 2/9 on each honest node.
	s, _ := g.Node("s")
	if math.Abs(s.RawRank-1.0/3.0) > epsilon {
		t.Errorf("Seed rawRank = %v, want 1/3", s.RawRank)
	}
	for _, key := range []string{"a", "b", "c"} {
		n, _ := g.Node(key)
		if math.Abs(n.RawRank-2.0/9.0) > epsilon {
			t.Errorf("Node %q rawRank = %v, want 2/9", key, n.RawRank)
		}
	}

	// The seed holds the maximum and normalizes to 100.
	if math.Abs(s.Rank-100) > epsilon {
		t.Errorf("Seed rank = %v, want 100", s.Rank)
	}
}

func TestSybilRank_StaleRanksRejected(t *testing.T) {
	g := setupSeedCluster(t)
	oracle := NewSybilRank()

	if _, err := oracle.Rank(g, DefaultOptions()); err != nil {
		t.Fatalf("First rank failed: %v", err)
	}
	if _, err := oracle.Rank(g, DefaultOptions()); !errors.Is(err, graph.ErrStaleRanks) {
		t.Errorf("Expected ErrStaleRanks without reset, got %v", err)
	}

	g.ResetRanks()
	if _, err := oracle.Rank(g, DefaultOptions()); err != nil {
		t.Errorf("Rank after reset failed: %v", err)
	}
}

func TestSybilRank_BorderSuppression(t *testing.T) {
	g := setupSeedCluster(t)
	opts := DefaultOptions()
	opts.ThresholdBorder = 0.25 // between 2/9 and 1/3

	if _, err := NewSybilRank().Rank(g, opts); err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	s, _ := g.Node("s")
	if math.Abs(s.Rank-100) > epsilon {
		t.Errorf("Seed rank = %v, want 100 above the border", s.Rank)
	}
	for _, key := range []string{"a", "b", "c"} {
		n, _ := g.Node(key)
		if n.Rank != 0 {
			t.Errorf("Node %q rank = %v, want 0 at or below the border", key, n.Rank)
		}
	}
}

func TestSybilRank_InvalidOptions(t *testing.T) {
	g := setupSeedCluster(t)
	opts := DefaultOptions()
	opts.Tolerance = -1

	if _, err := NewSybilRank().Rank(g, opts); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("Expected ErrInvalidOptions, got %v", err)
	}
}

func TestSybilRank_GroupAggregation(t *testing.T) {
	g := graph.New()
	for _, grp := range []struct {
		key  string
		seed bool
	}{{"ga", true}, {"gb", false}, {"gc", false}} {
		if _, err := g.AddGroup(grp.key, grp.seed); err != nil {
			t.Fatalf("AddGroup failed: %v", err)
		}
	}
	members := map[string]string{"a": "ga", "b": "gb", "c": "gc"}
	for key, grp := range members {
		kind := graph.KindHonest
		if grp == "ga" {
			kind = graph.KindSeed
		}
		if _, err := g.AddNode(key, kind, map[string]struct{}{grp: {}}, 0); err != nil {
			t.Fatalf("AddNode failed: %v", err)
		}
	}
	for _, pair := range [][2]string{{"a", "b"}, {"b", "c"}} {
		if err := g.AddEdge(pair[0], pair[1]); err != nil {
			t.Fatalf("AddEdge failed: %v", err)
		}
	}

	if _, err := NewSybilRank().Rank(g, DefaultOptions()); err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	wantDegrees := map[string]float64{"ga": 1, "gb": 2, "gc": 1}
	for key, want := range wantDegrees {
		grp, _ := g.Group(key)
		if grp.Degree != want {
			t.Errorf("Group %q degree = %v, want %v", key, grp.Degree, want)
		}
	}

	// After two rounds on the chain ga-gb-gc, trust sits on the ends.
	ga, _ := g.Group("ga")
	gb, _ := g.Group("gb")
	gc, _ := g.Group("gc")
	if math.Abs(ga.RawRank-0.5) > epsilon || math.Abs(gc.RawRank-0.5) > epsilon {
		t.Errorf("End group rawRanks = %v, %v, want 0.5 each", ga.RawRank, gc.RawRank)
	}
	if gb.RawRank != 0 {
		t.Errorf("Middle group rawRank = %v, want 0", gb.RawRank)
	}
}

func TestSybilRank_Deterministic(t *testing.T) {
	build := func() *graph.Graph {
		g := graph.New()
		if _, err := g.AddGroup("root", true); err != nil {
			t.Fatalf("AddGroup failed: %v", err)
		}
		for i := 0; i < 10; i++ {
			key := fmt.Sprintf("n%02d", i)
			kind := graph.KindHonest
			var groups map[string]struct{}
			if i == 0 {
				kind = graph.KindSeed
				groups = map[string]struct{}{"root": {}}
			}
			if _, err := g.AddNode(key, kind, groups, 0); err != nil {
				t.Fatalf("AddNode failed: %v", err)
			}
		}
		for i := 0; i < 10; i++ {
			a := fmt.Sprintf("n%02d", i)
			b := fmt.Sprintf("n%02d", (i+1)%10)
			if err := g.AddEdge(a, b); err != nil {
				t.Fatalf("AddEdge failed: %v", err)
			}
		}
		// Chords to break symmetry
		for _, pair := range [][2]string{{"n00", "n05"}, {"n02", "n07"}, {"n01", "n08"}} {
			if err := g.AddEdge(pair[0], pair[1]); err != nil {
				t.Fatalf("AddEdge failed: %v", err)
			}
		}
		return g
	}

	g1, g2 := build(), build()
	oracle := NewSybilRank()
	if _, err := oracle.Rank(g1, DefaultOptions()); err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if _, err := oracle.Rank(g2, DefaultOptions()); err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	n1, n2 := g1.Nodes(), g2.Nodes()
	for i := range n1 {
		if n1[i].RawRank != n2[i].RawRank {
			t.Errorf("Node %q rawRank differs across identical runs: %v vs %v",
				n1[i].Key, n1[i].RawRank, n2[i].RawRank)
		}
	}
}
