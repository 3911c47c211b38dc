package ranker

import (
	"math"
	"sort"

	"github.com/dd0wney/cluso-sybilrank/pkg/graph"
)

// SybilRank is the default rank oracle: seed-personalized trust propagation
// over the verification graph, plus an aggregated pass over the derived
// group graph. Trust starts on seed identities and spreads along edges for a
// logarithmic number of rounds, so regions only reachable through a narrow
// cut receive little of it.
type SybilRank struct{}

// NewSybilRank creates the default rank oracle.
func NewSybilRank() *SybilRank {
	return &SybilRank{}
}

// Rank runs the node pass and the group pass, mutating rank fields in place.
func (r *SybilRank) Rank(g *graph.Graph, opts Options) (*Result, error) {
	if g.RanksValid() {
		return nil, &RankError{Stage: "nodes", Cause: graph.ErrStaleRanks}
	}
	if err := validateOptions(opts); err != nil {
		return nil, &RankError{Stage: "nodes", Cause: err}
	}

	res := &Result{}
	if err := r.rankNodes(g, opts, res); err != nil {
		return nil, err
	}
	if err := r.rankGroups(g, opts, res); err != nil {
		return nil, err
	}
	g.MarkRanked()
	return res, nil
}

func validateOptions(opts Options) error {
	if opts.Iterations < 0 || opts.MaxIterations < 0 || opts.Tolerance < 0 || opts.ThresholdBorder < 0 {
		return ErrInvalidOptions
	}
	return nil
}

// iterationCount picks the number of propagation rounds for a graph of n
// vertices: ceil(log2(n)) capped by MaxIterations, never below 1.
func iterationCount(n int, opts Options) int {
	iters := opts.Iterations
	if iters == 0 {
		iters = int(math.Ceil(math.Log2(float64(n))))
	}
	if iters < 1 {
		iters = 1
	}
	if opts.MaxIterations > 0 && iters > opts.MaxIterations {
		iters = opts.MaxIterations
	}
	return iters
}

// rankNodes runs the trust propagation over identity nodes. RawRank is the
// amount of trust held after the final round; Rank is the normalized 0-100
// score with raw ranks at or below the threshold border suppressed.
func (r *SybilRank) rankNodes(g *graph.Graph, opts Options, res *Result) error {
	nodes := g.Nodes()
	n := len(nodes)
	res.NodesRanked = n
	if n == 0 {
		return nil
	}

	seeds := 0
	for _, node := range nodes {
		if node.Kind == graph.KindSeed {
			seeds++
		}
	}

	trust := make(map[string]float64, n)
	if seeds > 0 {
		initial := 1.0 / float64(seeds)
		for _, node := range nodes {
			if node.Kind == graph.KindSeed {
				trust[node.Key] = initial
			}
		}
	}

	iters := iterationCount(n, opts)
	next := make(map[string]float64, n)
	for i := 0; i < iters; i++ {
		res.Iterations = i + 1
		maxDiff := 0.0
		for _, node := range nodes {
			sum := 0.0
			for _, neighbor := range g.Neighbors(node.Key) {
				if deg := g.Degree(neighbor); deg > 0 {
					sum += trust[neighbor] / float64(deg)
				}
			}
			next[node.Key] = sum
			if diff := math.Abs(sum - trust[node.Key]); diff > maxDiff {
				maxDiff = diff
			}
		}
		trust, next = next, trust
		if maxDiff < opts.Tolerance {
			res.Converged = true
			break
		}
	}

	maxRaw := 0.0
	for _, node := range nodes {
		raw := trust[node.Key]
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			return &RankError{Stage: "nodes", Cause: ErrNumericInstability}
		}
		node.RawRank = raw
		if raw > maxRaw {
			maxRaw = raw
		}
	}
	for _, node := range nodes {
		node.Rank = normalize(node.RawRank, maxRaw, opts.ThresholdBorder)
	}
	return nil
}

// rankGroups aggregates the graph into a group-level view and propagates
// trust over it. Two groups are adjacent when a verification edge connects a
// member of one to a member of the other; the edge weight counts those
// connections. Seed groups are the trust sources.
func (r *SybilRank) rankGroups(g *graph.Graph, opts Options, res *Result) error {
	groups := g.Groups()
	res.GroupsRanked = len(groups)
	if len(groups) == 0 {
		return nil
	}

	weights, weightedDegree := groupAdjacency(g)

	seedGroups := 0
	for _, grp := range groups {
		if grp.IsSeed {
			seedGroups++
		}
	}

	trust := make(map[string]float64, len(groups))
	if seedGroups > 0 {
		initial := 1.0 / float64(seedGroups)
		for _, grp := range groups {
			if grp.IsSeed {
				trust[grp.Key] = initial
			}
		}
	}

	iters := iterationCount(len(groups), opts)
	next := make(map[string]float64, len(groups))
	for i := 0; i < iters; i++ {
		maxDiff := 0.0
		for _, grp := range groups {
			sum := 0.0
			for _, other := range sortedWeightKeys(weights[grp.Key]) {
				if wd := weightedDegree[other]; wd > 0 {
					sum += trust[other] * weights[grp.Key][other] / wd
				}
			}
			next[grp.Key] = sum
			if diff := math.Abs(sum - trust[grp.Key]); diff > maxDiff {
				maxDiff = diff
			}
		}
		trust, next = next, trust
		if maxDiff < opts.Tolerance {
			break
		}
	}

	maxRaw := 0.0
	for _, grp := range groups {
		raw := trust[grp.Key]
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			return &RankError{Stage: "groups", Cause: ErrNumericInstability}
		}
		grp.RawRank = raw
		grp.Degree = weightedDegree[grp.Key]
		if raw > maxRaw {
			maxRaw = raw
		}
	}
	for _, grp := range groups {
		grp.Rank = normalize(grp.RawRank, maxRaw, opts.ThresholdBorder)
	}
	return nil
}

// sortedWeightKeys returns the neighbor group keys in sorted order so float
// accumulation order stays fixed across runs.
func sortedWeightKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// groupAdjacency builds the weighted group graph from cross-group member
// connections.
func groupAdjacency(g *graph.Graph) (map[string]map[string]float64, map[string]float64) {
	weights := make(map[string]map[string]float64)
	weightedDegree := make(map[string]float64)

	add := func(a, b string) {
		if weights[a] == nil {
			weights[a] = make(map[string]float64)
		}
		weights[a][b]++
		weightedDegree[a]++
	}

	for _, node := range g.Nodes() {
		for _, neighbor := range g.Neighbors(node.Key) {
			if node.Key >= neighbor {
				continue // each undirected edge once
			}
			other, ok := g.Node(neighbor)
			if !ok {
				continue
			}
			for _, ga := range node.GroupKeys() {
				for _, gb := range other.GroupKeys() {
					if ga == gb {
						continue
					}
					add(ga, gb)
					add(gb, ga)
				}
			}
		}
	}
	return weights, weightedDegree
}

// normalize converts a raw rank to the 0-100 scale. With a positive border,
// raw ranks at or below it map to zero: that much trust is attainable by a
// trivial sybil attack and carries no signal.
func normalize(raw, maxRaw, border float64) float64 {
	if border > 0 {
		if raw <= border || maxRaw <= border {
			return 0
		}
		return (raw - border) / (maxRaw - border) * 100
	}
	if maxRaw <= 0 {
		return 0
	}
	return raw / maxRaw * 100
}
