package graph

import (
	"sort"
)

// Graph is an undirected, simple identity graph: nodes are identities,
// edges are mutual verifications. A Graph is exclusively owned by a single
// pipeline run; no internal locking is provided.
type Graph struct {
	nodes  map[string]*Node
	groups map[string]*Group
	adj    map[string]map[string]struct{}

	edgeCount  int
	ranksValid bool

	// attack holds the currently attached synthetic pair, if any.
	// At most one pair may exist at a time.
	attack *attackState
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:  make(map[string]*Node),
		groups: make(map[string]*Group),
		adj:    make(map[string]map[string]struct{}),
	}
}

// AddNode adds an identity to the graph. The groups set is copied; every
// membership must name a registered group.
func (g *Graph) AddNode(key string, kind Kind, groups map[string]struct{}, persistedScore float64) (*Node, error) {
	if _, ok := g.nodes[key]; ok {
		return nil, nodeError("AddNode", key, ErrDuplicateNode)
	}
	for grp := range groups {
		if _, ok := g.groups[grp]; !ok {
			return nil, groupError("AddNode", grp, ErrGroupNotFound)
		}
	}
	n := &Node{
		Key:            key,
		Kind:           kind,
		PersistedScore: persistedScore,
		Groups:         make(map[string]struct{}, len(groups)),
	}
	for k := range groups {
		n.Groups[k] = struct{}{}
	}
	g.nodes[key] = n
	g.adj[key] = make(map[string]struct{})
	return n, nil
}

// AddGroup registers a membership group.
func (g *Graph) AddGroup(key string, isSeed bool) (*Group, error) {
	if _, ok := g.groups[key]; ok {
		return nil, groupError("AddGroup", key, ErrDuplicateGroup)
	}
	grp := &Group{Key: key, IsSeed: isSeed}
	g.groups[key] = grp
	return grp, nil
}

// AddEdge adds an undirected verification edge. Both endpoints must exist,
// self loops and parallel edges are rejected.
func (g *Graph) AddEdge(a, b string) error {
	if a == b {
		return edgeError("AddEdge", a, ErrSelfLoop)
	}
	if _, ok := g.nodes[a]; !ok {
		return nodeError("AddEdge", a, ErrNodeNotFound)
	}
	if _, ok := g.nodes[b]; !ok {
		return nodeError("AddEdge", b, ErrNodeNotFound)
	}
	if _, ok := g.adj[a][b]; ok {
		return edgeError("AddEdge", a+"--"+b, ErrDuplicateEdge)
	}
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
	g.edgeCount++
	return nil
}

// removeNode deletes a node and all its incident edges.
func (g *Graph) removeNode(key string) error {
	if _, ok := g.nodes[key]; !ok {
		return nodeError("removeNode", key, ErrNodeNotFound)
	}
	for neighbor := range g.adj[key] {
		delete(g.adj[neighbor], key)
		g.edgeCount--
	}
	delete(g.adj, key)
	delete(g.nodes, key)
	return nil
}

// Node returns the node with the given key.
func (g *Graph) Node(key string) (*Node, bool) {
	n, ok := g.nodes[key]
	return n, ok
}

// Group returns the group with the given key.
func (g *Graph) Group(key string) (*Group, bool) {
	grp, ok := g.groups[key]
	return grp, ok
}

// HasGroup reports whether the group key is known to the graph, either as a
// registered group or as a membership on any node.
func (g *Graph) HasGroup(key string) bool {
	if _, ok := g.groups[key]; ok {
		return true
	}
	for _, n := range g.nodes {
		if n.InGroup(key) {
			return true
		}
	}
	return false
}

// Nodes returns all nodes sorted by key. Sorted iteration keeps every
// downstream float accumulation order deterministic.
func (g *Graph) Nodes() []*Node {
	keys := sortedKeys(g.nodes)
	out := make([]*Node, 0, len(keys))
	for _, k := range keys {
		out = append(out, g.nodes[k])
	}
	return out
}

// Groups returns all groups sorted by key.
func (g *Graph) Groups() []*Group {
	keys := sortedKeys(g.groups)
	out := make([]*Group, 0, len(keys))
	for _, k := range keys {
		out = append(out, g.groups[k])
	}
	return out
}

// Neighbors returns the sorted neighbor keys of a node.
func (g *Graph) Neighbors(key string) []string {
	return sortedKeys(g.adj[key])
}

// Degree returns the number of edges incident to a node.
func (g *Graph) Degree(key string) int {
	return len(g.adj[key])
}

// HasEdge reports whether an edge exists between two nodes.
func (g *Graph) HasEdge(a, b string) bool {
	_, ok := g.adj[a][b]
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// ResetRanks clears every node and group rank field to the undefined state.
// Must be called before every ranking pass; the oracle rejects a graph whose
// ranks were not reset since the previous pass.
func (g *Graph) ResetRanks() {
	for _, n := range g.nodes {
		n.Rank = 0
		n.RawRank = 0
	}
	for _, grp := range g.groups {
		grp.Rank = 0
		grp.RawRank = 0
		grp.Degree = 0
	}
	g.ranksValid = false
}

// RanksValid reports whether a ranking pass has completed since the last
// reset.
func (g *Graph) RanksValid() bool {
	return g.ranksValid
}

// MarkRanked flags the graph's rank fields as populated. Called by the rank
// oracle when a pass completes; not intended for other callers.
func (g *Graph) MarkRanked() {
	g.ranksValid = true
}

// sortedKeys returns the keys of a map in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
