package graph

import (
	"fmt"
	"strings"
)

// Checkpoint is a structural fingerprint of a graph: its node set, edge set
// and per-node group memberships. It is used to verify that a mutation was
// fully undone.
type Checkpoint struct {
	nodes  map[string]string // node key -> sorted group memberships
	edges  map[string]struct{}
	groups map[string]struct{}
}

// Checkpoint captures the graph's current structure. Rank fields are
// transient and deliberately excluded.
func (g *Graph) Checkpoint() *Checkpoint {
	c := &Checkpoint{
		nodes:  make(map[string]string, len(g.nodes)),
		edges:  make(map[string]struct{}, g.edgeCount),
		groups: make(map[string]struct{}, len(g.groups)),
	}
	for k, n := range g.nodes {
		c.nodes[k] = strings.Join(n.GroupKeys(), ",")
	}
	for a, neighbors := range g.adj {
		for b := range neighbors {
			if a < b {
				c.edges[a+"--"+b] = struct{}{}
			}
		}
	}
	for k := range g.groups {
		c.groups[k] = struct{}{}
	}
	return c
}

// VerifyRestored compares the graph against a previously captured
// checkpoint. A mismatch means synthetic state leaked.
func (g *Graph) VerifyRestored(c *Checkpoint) error {
	if len(g.nodes) != len(c.nodes) {
		return fmt.Errorf("%w: node count %d, want %d", ErrNotRestored, len(g.nodes), len(c.nodes))
	}
	for k, n := range g.nodes {
		want, ok := c.nodes[k]
		if !ok {
			return fmt.Errorf("%w: unexpected node %q", ErrNotRestored, k)
		}
		if got := strings.Join(n.GroupKeys(), ","); got != want {
			return fmt.Errorf("%w: node %q groups [%s], want [%s]", ErrNotRestored, k, got, want)
		}
	}
	if g.edgeCount != len(c.edges) {
		return fmt.Errorf("%w: edge count %d, want %d", ErrNotRestored, g.edgeCount, len(c.edges))
	}
	for a, neighbors := range g.adj {
		for b := range neighbors {
			if a < b {
				if _, ok := c.edges[a+"--"+b]; !ok {
					return fmt.Errorf("%w: unexpected edge %s--%s", ErrNotRestored, a, b)
				}
			}
		}
	}
	if len(g.groups) != len(c.groups) {
		return fmt.Errorf("%w: group count %d, want %d", ErrNotRestored, len(g.groups), len(c.groups))
	}
	for k := range g.groups {
		if _, ok := c.groups[k]; !ok {
			return fmt.Errorf("%w: unexpected group %q", ErrNotRestored, k)
		}
	}
	return nil
}
