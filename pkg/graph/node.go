package graph

// Kind classifies an identity node.
type Kind uint8

const (
	// KindHonest is an identity with no seed-group membership.
	KindHonest Kind = iota
	// KindSeed is an identity belonging to at least one seed group.
	KindSeed
	// KindSybil is a synthetic identity injected during calibration.
	KindSybil
)

// String returns the string representation of a node kind.
func (k Kind) String() string {
	switch k {
	case KindHonest:
		return "Honest"
	case KindSeed:
		return "Seed"
	case KindSybil:
		return "Sybil"
	default:
		return "Unknown"
	}
}

// Node is a single identity in the verification graph.
//
// Rank and RawRank are run-scoped outputs of a ranking pass. They are
// undefined until a pass completes and must not be read after ResetRanks.
type Node struct {
	Key            string
	Kind           Kind
	PersistedScore float64

	// Groups this identity belongs to. May be empty.
	Groups map[string]struct{}

	Rank    float64
	RawRank float64
}

// InGroup reports whether the node is a member of the given group.
func (n *Node) InGroup(key string) bool {
	_, ok := n.Groups[key]
	return ok
}

// GroupKeys returns the node's group memberships as a sorted slice.
func (n *Node) GroupKeys() []string {
	return sortedKeys(n.Groups)
}

// Group is a membership group. Seed groups are the trusted roots of the
// trust propagation.
//
// Rank, RawRank and Degree are run-scoped outputs of a ranking pass,
// analogous to the node rank fields.
type Group struct {
	Key    string
	IsSeed bool

	Rank    float64
	RawRank float64
	Degree  float64
}
